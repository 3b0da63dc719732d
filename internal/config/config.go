// Package config loads trainer settings from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/train"
)

// File mirrors the YAML layout of a training configuration.
type File struct {
	LogLevel string `yaml:"log_level"`
	Model    Model  `yaml:"model"`
	Data     Data   `yaml:"data"`
	Train    Train  `yaml:"train"`
}

// Model holds model construction parameters.
type Model struct {
	HashBits   uint    `yaml:"hash_bits"`
	Fields     int     `yaml:"fields"`
	Seed       int64   `yaml:"seed"`
	Restricted bool    `yaml:"restricted"`
	Eta        float32 `yaml:"eta"`
	Lambda     float32 `yaml:"lambda"`
}

// Data holds example parsing options.
type Data struct {
	SortByField bool `yaml:"sort_by_field"`
	Normalize   bool `yaml:"normalize"`
}

// Train holds trainer settings.
type Train struct {
	Keep           float64 `yaml:"keep"`
	DropoutSeed    uint64  `yaml:"dropout_seed"`
	PositiveWeight float32 `yaml:"positive_weight"`
	LogEvery       int64   `yaml:"log_every"`
	BatchSize      int     `yaml:"batch_size"`
	Workers        int     `yaml:"workers"`
	Hogwild        bool    `yaml:"hogwild"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	m := ffm.DefaultConfig()
	t := train.DefaultConfig()
	return File{
		LogLevel: "info",
		Model: Model{
			HashBits: m.HashBits,
			Fields:   m.Fields,
			Eta:      m.Eta,
			Lambda:   m.Lambda,
		},
		Data: Data{SortByField: true},
		Train: Train{
			Keep:           t.Keep,
			PositiveWeight: t.PositiveWeight,
			LogEvery:       t.LogEvery,
			BatchSize:      t.BatchSize,
			Workers:        t.Workers,
		},
	}
}

// Load reads path and overlays it on Default.
func Load(path string) (File, error) {
	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the settings the library constructors do not.
func (f File) Validate() error {
	if _, err := f.Level(); err != nil {
		return err
	}
	if f.Model.HashBits == 0 || f.Model.Fields == 0 {
		return fmt.Errorf("%w: model.hash_bits and model.fields must be set", ffm.ErrInvalidConfig)
	}
	return nil
}

// Level parses LogLevel.
func (f File) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(f.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// ModelConfig returns the kernel configuration.
func (f File) ModelConfig() ffm.Config {
	return ffm.Config{
		HashBits:   f.Model.HashBits,
		Fields:     f.Model.Fields,
		Seed:       f.Model.Seed,
		Restricted: f.Model.Restricted,
		Eta:        f.Model.Eta,
		Lambda:     f.Model.Lambda,
	}
}

// DataOptions returns the example parsing options.
func (f File) DataOptions() dataset.Options {
	return dataset.Options{
		SortByField: f.Data.SortByField,
		Normalize:   f.Data.Normalize,
	}
}

// TrainConfig returns the trainer configuration.
func (f File) TrainConfig() train.Config {
	return train.Config{
		Data:           f.DataOptions(),
		Keep:           f.Train.Keep,
		DropoutSeed:    f.Train.DropoutSeed,
		PositiveWeight: f.Train.PositiveWeight,
		LogEvery:       f.Train.LogEvery,
		BatchSize:      f.Train.BatchSize,
		Workers:        f.Train.Workers,
		Hogwild:        f.Train.Hogwild,
	}
}

// Marshal encodes f as YAML.
func (f File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
