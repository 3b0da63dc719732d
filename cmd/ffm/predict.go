package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/config"
	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/hashing"
	"github.com/born-ml/ffm/internal/loss"
	"github.com/born-ml/ffm/internal/parallel"
	"github.com/born-ml/ffm/internal/serialization"
	"github.com/born-ml/ffm/internal/train"
)

const predictBatch = 4096

type predictFlags struct {
	config  string
	model   string
	input   string
	output  string
	workers int
	raw     bool
}

func newPredictCmd(g *globalFlags) *cobra.Command {
	f := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a libffm-style file, one probability per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, g, f)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "YAML config file (data options)")
	cmd.Flags().StringVar(&f.model, "model", "", "checkpoint to load")
	cmd.Flags().StringVar(&f.input, "input", "-", "examples to score (- for stdin)")
	cmd.Flags().StringVar(&f.output, "output", "-", "where to write scores (- for stdout)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "scoring workers (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "write raw scores instead of probabilities")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runPredict(cmd *cobra.Command, g *globalFlags, f *predictFlags) error {
	file := config.Default()
	if f.config != "" {
		var err error
		if file, err = config.Load(f.config); err != nil {
			return err
		}
	}

	logger, err := newLogger(g.logLevel, g.devLog)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	model, _, err := serialization.Load(f.model, logger)
	if err != nil {
		return err
	}
	defer model.Close()

	in, closeIn, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer closeIn()

	pcfg := parallel.DefaultConfig()
	if f.workers > 0 {
		pcfg = parallel.WithWorkers(f.workers)
	}
	r := dataset.NewReader(in, hashing.ForModel(model), file.DataOptions())

	if f.output == "-" {
		total, err := writeScores(cmd.OutOrStdout(), r, model, pcfg, f.raw)
		if err != nil {
			return err
		}
		logger.Info("scored examples", zap.Int("examples", total))
		return nil
	}

	//nolint:gosec // G304: output path comes from the command line
	fh, err := os.Create(f.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	total, err := writeScores(fh, r, model, pcfg, f.raw)
	if err = closeOutput(fh, err); err != nil {
		return err
	}

	logger.Info("scored examples", zap.Int("examples", total), zap.String("output", f.output))
	return nil
}

// writeScores scores every example of r in batches and writes one score per
// line to w. It returns the number of examples scored.
func writeScores(w io.Writer, r *dataset.Reader, model *ffm.Model, pcfg parallel.Config, raw bool) (int, error) {
	bw := bufio.NewWriter(w)
	batch := make([]dataset.Example, 0, predictBatch)
	var buf []byte
	total := 0

	flush := func() error {
		for _, s := range train.PredictBatch(model, batch, pcfg) {
			if !raw {
				s = loss.Sigmoid(s)
			}
			buf = strconv.AppendFloat(buf[:0], float64(s), 'g', -1, 32)
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("write scores: %w", err)
			}
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		ex, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, ex)
		if len(batch) == predictBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	if err := bw.Flush(); err != nil {
		return total, fmt.Errorf("write scores: %w", err)
	}
	return total, nil
}

// closeOutput closes c and returns err, or the close error when err is nil.
func closeOutput(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil && err == nil {
		return fmt.Errorf("close output: %w", cerr)
	}
	return err
}
