package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/config"
	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/serialization"
	"github.com/born-ml/ffm/internal/train"
)

type trainFlags struct {
	config  string
	train   string
	valid   string
	out     string
	resume  string
	workers int
	hogwild bool
}

func newTrainCmd(g *globalFlags) *cobra.Command {
	f := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model with one pass over a libffm-style file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, g, f)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "YAML config file")
	cmd.Flags().StringVar(&f.train, "train", "", "training data (- for stdin)")
	cmd.Flags().StringVar(&f.valid, "valid", "", "validation data")
	cmd.Flags().StringVar(&f.out, "out", "model.ffm", "checkpoint to write")
	cmd.Flags().StringVar(&f.resume, "resume", "", "continue training from a checkpoint")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "worker count; overrides the config file")
	cmd.Flags().BoolVar(&f.hogwild, "hogwild", false, "allow racy concurrent updates when workers > 1")
	_ = cmd.MarkFlagRequired("train")
	return cmd
}

func runTrain(cmd *cobra.Command, g *globalFlags, f *trainFlags) error {
	file := config.Default()
	if f.config != "" {
		var err error
		if file, err = config.Load(f.config); err != nil {
			return err
		}
	}
	if f.workers > 0 {
		file.Train.Workers = f.workers
	}
	if cmd.Flags().Changed("hogwild") {
		file.Train.Hogwild = f.hogwild
	}

	level := file.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger, err := newLogger(level, g.devLog)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	model, err := openModel(f.resume, file, logger)
	if err != nil {
		return err
	}
	defer model.Close()
	warnFieldOrder(logger, model, file.DataOptions())

	trainer, err := train.New(model, file.TrainConfig(), logger)
	if err != nil {
		return err
	}

	trainIn, closeTrain, err := openInput(f.train)
	if err != nil {
		return err
	}
	defer closeTrain()

	var validIn io.Reader
	if f.valid != "" {
		r, closeValid, err := openInput(f.valid)
		if err != nil {
			return err
		}
		defer closeValid()
		validIn = r
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := trainer.Run(ctx, trainIn, validIn)
	if err != nil {
		return err
	}

	meta := &serialization.TrainingMeta{
		Examples: report.Examples,
		LogLoss:  report.LogLoss,
	}
	if v := report.Validation; v != nil {
		meta.Validate = int64(v.Examples)
		if !math.IsNaN(v.AUC) {
			meta.AUC = v.AUC
		}
	}
	opts := serialization.WriteOptions{
		Metadata: map[string]string{"train": f.train},
		Training: meta,
	}
	if err := serialization.Save(f.out, model, opts); err != nil {
		return err
	}

	logger.Info("saved checkpoint", zap.String("path", f.out), zap.Int64("examples", report.Examples))
	fmt.Fprintf(cmd.OutOrStdout(), "examples=%d logloss=%.6f duration=%s\n",
		report.Examples, report.LogLoss, report.Duration)
	if v := report.Validation; v != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "valid examples=%d logloss=%.6f auc=%.6f\n", v.Examples, v.LogLoss, v.AUC)
	}
	return nil
}

// openModel restores a checkpoint when path is set and builds a fresh model otherwise.
func openModel(path string, file config.File, logger *zap.Logger) (*ffm.Model, error) {
	if path == "" {
		cfg := file.ModelConfig()
		cfg.Logger = logger
		return ffm.New(cfg)
	}
	m, header, err := serialization.Load(path, logger)
	if err != nil {
		return nil, err
	}
	if header.Model.HashBits != file.Model.HashBits || header.Model.Fields != file.Model.Fields {
		logger.Warn("checkpoint shape overrides config",
			zap.Uint("hash_bits", header.Model.HashBits),
			zap.Int("fields", header.Model.Fields))
	}
	return m, nil
}

// warnFieldOrder warns when a restricted model will see features in input
// order. The restricted inner scan stops at the first out-of-range field, so
// unsorted examples lose interactions silently.
func warnFieldOrder(logger *zap.Logger, m *ffm.Model, opts dataset.Options) {
	if m.Config().Restricted && !opts.SortByField {
		logger.Warn("restricted model without sort_by_field; interactions after an out-of-range field are skipped")
	}
}

// openInput opens path for reading; "-" is stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	//nolint:gosec // G304: data path comes from the command line
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return fh, func() { _ = fh.Close() }, nil
}
