// Package train runs single-pass online training of an FFM model.
//
// Every example is scored before it is learned from, so the running log loss
// reported during a pass is a progressive validation loss.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/dropout"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/hashing"
	"github.com/born-ml/ffm/internal/loss"
	"github.com/born-ml/ffm/internal/metrics"
	"github.com/born-ml/ffm/internal/parallel"
)

// Report summarizes a training pass.
type Report struct {
	Examples   int64         // Training examples consumed
	LogLoss    float64       // Progressive log loss over the pass
	Duration   time.Duration // Wall time of the pass
	Validation *Evaluation   // Set when a validation stream was given
}

// Evaluation is the result of scoring a labeled stream.
type Evaluation struct {
	Examples int     // Examples scored
	LogLoss  float64 // Mean log loss
	AUC      float64 // ROC AUC, NaN when only one class is present
}

// Trainer feeds examples through Predict and Update.
type Trainer struct {
	model  *ffm.Model
	hasher *hashing.Hasher
	cfg    Config
	logger *zap.Logger
}

// New creates a trainer for m. Logger may be nil.
func New(m *ffm.Model, cfg Config, logger *zap.Logger) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Hogwild && cfg.Workers > 1 {
		logger.Warn("hogwild enabled: concurrent updates race on shared weights",
			zap.Int("workers", cfg.Workers))
	}
	return &Trainer{
		model:  m,
		hasher: hashing.ForModel(m),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config returns the trainer settings with defaults applied.
func (t *Trainer) Config() Config {
	return t.cfg
}

// Run makes one pass over train and, when valid is not nil, scores valid
// with the updated model. Cancellation is checked between examples.
func (t *Trainer) Run(ctx context.Context, train, valid io.Reader) (Report, error) {
	start := time.Now()
	t.logger.Info("training started",
		zap.Float64("keep", t.cfg.Keep),
		zap.Int("workers", t.cfg.Workers),
		zap.Bool("hogwild", t.cfg.hogwild()))

	var (
		prog metrics.Progressive
		err  error
	)
	r := dataset.NewReader(train, t.hasher, t.cfg.Data)
	if t.cfg.hogwild() {
		prog, err = t.runHogwild(ctx, r)
	} else {
		prog, err = t.runSequential(ctx, r)
	}

	report := Report{
		Examples: prog.Count(),
		LogLoss:  prog.Mean(),
		Duration: time.Since(start),
	}
	if err != nil {
		return report, err
	}

	t.logger.Info("training finished",
		zap.Int64("examples", report.Examples),
		zap.Float64("logloss", report.LogLoss),
		zap.Duration("elapsed", report.Duration))

	if valid != nil {
		eval, err := t.Evaluate(ctx, valid)
		if err != nil {
			return report, fmt.Errorf("validation: %w", err)
		}
		report.Validation = &eval
	}

	return report, nil
}

func (t *Trainer) runSequential(ctx context.Context, r *dataset.Reader) (metrics.Progressive, error) {
	var prog metrics.Progressive

	gen, err := dropout.New(t.cfg.Keep, t.cfg.DropoutSeed)
	if err != nil {
		return prog, err
	}

	var mask []uint64
	for {
		if err := ctx.Err(); err != nil {
			return prog, err
		}

		ex, err := r.Next()
		if errors.Is(err, io.EOF) {
			return prog, nil
		}
		if err != nil {
			return prog, err
		}

		var score float32
		score, mask = t.Step(ex, gen, mask)
		prog.Add(score, ex.Label)

		if t.cfg.LogEvery > 0 && prog.Count()%t.cfg.LogEvery == 0 {
			t.logger.Info("progress",
				zap.Int64("examples", prog.Count()),
				zap.Float64("logloss", prog.Mean()))
		}
	}
}

func (t *Trainer) runHogwild(ctx context.Context, r *dataset.Reader) (metrics.Progressive, error) {
	var prog metrics.Progressive

	workers := t.cfg.Workers
	gens := make([]*dropout.Generator, workers)
	masks := make([][]uint64, workers)
	for i := range gens {
		g, err := dropout.New(t.cfg.Keep, t.cfg.DropoutSeed+uint64(i))
		if err != nil {
			return prog, err
		}
		gens[i] = g
	}

	pcfg := parallel.WithWorkers(workers)
	pcfg.MinChunkSize = 1

	batch := make([]dataset.Example, 0, t.cfg.BatchSize)
	partial := make([]metrics.Progressive, workers)
	nextLog := t.cfg.LogEvery

	for {
		if err := ctx.Err(); err != nil {
			return prog, err
		}

		batch = batch[:0]
		var readErr error
		for len(batch) < t.cfg.BatchSize {
			ex, err := r.Next()
			if err != nil {
				readErr = err
				break
			}
			batch = append(batch, ex)
		}

		clear(partial)
		parallel.ForChunks(len(batch), func(w, start, end int) {
			for _, ex := range batch[start:end] {
				var score float32
				score, masks[w] = t.Step(ex, gens[w], masks[w])
				partial[w].Add(score, ex.Label)
			}
		}, pcfg)
		for _, p := range partial {
			prog.Merge(p)
		}

		if t.cfg.LogEvery > 0 && prog.Count() >= nextLog {
			t.logger.Info("progress",
				zap.Int64("examples", prog.Count()),
				zap.Float64("logloss", prog.Mean()))
			for nextLog <= prog.Count() {
				nextLog += t.cfg.LogEvery
			}
		}

		if errors.Is(readErr, io.EOF) {
			return prog, nil
		}
		if readErr != nil {
			return prog, readErr
		}
	}
}

// Step scores ex under a fresh dropout mask, applies the update and returns
// the pre-update score. mask is scratch space and is returned for reuse.
func (t *Trainer) Step(ex dataset.Example, gen *dropout.Generator, mask []uint64) (float32, []uint64) {
	mask = gen.MaskInto(mask, t.model.PairCount(ex.Features))

	// Inverted dropout keeps the expected interaction term unchanged.
	norm := ex.Norm * float32(gen.Keep())

	score := t.model.Predict(ex.Features, norm, mask)
	weight := float32(1)
	if ex.Label > 0 {
		weight = t.cfg.PositiveWeight
	}
	t.model.Update(ex.Features, norm, loss.Kappa(score, ex.Label, weight), mask)

	return score, mask
}

// Evaluate scores every example in r with all pairs enabled.
func (t *Trainer) Evaluate(ctx context.Context, r io.Reader) (Evaluation, error) {
	examples, err := dataset.NewReader(r, t.hasher, t.cfg.Data).ReadAll()
	if err != nil {
		return Evaluation{}, err
	}
	if err := ctx.Err(); err != nil {
		return Evaluation{}, err
	}

	scores := PredictBatch(t.model, examples, parallel.WithWorkers(t.cfg.Workers))
	labels := make([]float32, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Label
	}

	eval := Evaluation{Examples: len(examples)}
	if eval.LogLoss, err = metrics.LogLoss(scores, labels); err != nil {
		return eval, err
	}
	eval.AUC, err = metrics.AUC(scores, labels)
	if errors.Is(err, metrics.ErrSingleClass) {
		t.logger.Warn("validation set has a single class; AUC undefined")
		eval.AUC = math.NaN()
	} else if err != nil {
		return eval, err
	}

	t.logger.Info("validation",
		zap.Int("examples", eval.Examples),
		zap.Float64("logloss", eval.LogLoss),
		zap.Float64("auc", eval.AUC))

	return eval, nil
}

// PredictBatch returns the raw score of every example with all pairs enabled.
// Predict does not write model state, so chunks run concurrently.
func PredictBatch(m *ffm.Model, examples []dataset.Example, cfg parallel.Config) []float32 {
	scores := make([]float32, len(examples))
	parallel.ForChunks(len(examples), func(_, start, end int) {
		var mask []uint64
		for i := start; i < end; i++ {
			ex := examples[i]
			mask = dropout.FullInto(mask, m.PairCount(ex.Features))
			scores[i] = m.Predict(ex.Features, ex.Norm, mask)
		}
	}, cfg)
	return scores
}
