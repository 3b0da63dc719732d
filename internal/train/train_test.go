package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/dropout"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/hashing"
	"github.com/born-ml/ffm/internal/parallel"
)

// separable alternates labels; field 0 carries the label, field 1 is noise.
func separable(n int) string {
	var b strings.Builder
	for i := range n {
		if i%2 == 0 {
			fmt.Fprintf(&b, "1 0:pos 1:x%d 2:y%d\n", i%5, i%3)
		} else {
			fmt.Fprintf(&b, "0 0:neg 1:x%d 2:y%d\n", i%5, i%3)
		}
	}
	return b.String()
}

func newModel(t *testing.T) *ffm.Model {
	t.Helper()
	m, err := ffm.New(ffm.Config{HashBits: 8, Fields: 3, Seed: 1, Eta: 0.2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRunLearnsSeparableData(t *testing.T) {
	m := newModel(t)
	tr, err := New(m, Config{}, nil)
	require.NoError(t, err)

	report, err := tr.Run(context.Background(), strings.NewReader(separable(2000)), strings.NewReader(separable(200)))
	require.NoError(t, err)

	assert.Equal(t, int64(2000), report.Examples)
	assert.Less(t, report.LogLoss, 0.5)
	require.NotNil(t, report.Validation)
	assert.Equal(t, 200, report.Validation.Examples)
	assert.Less(t, report.Validation.LogLoss, report.LogLoss)
	assert.Greater(t, report.Validation.AUC, 0.99)
}

func TestRunWithDropout(t *testing.T) {
	m := newModel(t)
	tr, err := New(m, Config{Keep: 0.5, DropoutSeed: 3, Data: dataset.Options{Normalize: true}}, nil)
	require.NoError(t, err)

	report, err := tr.Run(context.Background(), strings.NewReader(separable(2000)), nil)
	require.NoError(t, err)
	assert.Nil(t, report.Validation)
	assert.Less(t, report.LogLoss, 0.6)
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() ([]float32, Report) {
		m := newModel(t)
		tr, err := New(m, Config{Keep: 0.7, DropoutSeed: 9}, nil)
		require.NoError(t, err)
		report, err := tr.Run(context.Background(), strings.NewReader(separable(300)), nil)
		require.NoError(t, err)
		w, _ := m.State()
		return append([]float32(nil), w...), report
	}

	w1, r1 := run()
	w2, r2 := run()
	assert.Equal(t, w1, w2)
	assert.Equal(t, r1.LogLoss, r2.LogLoss)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newModel(t)
	tr, err := New(m, Config{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := tr.Run(ctx, strings.NewReader(separable(10)), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Examples)
}

func TestRunReportsParseErrors(t *testing.T) {
	m := newModel(t)
	tr, err := New(m, Config{}, nil)
	require.NoError(t, err)

	report, err := tr.Run(context.Background(), strings.NewReader("1 0:a\n1 7:a\n"), nil)
	var perr *dataset.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.ErrorIs(t, err, hashing.ErrFieldRange)
	assert.Equal(t, int64(1), report.Examples)
}

func TestRunLogsProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := newModel(t)
	tr, err := New(m, Config{LogEvery: 100}, zap.New(core))
	require.NoError(t, err)

	_, err = tr.Run(context.Background(), strings.NewReader(separable(350)), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, logs.FilterMessage("progress").Len())
	assert.Equal(t, 1, logs.FilterMessage("training finished").Len())
}

func TestStepMatchesKernelCalls(t *testing.T) {
	a, b := newModel(t), newModel(t)
	tr, err := New(a, Config{}, nil)
	require.NoError(t, err)

	h := hashing.ForModel(b)
	ex, err := dataset.Parse("1 0:u 1:v 2:w", h, dataset.Options{})
	require.NoError(t, err)

	gen, err := dropout.New(1, 0)
	require.NoError(t, err)
	score, mask := tr.Step(ex, gen, nil)
	assert.Equal(t, []uint64{0b111}, mask)

	want := b.Predict(ex.Features, 1, dropout.Full(3))
	assert.Equal(t, want, score)

	// Positive example: the score moves up after the step.
	assert.Greater(t, a.Predict(ex.Features, 1, mask), score)
}

func TestEvaluateSingleClass(t *testing.T) {
	m := newModel(t)
	tr, err := New(m, Config{}, nil)
	require.NoError(t, err)

	eval, err := tr.Evaluate(context.Background(), strings.NewReader("1 0:a\n1 1:b\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, eval.Examples)
	assert.True(t, math.IsNaN(eval.AUC))
}

func TestPredictBatchMatchesPredict(t *testing.T) {
	m := newModel(t)
	examples, err := dataset.NewReader(strings.NewReader(separable(300)), hashing.ForModel(m), dataset.Options{}).ReadAll()
	require.NoError(t, err)

	scores := PredictBatch(m, examples, parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16})
	require.Len(t, scores, len(examples))
	for i, ex := range examples {
		want := m.Predict(ex.Features, ex.Norm, dropout.Full(m.PairCount(ex.Features)))
		if scores[i] != want {
			t.Fatalf("example %d: got %v, want %v", i, scores[i], want)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	m := newModel(t)

	bad := []Config{
		{Keep: 1.5},
		{Keep: -1},
		{PositiveWeight: -2},
		{LogEvery: -1},
		{BatchSize: -1},
		{Workers: -3},
	}
	for _, cfg := range bad {
		_, err := New(m, cfg, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig, "config %+v", cfg)
	}

	tr, err := New(m, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), tr.Config())
}
