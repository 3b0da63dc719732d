package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLoss(t *testing.T) {
	got, err := LogLoss([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, got, 1e-12)

	got, err = LogLoss(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = LogLoss([]float32{1}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		labels []float32
		want   float64
	}{
		{"perfect", []float32{-2, -1, 1, 2}, []float32{0, 0, 1, 1}, 1},
		{"inverted", []float32{2, 1, -1, -2}, []float32{0, 0, 1, 1}, 0},
		{"one swap", []float32{0.1, 0.4, 0.35, 0.8}, []float32{0, 0, 1, 1}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.scores, tt.labels)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUCSingleClass(t *testing.T) {
	got, err := AUC([]float32{1, 2}, []float32{1, 1})
	assert.ErrorIs(t, err, ErrSingleClass)
	assert.True(t, math.IsNaN(got))

	_, err = AUC([]float32{1}, []float32{1, 0})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestProgressive(t *testing.T) {
	var p Progressive
	assert.Zero(t, p.Mean())

	p.Add(0, 1)
	p.Add(0, 0)
	assert.Equal(t, int64(2), p.Count())
	assert.InDelta(t, math.Ln2, p.Mean(), 1e-12)
}

func TestProgressiveMerge(t *testing.T) {
	var a, b Progressive
	a.Add(0, 1)
	b.Add(0, 0)
	b.Add(0, 1)

	a.Merge(b)
	assert.Equal(t, int64(3), a.Count())
	assert.InDelta(t, math.Ln2, a.Mean(), 1e-12)
}
