// Package metrics scores FFM predictions against binary labels.
package metrics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/ffm/internal/loss"
)

// Common errors.
var (
	ErrLengthMismatch = errors.New("scores and labels differ in length")
	ErrSingleClass    = errors.New("AUC needs both positive and negative labels")
)

// LogLoss returns the mean logistic loss of raw scores against labels.
func LogLoss(scores, labels []float32) (float64, error) {
	if len(scores) != len(labels) {
		return 0, ErrLengthMismatch
	}
	if len(scores) == 0 {
		return 0, nil
	}
	losses := make([]float64, len(scores))
	for i, s := range scores {
		losses[i] = loss.LogLoss(s, labels[i])
	}
	return floats.Sum(losses) / float64(len(losses)), nil
}

// AUC returns the area under the ROC curve of raw scores against labels.
func AUC(scores, labels []float32) (float64, error) {
	if len(scores) != len(labels) {
		return 0, ErrLengthMismatch
	}

	y := make([]float64, len(scores))
	classes := make([]bool, len(scores))
	var pos int
	for i, s := range scores {
		y[i] = float64(s)
		classes[i] = labels[i] > 0.5
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(scores) {
		return math.NaN(), ErrSingleClass
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Progressive tracks the running mean loss of a stream of predictions.
type Progressive struct {
	count int64
	sum   float64
}

// Add records one prediction made before the example was trained on.
func (p *Progressive) Add(score, y float32) {
	p.count++
	p.sum += loss.LogLoss(score, y)
}

// Merge folds the predictions recorded by o into p.
func (p *Progressive) Merge(o Progressive) {
	p.count += o.count
	p.sum += o.sum
}

// Count returns the number of recorded predictions.
func (p *Progressive) Count() int64 {
	return p.count
}

// Mean returns the mean loss, or 0 before the first prediction.
func (p *Progressive) Mean() float64 {
	if p.count == 0 {
		return 0
	}
	return p.sum / float64(p.count)
}
