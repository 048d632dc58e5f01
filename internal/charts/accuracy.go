// Package charts renders experiment charts as PNG and computes prediction accuracy.
package charts

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/m3rciful/synthbot/internal/experiments"
)

// ErrNotEnoughData is returned when too few experiments qualify for a chart.
var ErrNotEnoughData = errors.New("charts: not enough data")

// Accuracy compares predictions with measurements.
type Accuracy struct {
	N int

	SizePearson float64
	SizeMAPE    float64 // percent; NaN when every predicted size is zero
	PdIPearson  float64
	PdIMAPE     float64

	// Size regression of actual on predicted: actual = Intercept + Slope*predicted.
	Intercept float64
	Slope     float64
	RSquared  float64
}

type pairs struct {
	predSize, actSize []float64
	predPdI, actPdI   []float64
}

func measured(exps []experiments.Experiment) pairs {
	var p pairs
	for i := range exps {
		e := &exps[i]
		if !e.HasActuals() {
			continue
		}
		p.predSize = append(p.predSize, e.PredictedSize)
		p.actSize = append(p.actSize, *e.ActualSize)
		p.predPdI = append(p.predPdI, e.PredictedPdI)
		p.actPdI = append(p.actPdI, *e.ActualPdI)
	}
	return p
}

// Evaluate computes accuracy over experiments that have both measured values.
// At least two such experiments are required.
func Evaluate(exps []experiments.Experiment) (Accuracy, error) {
	p := measured(exps)
	if len(p.actSize) < 2 {
		return Accuracy{}, fmt.Errorf("%w: %d measured experiments", ErrNotEnoughData, len(p.actSize))
	}

	acc := Accuracy{N: len(p.actSize)}
	var err error
	if acc.SizePearson, err = stats.Pearson(p.predSize, p.actSize); err != nil {
		return Accuracy{}, fmt.Errorf("size correlation: %w", err)
	}
	if acc.PdIPearson, err = stats.Pearson(p.predPdI, p.actPdI); err != nil {
		return Accuracy{}, fmt.Errorf("pdi correlation: %w", err)
	}
	acc.SizeMAPE = mape(p.predSize, p.actSize)
	acc.PdIMAPE = mape(p.predPdI, p.actPdI)

	acc.Intercept, acc.Slope = stat.LinearRegression(p.predSize, p.actSize, nil, false)
	acc.RSquared = stat.RSquared(p.predSize, p.actSize, nil, acc.Intercept, acc.Slope)
	return acc, nil
}

// mape is the mean absolute percentage error of predictions against actual
// values, skipping pairs whose actual value is zero.
func mape(pred, actual []float64) float64 {
	errs := make(stats.Float64Data, 0, len(actual))
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		errs = append(errs, math.Abs((actual[i]-pred[i])/actual[i])*100)
	}
	m, err := stats.Mean(errs)
	if err != nil {
		return math.NaN()
	}
	return m
}

// Caption summarizes a.
func (a Accuracy) Caption() string {
	return fmt.Sprintf("n=%d\nSize: r=%.3f, MAPE=%s\nPdI: r=%.3f, MAPE=%s\nFit: actual = %.2f + %.3f*predicted (R²=%.3f)",
		a.N,
		a.SizePearson, pct(a.SizeMAPE),
		a.PdIPearson, pct(a.PdIMAPE),
		a.Intercept, a.Slope, a.RSquared,
	)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}
