// Package predictor turns validated synthesis parameters into predicted
// particle size and polydispersity index.
package predictor

import (
	"context"

	"github.com/m3rciful/synthbot/internal/params"
)

// Result is one prediction. Confidences are advisory and may be absent.
type Result struct {
	Size           float64
	PdI            float64
	SizeConfidence *float64
	PdIConfidence  *float64
}

// Predictor produces a prediction for a parameter record.
// Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, rec params.Record) (Result, error)
}

// Func adapts a plain function to Predictor.
type Func func(ctx context.Context, rec params.Record) (Result, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, rec params.Record) (Result, error) {
	return f(ctx, rec)
}
