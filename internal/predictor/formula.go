package predictor

import (
	"context"
	"log/slog"
	"math"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/internal/params"
)

// FormulaPredictor is a deterministic in-process stand-in for the external
// routine. Its numbers carry no physical meaning.
type FormulaPredictor struct{}

// ligandShift is added to the size per ligand type.
var ligandShift = [...]float64{0, 12.5, 18, 7.5}

// Predict computes size and PdI from the record without side effects.
func (FormulaPredictor) Predict(ctx context.Context, rec params.Record) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	shift := 0.0
	if rec.LigandType >= 0 && rec.LigandType < len(ligandShift) {
		shift = ligandShift[rec.LigandType]
	}
	size := 40 +
		8*rec.EuConcentration +
		3*rec.PhenConcentration +
		1.5*rec.LigandConcentration +
		shift +
		4*float64(rec.PH-7) +
		10*math.Log1p(rec.AdditionRate)
	pdi := 0.1 + 0.02*rec.AdditionRate/(1+rec.AdditionRate) + 0.01*float64(rec.LigandType)

	res := Result{Size: round(size, 2), PdI: round(pdi, 4)}
	logger.Debug(ctx, "service.predictor", "predict.done",
		slog.String("status", "ok"),
		slog.String("predictor", "formula"),
		slog.Float64("size", res.Size),
		slog.Float64("pdi", res.PdI),
	)
	return res, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
