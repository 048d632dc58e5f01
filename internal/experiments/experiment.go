// Package experiments stores synthesis experiments: the parameters a user
// submitted, what the predictor said, and what was measured afterwards.
package experiments

import (
	"math"
	"time"

	"github.com/m3rciful/synthbot/internal/params"
)

// Experiment is one stored prediction and its optional measured outcome.
type Experiment struct {
	ID                  string    `db:"id"`
	UserID              int64     `db:"user_id"`
	EuConcentration     float64   `db:"eu_concentration"`
	PhenConcentration   float64   `db:"phen_concentration"`
	LigandConcentration float64   `db:"ligand_concentration"`
	LigandType          int       `db:"ligand_type"`
	PH                  int       `db:"ph"`
	AdditionVolume      float64   `db:"addition_volume"`
	AdditionTime        float64   `db:"addition_time"`
	AdditionRate        float64   `db:"addition_rate"`
	PredictedSize       float64   `db:"predicted_size"`
	PredictedPdI        float64   `db:"predicted_pdi"`
	ActualSize          *float64  `db:"actual_size"`
	ActualPdI           *float64  `db:"actual_pdi"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// Params returns the stored parameters as a record.
func (e *Experiment) Params() params.Record {
	return params.FromStored(
		e.EuConcentration, e.PhenConcentration, e.LigandConcentration,
		e.LigandType, e.PH,
		e.AdditionVolume, e.AdditionTime, e.AdditionRate,
	)
}

// HasActuals reports whether both measured values are present.
func (e *Experiment) HasActuals() bool {
	return e.ActualSize != nil && e.ActualPdI != nil
}

// SetActuals records measured values.
func (e *Experiment) SetActuals(size, pdi float64) {
	e.ActualSize = &size
	e.ActualPdI = &pdi
}

// Order sorts FindAllByUser results by creation time.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// PercentDiff returns (actual - predicted) / predicted as a percentage rounded
// to one decimal place. It reports false when predicted is zero.
func PercentDiff(predicted, actual float64) (float64, bool) {
	if predicted == 0 {
		return 0, false
	}
	d := (actual - predicted) / predicted * 100
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return math.Round(d*10) / 10, true
}
