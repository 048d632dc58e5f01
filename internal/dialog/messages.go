package dialog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

const (
	msgGenericFailure   = "Something went wrong. Please start again."
	msgPredictFailure   = "Prediction failed. Please try again later with /predict."
	msgProcessing       = "⏳ Processing parameters..."
	msgCancelled        = "Cancelled."
	msgNothingToCancel  = "Nothing to cancel."
	msgAddResultUsage   = "Usage: /add_result <experiment id>"
	msgNotFound         = "Experiment not found."
	msgOverwriteAborted = "Overwrite cancelled. The stored results were not changed."
	msgAskActualPdI     = "Enter the measured PdI (a number >= 0):"
	msgBadActualSize    = "The size must be a positive number. Try again or send /cancel."
	msgBadActualPdI     = "The PdI must be a number >= 0. Try again or send /cancel."
)

// PredictionInstructions is sent when the prediction flow starts.
const PredictionInstructions = `Send the synthesis parameters on one line, separated by spaces:

1. Eu concentration (>= 0)
2. Phenanthroline concentration (>= 0)
3. Ligand concentration (>= 0)
4. Ligand type (0-3)
5. pH (7-11)
6. Addition volume (> 0)
7. Addition time (> 0)
8. Addition rate (> 0, optional; volume/time when omitted)

Example: 1 1 3 2 11 500 30

Send /cancel to stop.`

func validationMessage(err error) string {
	var countErr *params.CountError
	if errors.As(err, &countErr) {
		return fmt.Sprintf("Expected %d or %d values, got %d. Try again or send /cancel.",
			params.MinTokens, params.MaxTokens, countErr.Got)
	}
	return "Invalid input: " + err.Error() + ". Try again or send /cancel."
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatParams renders a record one field per line.
func FormatParams(rec params.Record) string {
	var b strings.Builder
	for _, f := range params.Fields {
		v := rec.Value(f)
		s := FormatNumber(v)
		if f == params.FieldRate {
			s = strconv.FormatFloat(v, 'f', 2, 64)
			if rec.RateDerived() {
				s += " (derived)"
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", f, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPrediction(e *experiments.Experiment, rec params.Record, res predictor.Result) string {
	var b strings.Builder
	b.WriteString("Prediction complete\n\n")
	b.WriteString(FormatParams(rec))
	fmt.Fprintf(&b, "\n\nPredicted size: %s nm", FormatNumber(res.Size))
	if res.SizeConfidence != nil {
		fmt.Fprintf(&b, " (confidence %.2f)", *res.SizeConfidence)
	}
	fmt.Fprintf(&b, "\nPredicted PdI: %s", FormatNumber(res.PdI))
	if res.PdIConfidence != nil {
		fmt.Fprintf(&b, " (confidence %.2f)", *res.PdIConfidence)
	}
	fmt.Fprintf(&b, "\n\nExperiment ID: %s\nAdd measured results with /add_result %s", e.ID, e.ID)
	return b.String()
}

func formatCurrent(e *experiments.Experiment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment %s\n\n", e.ID)
	b.WriteString(FormatParams(e.Params()))
	fmt.Fprintf(&b, "\n\nPredicted size: %s nm\nPredicted PdI: %s", FormatNumber(e.PredictedSize), FormatNumber(e.PredictedPdI))
	if e.ActualSize != nil {
		fmt.Fprintf(&b, "\nMeasured size: %s nm", FormatNumber(*e.ActualSize))
	}
	if e.ActualPdI != nil {
		fmt.Fprintf(&b, "\nMeasured PdI: %s", FormatNumber(*e.ActualPdI))
	}
	return b.String()
}

func askActualSize(e *experiments.Experiment) string {
	return formatCurrent(e) + "\n\nEnter the measured size in nm (a number > 0):"
}

func askOverwrite(e *experiments.Experiment) string {
	return formatCurrent(e) + fmt.Sprintf("\n\nThis experiment already has measured results. Send %s to replace them; anything else cancels.", OverwriteToken)
}

// FormatDiff renders a percentage difference, or n/a when it is undefined.
func FormatDiff(predicted, actual float64) string {
	d, ok := experiments.PercentDiff(predicted, actual)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", d)
}

func formatResultSummary(e *experiments.Experiment) string {
	size, pdi := *e.ActualSize, *e.ActualPdI
	return fmt.Sprintf(`Results saved for %s

Size: predicted %s nm, measured %s nm (%s)
PdI: predicted %s, measured %s (%s)`,
		e.ID,
		FormatNumber(e.PredictedSize), FormatNumber(size), FormatDiff(e.PredictedSize, size),
		FormatNumber(e.PredictedPdI), FormatNumber(pdi), FormatDiff(e.PredictedPdI, pdi),
	)
}
