package dialog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/synthbot/core/telegram/state"
	"github.com/m3rciful/synthbot/internal/experiments"
)

// ResultEntryFlow records measured size and PdI for a stored experiment.
type ResultEntryFlow struct {
	repo experiments.Repository
}

// NewResultEntryFlow constructs a ResultEntryFlow.
func NewResultEntryFlow(repo experiments.Repository) *ResultEntryFlow {
	return &ResultEntryFlow{repo: repo}
}

// Start looks up the experiment and opens a session. It returns keep false
// when no session should exist: missing id or unknown experiment.
func (f *ResultEntryFlow) Start(ctx context.Context, in Input, experimentID string) (state.Session, bool, error) {
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		_, err := in.Reply.Send(ctx, msgAddResultUsage)
		return state.Session{}, false, err
	}

	exp, err := f.repo.FindByID(ctx, experimentID, in.UserID)
	if errors.Is(err, experiments.ErrNotFound) {
		_, err = in.Reply.Send(ctx, msgNotFound)
		return state.Session{}, false, err
	}
	if err != nil {
		return state.Session{}, false, fmt.Errorf("result entry: lookup: %w", err)
	}

	sess := state.NewSession(FlowResultEntry, StateAwaitingActualSize).With(keyExperimentID, exp.ID)
	prompt := askActualSize(exp)
	if exp.HasActuals() {
		sess = sess.At(StateAwaitingOverwrite)
		prompt = askOverwrite(exp)
	}
	if err := in.Reply.Prompt(ctx, prompt); err != nil {
		return state.Session{}, false, err
	}
	return sess, true, nil
}

// Handle advances the flow by one answer.
func (f *ResultEntryFlow) Handle(ctx context.Context, in Input, sess state.Session) (state.Session, bool, error) {
	id, ok := sess.String(keyExperimentID)
	if !ok {
		return sess, false, errors.New("result entry: session has no experiment id")
	}

	switch sess.Step {
	case StateAwaitingOverwrite:
		if strings.TrimSpace(in.Text) != OverwriteToken {
			_, err := in.Reply.Send(ctx, msgOverwriteAborted)
			return sess, false, err
		}
		exp, err := f.lookup(ctx, in, id)
		if err != nil || exp == nil {
			return sess, false, err
		}
		if err := in.Reply.Prompt(ctx, askActualSize(exp)); err != nil {
			return sess, false, err
		}
		return sess.At(StateAwaitingActualSize), true, nil

	case StateAwaitingActualSize:
		v, ok := parseMeasurement(in.Text)
		if !ok || v <= 0 {
			return sess, true, in.Reply.Prompt(ctx, msgBadActualSize)
		}
		if err := in.Reply.Prompt(ctx, msgAskActualPdI); err != nil {
			return sess, false, err
		}
		return sess.With(keyActualSize, v).At(StateAwaitingActualPdI), true, nil

	case StateAwaitingActualPdI:
		v, ok := parseMeasurement(in.Text)
		if !ok || v < 0 {
			return sess, true, in.Reply.Prompt(ctx, msgBadActualPdI)
		}
		size, ok := sess.Float64(keyActualSize)
		if !ok {
			return sess, false, errors.New("result entry: session has no actual size")
		}
		exp, err := f.lookup(ctx, in, id)
		if err != nil || exp == nil {
			return sess, false, err
		}
		exp.SetActuals(size, v)
		if err := f.repo.Save(ctx, exp); err != nil {
			return sess, false, fmt.Errorf("result entry: save: %w", err)
		}
		_, err = in.Reply.Send(ctx, formatResultSummary(exp))
		return state.Session{}, false, err
	}
	return sess, false, fmt.Errorf("result entry: unexpected step %q", sess.Step)
}

// lookup re-reads the experiment. A vanished experiment is reported to the
// user and yields a nil experiment with no error.
func (f *ResultEntryFlow) lookup(ctx context.Context, in Input, id string) (*experiments.Experiment, error) {
	exp, err := f.repo.FindByID(ctx, id, in.UserID)
	if errors.Is(err, experiments.ErrNotFound) {
		_, serr := in.Reply.Send(ctx, msgNotFound)
		return nil, serr
	}
	if err != nil {
		return nil, fmt.Errorf("result entry: lookup: %w", err)
	}
	return exp, nil
}

// parseMeasurement accepts a finite number with either '.' or ',' as decimal separator.
func parseMeasurement(text string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
