package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/synthbot/core/telegram/state"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

// PredictionFlow collects one parameter line, asks the predictor and stores the experiment.
type PredictionFlow struct {
	predictor predictor.Predictor
	repo      experiments.Repository
}

// NewPredictionFlow constructs a PredictionFlow.
func NewPredictionFlow(p predictor.Predictor, repo experiments.Repository) *PredictionFlow {
	return &PredictionFlow{predictor: p, repo: repo}
}

// Start sends the instructions and returns the initial session.
func (f *PredictionFlow) Start(ctx context.Context, r Responder) (state.Session, error) {
	if err := r.Prompt(ctx, PredictionInstructions); err != nil {
		return state.Session{}, err
	}
	return state.NewSession(FlowPrediction, StateAwaitingParameters), nil
}

// Handle processes a parameter line. Invalid input keeps the session; every
// other outcome ends it.
func (f *PredictionFlow) Handle(ctx context.Context, in Input, sess state.Session) (state.Session, bool, error) {
	if sess.Step != StateAwaitingParameters {
		return sess, false, fmt.Errorf("prediction: unexpected step %q", sess.Step)
	}

	rec, err := params.Parse(params.Tokenize(in.Text))
	if err != nil {
		if !errors.Is(err, params.ErrValidation) {
			return sess, false, err
		}
		if perr := in.Reply.Prompt(ctx, validationMessage(err)); perr != nil {
			return sess, false, perr
		}
		return sess, true, nil
	}

	placeholder, err := in.Reply.Send(ctx, msgProcessing)
	if err != nil {
		return sess, false, err
	}

	res, err := f.predictor.Predict(ctx, rec)
	if err != nil {
		if eerr := in.Reply.Edit(ctx, placeholder, msgPredictFailure); eerr != nil {
			return sess, false, errors.Join(err, eerr)
		}
		return sess, false, reported(fmt.Errorf("prediction: %w", err))
	}

	exp, err := f.repo.Create(ctx, in.UserID, rec, res.Size, res.PdI)
	if err != nil {
		if eerr := in.Reply.Edit(ctx, placeholder, msgGenericFailure); eerr != nil {
			return sess, false, errors.Join(err, eerr)
		}
		return sess, false, reported(fmt.Errorf("prediction: store: %w", err))
	}

	if err := in.Reply.Edit(ctx, placeholder, formatPrediction(exp, rec, res)); err != nil {
		return sess, false, fmt.Errorf("prediction: summary: %w", err)
	}
	return state.Session{}, false, nil
}
