package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/state"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/predictor"
)

// Dispatcher is the single entry point for everything that touches a
// session. Each call holds the user's lock for its whole duration, so one
// user's messages are handled strictly in arrival order while different
// users proceed in parallel.
type Dispatcher struct {
	store       state.Store
	prediction  *PredictionFlow
	resultEntry *ResultEntryFlow
	controllers map[string]controller
}

// NewDispatcher wires both flows to store.
func NewDispatcher(store state.Store, p predictor.Predictor, repo experiments.Repository) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		prediction:  NewPredictionFlow(p, repo),
		resultEntry: NewResultEntryFlow(repo),
	}
	d.controllers = map[string]controller{
		FlowPrediction:  d.prediction,
		FlowResultEntry: d.resultEntry,
	}
	return d
}

// InProgress reports whether the user has an open session.
func (d *Dispatcher) InProgress(userID int64) bool {
	_, ok := d.store.Get(userID)
	return ok
}

// StartPrediction opens the prediction flow, replacing any open session.
func (d *Dispatcher) StartPrediction(ctx context.Context, userID int64, r Responder) error {
	unlock := d.store.Lock(userID)
	defer unlock()

	d.replace(ctx, userID, FlowPrediction)
	sess, err := d.prediction.Start(ctx, r)
	if err != nil {
		return d.abort(ctx, userID, state.NewSession(FlowPrediction, StateAwaitingParameters), r, err)
	}
	d.store.Set(userID, sess)
	logTransition(ctx, userID, sess, "start")
	return nil
}

// StartResultEntry opens the result-entry flow for experimentID. An open
// session is replaced only once the experiment is found; a missing or
// unknown id leaves it untouched.
func (d *Dispatcher) StartResultEntry(ctx context.Context, userID int64, experimentID string, r Responder) error {
	unlock := d.store.Lock(userID)
	defer unlock()

	in := Input{UserID: userID, Reply: r}
	sess, keep, err := d.resultEntry.Start(ctx, in, experimentID)
	if err != nil {
		return d.fail(ctx, userID, state.NewSession(FlowResultEntry, ""), r, err)
	}
	if keep {
		d.replace(ctx, userID, FlowResultEntry)
		d.store.Set(userID, sess)
		logTransition(ctx, userID, sess, "start")
	}
	return nil
}

// Cancel clears the user's session and acknowledges it.
func (d *Dispatcher) Cancel(ctx context.Context, userID int64, r Responder) error {
	unlock := d.store.Lock(userID)
	defer unlock()
	return d.cancelLocked(ctx, userID, r)
}

func (d *Dispatcher) cancelLocked(ctx context.Context, userID int64, r Responder) error {
	sess, ok := d.store.Get(userID)
	d.store.Clear(userID)
	if !ok {
		_, err := r.Send(ctx, msgNothingToCancel)
		return err
	}
	logTransition(ctx, userID, sess, "cancel")
	_, err := r.Send(ctx, msgCancelled)
	return err
}

// HandleText routes free text to the controller owning the user's session.
// It reports false when the user has no session and the text was ignored.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string, r Responder) (bool, error) {
	unlock := d.store.Lock(userID)
	defer unlock()

	sess, ok := d.store.Get(userID)
	if !ok {
		return false, nil
	}
	if IsCancel(text) {
		return true, d.cancelLocked(ctx, userID, r)
	}

	ctrl, ok := d.controllers[sess.Flow]
	if !ok {
		return true, d.abort(ctx, userID, sess, r, fmt.Errorf("dialog: unknown flow %q", sess.Flow))
	}

	next, keep, err := ctrl.Handle(ctx, Input{UserID: userID, Text: text, Reply: r}, sess)
	if err != nil {
		return true, d.abort(ctx, userID, sess, r, err)
	}
	if !keep {
		d.store.Clear(userID)
		logTransition(ctx, userID, sess, "done")
		return true, nil
	}
	d.store.Set(userID, next)
	if next.Step != sess.Step {
		logTransition(ctx, userID, next, "advance")
	}
	return true, nil
}

func (d *Dispatcher) replace(ctx context.Context, userID int64, flow string) {
	if prev, ok := d.store.Get(userID); ok {
		d.store.Clear(userID)
		logger.Debug(ctx, "dialog", "dialog.replace",
			slog.Int64("user_id", userID),
			slog.String("flow", prev.Flow),
			slog.String("state", string(prev.Step)),
			slog.String("next_flow", flow),
		)
	}
}

// abort clears the session, logs err and tells the user unless the
// controller already did. The error is returned for handler summaries.
func (d *Dispatcher) abort(ctx context.Context, userID int64, sess state.Session, r Responder, err error) error {
	d.store.Clear(userID)
	return d.fail(ctx, userID, sess, r, err)
}

// fail is abort without touching the store.
func (d *Dispatcher) fail(ctx context.Context, userID int64, sess state.Session, r Responder, err error) error {
	logger.Error(ctx, "dialog", "dialog.abort",
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.String("flow", sess.Flow),
		slog.String("state", string(sess.Step)),
		slog.String("err", err.Error()),
		slog.String("err_code", errorCode(err)),
	)
	if !wasReported(err) && r != nil {
		if _, serr := r.Send(ctx, msgGenericFailure); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

func logTransition(ctx context.Context, userID int64, sess state.Session, outcome string) {
	logger.Debug(ctx, "dialog", "dialog."+outcome,
		slog.Int64("user_id", userID),
		slog.String("flow", sess.Flow),
		slog.String("state", string(sess.Step)),
	)
}

func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return "DIALOG_ERROR"
}
