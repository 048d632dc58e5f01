// Package dialog drives the multi-step conversations that collect synthesis
// parameters and measured results. It is transport agnostic: replies go
// through a Responder and sessions live in a state.Store.
package dialog

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/synthbot/core/telegram/state"
)

// Flow tags.
const (
	FlowPrediction  = "prediction"
	FlowResultEntry = "result_entry"
)

// Steps.
const (
	StateAwaitingParameters state.Step = "awaiting_parameters"
	StateAwaitingOverwrite  state.Step = "awaiting_overwrite_confirmation"
	StateAwaitingActualSize state.Step = "awaiting_actual_size"
	StateAwaitingActualPdI  state.Step = "awaiting_actual_pdi"
)

const (
	keyExperimentID = "experiment_id"
	keyActualSize   = "actual_size"
)

const (
	// CancelToken exits any open session. Matched case-insensitively after trimming.
	CancelToken = "/cancel"
	// OverwriteToken confirms replacing measured values. Matched exactly after trimming.
	OverwriteToken = "OVERWRITE"
)

// IsCancel reports whether text is the cancel token.
func IsCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), CancelToken)
}

// Message references a sent message so it can be edited later.
type Message struct {
	ID     string
	ChatID int64
}

// Responder delivers replies to the user a step belongs to.
type Responder interface {
	// Send delivers text and returns a reference to it.
	Send(ctx context.Context, text string) (Message, error)
	// Prompt delivers text that expects an answer; transports may attach a cancel control.
	Prompt(ctx context.Context, text string) error
	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, msg Message, text string) error
}

// Input is one free-text message routed to a controller.
type Input struct {
	UserID int64
	Text   string
	Reply  Responder
}

// controller handles text for one flow. It returns the next session and
// whether to keep it; keep false clears the session.
type controller interface {
	Handle(ctx context.Context, in Input, sess state.Session) (next state.Session, keep bool, err error)
}

// reportedError marks failures the controller already told the user about.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func wasReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
