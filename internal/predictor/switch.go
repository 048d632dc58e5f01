package predictor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/synthbot/internal/params"
)

// Mode selects which Predictor a Switch delegates to.
type Mode string

const (
	ModeProcess Mode = "process"
	ModeFormula Mode = "formula"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeProcess, ModeFormula:
		return m, nil
	default:
		return "", fmt.Errorf("unknown predictor mode %q (want %s or %s)", s, ModeProcess, ModeFormula)
	}
}

// Switch routes predictions to the active mode. The mode may change at
// runtime; calls already in flight finish on the predictor they started with.
type Switch struct {
	process Predictor
	formula Predictor
	mode    atomic.Value // Mode
}

// NewSwitch builds a Switch starting in mode.
func NewSwitch(process, formula Predictor, mode Mode) *Switch {
	s := &Switch{process: process, formula: formula}
	s.mode.Store(mode)
	return s
}

// Mode returns the active mode.
func (s *Switch) Mode() Mode {
	return s.mode.Load().(Mode)
}

// SetMode changes the active mode.
func (s *Switch) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	s.mode.Store(m)
	return nil
}

// Predict delegates to the active predictor.
func (s *Switch) Predict(ctx context.Context, rec params.Record) (Result, error) {
	p := s.process
	if s.Mode() == ModeFormula {
		p = s.formula
	}
	if p == nil {
		return Result{}, fmt.Errorf("%w: no predictor for mode %s", ErrGateway, s.Mode())
	}
	return p.Predict(ctx, rec)
}
