package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/internal/params"
)

const (
	// DefaultTimeout bounds a single prediction process.
	DefaultTimeout = 15 * time.Second

	waitDelay      = 2 * time.Second
	maxStderrBytes = 512
)

// ProcessPredictor runs an external prediction routine once per call.
// The routine receives the raw parameter tokens as a JSON array in its last
// argument and prints a single JSON object on stdout.
type ProcessPredictor struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string

	onStart func(pid int)
}

// NewProcessPredictor constructs a ProcessPredictor. A non-positive timeout selects DefaultTimeout.
func NewProcessPredictor(command string, args []string, timeout time.Duration) *ProcessPredictor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ProcessPredictor{
		Command: command,
		Args:    append([]string(nil), args...),
		Timeout: timeout,
	}
}

// Predict spawns the routine and waits for it. On timeout the routine's
// process group is killed before Predict returns.
func (p *ProcessPredictor) Predict(ctx context.Context, rec params.Record) (Result, error) {
	start := time.Now()
	res, exitCode, err := p.run(ctx, rec)

	attrs := []slog.Attr{
		slog.String("status", statusOf(err)),
		slog.String("predictor", "process"),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}
	if exitCode != 0 {
		attrs = append(attrs, slog.Int("exit_code", exitCode))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()), slog.String("err_code", errorCode(err)))
		logger.Warn(ctx, "service.predictor", "predict.done", attrs...)
		return Result{}, err
	}
	attrs = append(attrs, slog.Float64("size", res.Size), slog.Float64("pdi", res.PdI))
	logger.Info(ctx, "service.predictor", "predict.done", attrs...)
	return res, nil
}

func (p *ProcessPredictor) run(ctx context.Context, rec params.Record) (Result, int, error) {
	if strings.TrimSpace(p.Command) == "" {
		return Result{}, -1, &ProcessError{ExitCode: -1, Err: errors.New("no command configured")}
	}
	payload, err := json.Marshal(rec.Tokens())
	if err != nil {
		return Result{}, -1, fmt.Errorf("%w: encode tokens: %w", ErrGateway, err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), p.Args...), string(payload))
	cmd := exec.CommandContext(callCtx, p.Command, args...)
	cmd.Dir = p.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	prepareCommand(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, -1, &ProcessError{ExitCode: -1, Err: err}
	}
	if p.onStart != nil {
		p.onStart(cmd.Process.Pid)
	}
	waitErr := cmd.Wait()

	if ctxErr := callCtx.Err(); ctxErr != nil {
		if ctx.Err() == nil && errors.Is(ctxErr, context.DeadlineExceeded) {
			return Result{}, -1, &TimeoutError{Timeout: timeout}
		}
		return Result{}, -1, fmt.Errorf("%w: %w", ErrGateway, ctx.Err())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{}, -1, &ProcessError{ExitCode: -1, Stderr: tail(stderr.String()), Err: waitErr}
		}
		code := exitErr.ExitCode()
		if _, derr := decodeResponse(stdout.Bytes()); derr != nil {
			var modelErr *ModelError
			if errors.As(derr, &modelErr) {
				return Result{}, code, modelErr
			}
		}
		return Result{}, code, &ProcessError{ExitCode: code, Stderr: tail(stderr.String()), Err: waitErr}
	}

	res, err := decodeResponse(stdout.Bytes())
	return res, 0, err
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrBytes {
		return s
	}
	return s[len(s)-maxStderrBytes:]
}

func statusOf(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return "PREDICTOR_ERROR"
}
