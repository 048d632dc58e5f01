// Package sender runs outbound Telegram calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	botToken = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tunes the worker pool. Zero fields take defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff grows linearly with the attempt number unless Telegram
	// names its own retry_after.
	RetryBackoff time.Duration
	// MaxDuration caps one job including every retry.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher executes queued calls on a fixed pool of workers.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	queue  chan job

	workers sync.WaitGroup
	failed  atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queue: make(chan job, opts.QueueSize)}
	d.workers.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.workers.Done()
			for j := range d.queue {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue hands run to a worker without waiting. run may be called more than
// once when a transient failure is retried.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs, lets the workers finish the queued ones and waits.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) process(j job) {
	parent := j.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", j.attrs()...)
	attempts, err := d.try(ctx, j)
	took := slog.Duration("duration", logger.Took(start))

	if err != nil {
		d.failed.Add(1)
		logger.Error(ctx, "tg.sender", "send.fail", j.attrs(
			slog.String("status", "fail"),
			slog.String("err", redact(err)),
			slog.String("error_kind", string(netutil.Classify(err))),
			slog.Int("attempts", attempts),
			took,
		)...)
		return
	}
	if attempts > 1 {
		logger.Info(ctx, "tg.sender", "send.retry.success", j.attrs(slog.Int("attempts", attempts), took)...)
		return
	}
	logger.Debug(ctx, "tg.sender", "send.success", j.attrs(took)...)
}

// try runs the job until it succeeds, fails permanently, runs out of retries
// or ctx expires. It returns how many times run was called.
func (d *Dispatcher) try(ctx context.Context, j job) (int, error) {
	for n := 1; ; n++ {
		err := j.run()
		if err == nil {
			return n, nil
		}
		kind := netutil.Classify(err)
		if !kind.Retryable() || n > d.opts.MaxRetries {
			return n, err
		}
		delay := netutil.RetryAfter(err)
		if delay == 0 {
			delay = d.opts.RetryBackoff * time.Duration(n)
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff", j.attrs(
			slog.Int("attempt", n),
			slog.String("error_kind", string(kind)),
			slog.Duration("backoff", delay),
		)...)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// redact strips bot tokens that telebot embeds in request URLs.
func redact(err error) string {
	return botToken.ReplaceAllString(err.Error(), "bot<redacted>")
}
