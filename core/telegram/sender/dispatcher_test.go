package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3})
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			calls.Add(1)
			return nil
		}))
	}
	d.Close()

	assert.Equal(t, int32(10), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesServerErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.photo", "sendPhoto", func() error {
		if calls.Add(1) < 3 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherGivesUpOnClientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherStopsRetryingAtDeadline(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 10, RetryBackoff: time.Hour, MaxDuration: 20 * time.Millisecond})
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "", func() error {
		return &tele.Error{Code: 500, Description: "Internal Server Error"}
	}))
	d.Close()

	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestEnqueueRejections(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "a", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	noop := func() error { return nil }
	require.NoError(t, d.Enqueue(context.Background(), "b", "", noop))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "c", "", noop), ErrQueueFull)
	assert.Error(t, d.Enqueue(context.Background(), "d", "", nil))

	close(release)
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), "e", "", noop), ErrQueueClosed)
	d.Close()
}

func TestRedactHidesToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-x_y/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, redact(err))
}
