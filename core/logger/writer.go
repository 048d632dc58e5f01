package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// lineWriter copies lines to every sink from a single goroutine. Sinks are
// buffered and flushed whenever the queue runs dry, so bursts share one
// syscall per sink.
type lineWriter struct {
	lines   chan []byte
	flushes chan chan error
	quit    chan struct{}
	done    chan struct{}
	stop    sync.Once
	sinks   []*bufio.Writer

	mu  sync.Mutex
	err error
}

func newLineWriter(queue int, sinks ...io.Writer) *lineWriter {
	w := &lineWriter{
		lines:   make(chan []byte, queue),
		flushes: make(chan chan error),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(s, 32<<10))
		}
	}
	go w.run()
	return w
}

func (w *lineWriter) run() {
	defer close(w.done)
	for {
		select {
		case line := <-w.lines:
			w.emit(line)
			if len(w.lines) == 0 {
				w.fail(w.flushSinks())
			}
		case ack := <-w.flushes:
			ack <- w.flushSinks()
		case <-w.quit:
			for {
				select {
				case line := <-w.lines:
					w.emit(line)
				default:
					w.fail(w.flushSinks())
					return
				}
			}
		}
	}
}

func (w *lineWriter) emit(line []byte) {
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			w.fail(err)
		}
	}
}

func (w *lineWriter) flushSinks() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// write queues line, blocking when the queue is full. line must not be
// reused by the caller.
func (w *lineWriter) write(line []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	select {
	case <-w.quit:
		return errWriterClosed
	default:
	}
	select {
	case w.lines <- line:
		return nil
	case <-w.quit:
		return errWriterClosed
	}
}

func (w *lineWriter) flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.firstErr()
	}
}

// close drains queued lines, flushes and stops the goroutine.
func (w *lineWriter) close() error {
	w.stop.Do(func() { close(w.quit) })
	<-w.done
	return w.firstErr()
}

func (w *lineWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *lineWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
