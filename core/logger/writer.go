package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// writeOp is either a payload to write or, when ack is set, a flush request.
type writeOp struct {
	data []byte
	ack  chan error
}

// asyncWriter fans records out to its sinks from a single goroutine.
// The first sink error is sticky and returned by every later call.
type asyncWriter struct {
	ops   chan writeOp
	done  chan struct{}
	sinks []*bufio.Writer

	gate   sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		ops:  make(chan writeOp, 256),
		done: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- w.flush()
			continue
		}
		w.fail(w.write(op.data))
	}
	w.fail(w.flush())
}

// Write copies p and queues it. A full queue blocks the caller instead of dropping records.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.ops <- writeOp{data: append([]byte(nil), p...)}
	return nil
}

// Flush blocks until everything queued before it reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.Err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.gate.RLock()
	if w.closed {
		w.gate.RUnlock()
		return errWriterClosed
	}
	w.ops <- writeOp{ack: ack}
	w.gate.RUnlock()
	return <-ack
}

// Close drains the queue and returns the sticky error, if any.
func (w *asyncWriter) Close() error {
	w.gate.Lock()
	if !w.closed {
		w.closed = true
		close(w.ops)
	}
	w.gate.Unlock()
	<-w.done
	return w.Err()
}

// Err returns the first sink error.
func (w *asyncWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) write(p []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}
