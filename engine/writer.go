package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/nathoo/questline/store"
)

// ErrWriterClosed is returned by Flush after Close.
var ErrWriterClosed = errors.New("writer closed")

// Writer persists save snapshots on a background goroutine. Submissions
// never block; if several arrive for the same key before the goroutine gets
// to them, only the latest is written.
type Writer struct {
	st     store.Store
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string][]byte
	written int
	failed  int

	wake  chan struct{}
	flush chan chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewWriter starts a writer over st.
func NewWriter(st store.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &Writer{
		st:      st,
		logger:  logger,
		pending: map[string][]byte{},
		wake:    make(chan struct{}, 1),
		flush:   make(chan chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit queues data for key. The caller must not modify data afterwards.
func (w *Writer) Submit(key string, data []byte) {
	w.mu.Lock()
	w.pending[key] = data
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until everything submitted before the call is written.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.flush <- ack:
	case <-w.done:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes what is pending and stops the goroutine.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.quit) })
	<-w.done
}

// Stats returns the number of successful and failed writes.
func (w *Writer) Stats() (written, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failed
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case ack := <-w.flush:
			w.drain()
			close(ack)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		batch := w.pending
		if len(batch) == 0 {
			w.mu.Unlock()
			return
		}
		w.pending = map[string][]byte{}
		w.mu.Unlock()

		keys := make([]string, 0, len(batch))
		for k := range batch {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			err := w.st.Set(context.Background(), k, batch[k])
			w.mu.Lock()
			if err != nil {
				w.failed++
			} else {
				w.written++
			}
			w.mu.Unlock()
			if err != nil {
				w.logger.Warn("save write failed", "key", k, "err", err)
			}
		}
	}
}
