// Package state owns all mutable domain state and serializes its persistence.
//
// The three domain maps live inside a single Snapshot guarded by a RWMutex;
// every mutation goes through Update, every read through View, and no caller
// ever keeps a reference into the snapshot. Persistence is serialized by a
// single-consumer flush queue so that snapshots reach the store strictly in
// mutation order.
package state

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/store"
)

const defaultQueueSize = 64

type Config struct {
	Store store.Store

	// QueueSize bounds how many flushes may be waiting behind the in-flight
	// one. Zero means the default.
	QueueSize int
}

type Engine struct {
	mu       sync.RWMutex
	snapshot *domain.Snapshot

	store store.Store
	queue chan flushRequest
	wg    sync.WaitGroup
}

// New creates an engine with empty state and starts its flush worker. Caller
// should Hydrate before serving and Close on shutdown.
func New(c Config) *Engine {
	size := c.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	e := &Engine{
		snapshot: domain.NewSnapshot(),
		store:    c.Store,
		queue:    make(chan flushRequest, size),
	}

	e.wg.Add(1)
	go e.flushLoop()

	return e
}

// Hydrate loads the last persisted snapshot into memory. A missing snapshot is
// not an error: the engine keeps its empty state (first run).
func (e *Engine) Hydrate(ctx context.Context) error {
	data, err := e.store.Load(ctx)
	if stderrors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "state: no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: hydrate: %w", err)
	}

	snap := domain.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return fmt.Errorf("state: decode snapshot: %w", err)
	}

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	return nil
}

// Update runs fn against the snapshot under the write lock, then persists the
// resulting state. The snapshot bytes are captured and queued while the lock
// is still held, so flushes reach the store in mutation order and each one
// reflects the full in-memory state at the moment its mutation completed.
//
// If fn returns an error nothing is flushed. If persistence fails the
// in-memory mutation is NOT rolled back; the Unavailable error tells the
// caller the mutation is applied but not yet durable.
func (e *Engine) Update(ctx context.Context, fn func(s *domain.Snapshot) error) error {
	e.mu.Lock()

	if err := fn(e.snapshot); err != nil {
		e.mu.Unlock()
		return err
	}

	data, err := json.Marshal(e.snapshot)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("state: encode snapshot: %w", err)
	}

	reply := e.enqueue(ctx, data)
	e.mu.Unlock()

	if err := <-reply; err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("mutation applied but snapshot not persisted"),
			errors.WithCause(err),
		)
	}

	return nil
}

// View runs fn with shared read access to the snapshot. fn must not mutate or
// retain anything it is given; copy out what the response needs.
func (e *Engine) View(fn func(s *domain.Snapshot)) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fn(e.snapshot)
}

// Close drains pending flushes and stops the worker. Update must not be
// called after Close.
func (e *Engine) Close() {
	close(e.queue)
	e.wg.Wait()
}
