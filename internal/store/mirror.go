package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

// refetchTimeout bounds the re-fetch triggered by a change event. The event
// loop runs detached from any request, so it carries its own deadline.
const refetchTimeout = 15 * time.Second

// mirror owns the in-memory copy of one table slice. It performs the initial
// fetch, re-fetches in full whenever a change event for its table arrives
// (simple and correct at two-user scale), and guards every access against
// use after Close. Each mirror is exclusively owned by its store; no entity
// is mutated by more than one store.
type mirror[T any] struct {
	mu     sync.RWMutex
	items  []T
	closed bool

	table string
	fetch func(ctx context.Context) ([]T, error)
	stop  func()
	done  chan struct{}
}

// openMirror fetches the initial snapshot, subscribes to the table's change
// feed, and starts the fan-in loop. The caller must Close the mirror on
// teardown or the subscription leaks.
func openMirror[T any](ctx context.Context, gw gateway.Gateway, table string, fetch func(ctx context.Context) ([]T, error), subOpts ...gateway.SubOption) (*mirror[T], error) {
	m := &mirror[T]{
		table: table,
		fetch: fetch,
		done:  make(chan struct{}),
	}
	if err := m.Refetch(ctx); err != nil {
		return nil, err
	}

	ch, stop := gw.Subscribe(table, subOpts...)
	m.stop = stop
	go m.loop(ch)
	return m, nil
}

// loop re-fetches the mirror on every change event, whatever its kind. A
// self-echoed event (our own optimistic mutation coming back) just causes a
// redundant, idempotent re-fetch.
func (m *mirror[T]) loop(ch <-chan gateway.Change) {
	defer close(m.done)
	for range ch {
		ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
		if err := m.Refetch(ctx); err != nil {
			log.Warn().Err(err).Str("table", m.table).Msg("mirror refetch failed")
		}
		cancel()
	}
}

// Refetch discards the mirror and reloads it in full from the remote store.
// Used at open, as the error-recovery path after a failed update/delete, and
// by the change-event loop.
func (m *mirror[T]) Refetch(ctx context.Context) error {
	items, err := m.fetch(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items = items
	return nil
}

// Snapshot returns a copy of the mirror.
func (m *mirror[T]) Snapshot() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the current mirror size.
func (m *mirror[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// apply runs an in-place transformation of the mirror under the write lock.
// It is the optimistic-update primitive; it reports false when the mirror is
// already closed, in which case the caller must abandon the mutation.
func (m *mirror[T]) apply(fn func(items []T) []T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = fn(m.items)
	return true
}

// Close tears the mirror down: unsubscribes, waits for the event loop to
// drain, and marks the mirror so late completions cannot mutate it.
func (m *mirror[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	if m.stop != nil {
		m.stop()
		<-m.done
	}
}
