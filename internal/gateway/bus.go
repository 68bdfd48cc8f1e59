package gateway

import (
	"sync"
)

// subBufferSize is the per-subscriber channel depth. A subscriber that falls
// further behind than this loses events; mirrors reconcile on their next
// event or explicit refetch, so a dropped event is a latency cost, not a
// correctness one.
const subBufferSize = 16

// SubOption configures a subscription.
type SubOption func(*subscriber)

// OnTypes restricts the subscription to the given change types.
func OnTypes(types ...ChangeType) SubOption {
	return func(s *subscriber) {
		s.types = make(map[ChangeType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

// MatchRow adds a row-level filter, e.g. recipient-role equality on the
// notifications feed. Events whose payload cannot be interpreted by the
// filter should be accepted (return true) so the consumer falls back to a
// re-fetch rather than missing a change.
func MatchRow(fn func(row any) bool) SubOption {
	return func(s *subscriber) { s.match = fn }
}

type subscriber struct {
	ch    chan Change
	types map[ChangeType]struct{}
	match func(row any) bool
}

func (s *subscriber) wants(c Change) bool {
	if s.types != nil {
		if _, ok := s.types[c.Type]; !ok {
			return false
		}
	}
	if s.match != nil && !s.match(c.Row) {
		return false
	}
	return true
}

// Bus is the in-process change-propagation fabric. The GORM gateway publishes
// after every successful mutation; entity stores and the websocket hub
// subscribe. Publish never blocks: a full subscriber channel drops the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[string]map[*subscriber]struct{}{}}
}

// Subscribe registers a change feed for table (or TableAny). The stop
// function is idempotent and closes the returned channel.
func (b *Bus) Subscribe(table string, opts ...SubOption) (<-chan Change, func()) {
	s := &subscriber{ch: make(chan Change, subBufferSize)}
	for _, o := range opts {
		o(s)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if b.subs[table] == nil {
		b.subs[table] = map[*subscriber]struct{}{}
	}
	b.subs[table][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.closed {
				return // Close already closed every channel
			}
			if set, ok := b.subs[table]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(b.subs, table)
				}
			}
			close(s.ch)
		})
	}
	return s.ch, stop
}

// Publish fans the change out to the table's subscribers and the wildcard
// subscribers. Slow subscribers are skipped.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, table := range []string{c.Table, TableAny} {
		for s := range b.subs[table] {
			if !s.wants(c) {
				continue
			}
			select {
			case s.ch <- c:
			default:
				// subscriber behind; it reconciles on its next refetch
			}
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for s := range set {
			close(s.ch)
		}
	}
	b.subs = map[string]map[*subscriber]struct{}{}
}
