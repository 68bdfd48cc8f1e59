package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
	"github.com/ourlittleworld/go-couple-backend/internal/session"
)

// CooldownWindow is the minimum interval between two love sends from the
// same role. Advisory only: a client that clears its session cache can
// bypass it; the server stores whatever arrives.
const CooldownWindow = 5 * time.Minute

// Cooldown is the two-state machine guarding the love button: Ready, or
// Cooling with some remaining time. Remaining time is always recomputed
// from the persisted last-sent timestamp, never decremented, so it survives
// reloads and tolerates clock sleep without drift.
type Cooldown struct {
	sess session.Store
	now  func() time.Time
}

// NewCooldown builds a cooldown over the given session cache.
func NewCooldown(sess session.Store) *Cooldown {
	return &Cooldown{sess: sess, now: time.Now}
}

// Remaining returns how long until the next send is allowed; zero means
// Ready.
func (c *Cooldown) Remaining() time.Duration {
	last, ok := session.GetTime(c.sess, session.KeyLastLoveSent)
	if !ok {
		return 0
	}
	rem := CooldownWindow - c.now().Sub(last)
	if rem < 0 {
		return 0
	}
	return rem
}

// Ready reports whether a send is currently allowed.
func (c *Cooldown) Ready() bool { return c.Remaining() == 0 }

func (c *Cooldown) markSent() error {
	return session.SetTime(c.sess, session.KeyLastLoveSent, c.now())
}

// Love owns the love tap-counter: an append-only log aggregated by count
// queries. Instead of mirroring every row, it caches the two counters and
// refreshes them whenever the love_logs table changes.
type Love struct {
	mu     sync.RWMutex
	today  int64
	total  int64
	closed bool

	gw       gateway.Gateway
	notifier *notify.Notifier
	cooldown *Cooldown
	role     domain.Role
	now      func() time.Time
	stop     func()
	done     chan struct{}
}

// OpenLove loads the counters for role and subscribes to love_logs changes.
func OpenLove(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier, sess session.Store, role domain.Role) (*Love, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	s := &Love{
		gw:       gw,
		notifier: notifier,
		cooldown: NewCooldown(sess),
		role:     role,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if err := s.Refetch(ctx); err != nil {
		return nil, err
	}

	ch, stop := gw.Subscribe(domain.LoveLog{}.TableName())
	s.stop = stop
	go func() {
		defer close(s.done)
		for range ch {
			rctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
			if err := s.Refetch(rctx); err != nil && err != ErrClosed {
				log.Warn().Err(err).Msg("love counter refresh failed")
			}
			cancel()
		}
	}()
	return s, nil
}

// Cooldown exposes the state machine so the UI can render the ticking timer
// (recomputing once per second against the persisted timestamp).
func (s *Love) Cooldown() *Cooldown { return s.cooldown }

// Counts returns (today, all-time) for the sending role.
func (s *Love) Counts() (int64, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.today, s.total
}

// Send inserts one love log, guarded by the cooldown. While the window is
// open it returns ErrCoolingDown without touching the remote store.
func (s *Love) Send(ctx context.Context) error {
	tr := otel.Tracer("store/Love")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("love.sender", s.role.Storage())),
	)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.cooldown.Ready() {
		s.mu.Unlock()
		return ErrCoolingDown
	}
	// optimistic bump; undone by the re-count on failure
	s.today++
	s.total++
	s.mu.Unlock()

	row := domain.LoveLog{
		ID:        uuid.NewString(),
		Sender:    s.role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.gw.Insert(ctx, domain.LoveLog{}.TableName(), &row); err != nil {
		if rerr := s.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}
	if err := s.cooldown.markSent(); err != nil {
		log.Warn().Err(err).Msg("persisting love timestamp failed")
	}

	s.notifier.Go(domain.Notification{
		Recipient: s.role.Other(),
		Title:     "love",
		Body:      s.role.DisplayName() + " is thinking of you",
		Type:      notify.TypeLove,
		Target:    "/love",
	})
	return nil
}

// Refetch re-counts today's and all-time sends from the remote store.
func (s *Love) Refetch(ctx context.Context) error {
	table := domain.LoveLog{}.TableName()
	startOfDay := s.now().UTC().Truncate(24 * time.Hour)

	total, err := s.gw.Count(ctx, table, gateway.Eq("sender", s.role.Storage()))
	if err != nil {
		return err
	}
	today, err := s.gw.Count(ctx, table,
		gateway.Eq("sender", s.role.Storage()),
		gateway.Gte("created_at", startOfDay))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.today, s.total = today, total
	return nil
}

// Close tears the counter down.
func (s *Love) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
		<-s.done
	}
}
