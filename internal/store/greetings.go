package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
)

// Time-of-day tags for greetings.
const (
	TimeMorning = "morning"
	TimeNoon    = "noon"
	TimeEvening = "evening"
	TimeNight   = "night"
)

// TimeOfDay maps an hour (0-23) to a greeting tag.
func TimeOfDay(hour int) string {
	switch {
	case hour < 11:
		return TimeMorning
	case hour < 14:
		return TimeNoon
	case hour < 19:
		return TimeEvening
	default:
		return TimeNight
	}
}

// Greetings mirrors the saved greeting messages.
type Greetings struct {
	m        *mirror[domain.Greeting]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenGreetings fetches the greeting mirror and subscribes it to changes.
func OpenGreetings(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Greetings, error) {
	s := &Greetings{gw: gw, notifier: notifier, now: time.Now}
	table := domain.Greeting{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Greeting, error) {
		var out []domain.Greeting
		err := gw.Select(ctx, table, &out, gateway.OrderBy("created_at DESC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror, newest first.
func (s *Greetings) List() []domain.Greeting { return s.m.Snapshot() }

// ForTime returns the greetings tagged for one time of day.
func (s *Greetings) ForTime(tag string) []domain.Greeting {
	var out []domain.Greeting
	for _, g := range s.m.Snapshot() {
		if g.TimeOfDay == tag {
			out = append(out, g)
		}
	}
	return out
}

// Create inserts a greeting optimistically.
func (s *Greetings) Create(ctx context.Context, role domain.Role, content, timeOfDay string) (*domain.Greeting, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	g := domain.Greeting{
		ID:        uuid.NewString(),
		Content:   content,
		TimeOfDay: timeOfDay,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}

	if ok := s.m.apply(func(items []domain.Greeting) []domain.Greeting {
		return append([]domain.Greeting{g}, items...)
	}); !ok {
		return nil, ErrClosed
	}

	if err := s.gw.Insert(ctx, domain.Greeting{}.TableName(), &g); err != nil {
		s.m.apply(func(items []domain.Greeting) []domain.Greeting {
			return removeByID(items, g.ID, func(g domain.Greeting) string { return g.ID })
		})
		return nil, err
	}

	s.notifier.Go(domain.Notification{
		Recipient: role.Other(),
		Title:     "new greeting",
		Body:      role.DisplayName() + " saved a " + timeOfDay + " greeting",
		Type:      notify.TypeGreeting,
		Target:    "/settings/greetings",
	})
	return &g, nil
}

// Remove deletes a greeting optimistically on behalf of actor.
func (s *Greetings) Remove(ctx context.Context, actor domain.Role, id string) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	timeOfDay := ""
	if ok := s.m.apply(func(items []domain.Greeting) []domain.Greeting {
		out := items[:0]
		for _, g := range items {
			if g.ID == id {
				found = true
				timeOfDay = g.TimeOfDay
				continue
			}
			out = append(out, g)
		}
		return out
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	if err := s.gw.Delete(ctx, domain.Greeting{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "greeting removed",
		Body:      actor.DisplayName() + " removed a " + timeOfDay + " greeting",
		Type:      notify.TypeGreeting,
		Target:    "/settings/greetings",
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Greetings) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Greetings) Close() { s.m.Close() }
