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

// Events mirrors the recurring special events managed from the settings UI.
type Events struct {
	m        *mirror[domain.SpecialEvent]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenEvents fetches the special-event mirror and subscribes it to changes.
func OpenEvents(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Events, error) {
	s := &Events{gw: gw, notifier: notifier, now: time.Now}
	table := domain.SpecialEvent{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.SpecialEvent, error) {
		var out []domain.SpecialEvent
		err := gw.Select(ctx, table, &out, gateway.OrderBy("month_day ASC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror ordered by month-day.
func (s *Events) List() []domain.SpecialEvent { return s.m.Snapshot() }

// Create inserts a recurring event optimistically on behalf of actor.
func (s *Events) Create(ctx context.Context, actor domain.Role, title, monthDay, message, icon string) (*domain.SpecialEvent, error) {
	if !actor.Valid() {
		return nil, domain.ErrUnknownRole
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyContent
	}

	ev := domain.SpecialEvent{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		MonthDay:  monthDay,
		Message:   message,
		Icon:      icon,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}

	if ok := s.m.apply(func(items []domain.SpecialEvent) []domain.SpecialEvent {
		return append(items, ev)
	}); !ok {
		return nil, ErrClosed
	}

	if err := s.gw.Insert(ctx, domain.SpecialEvent{}.TableName(), &ev); err != nil {
		s.m.apply(func(items []domain.SpecialEvent) []domain.SpecialEvent {
			return removeByID(items, ev.ID, func(e domain.SpecialEvent) string { return e.ID })
		})
		return nil, err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "new special day",
		Body:      actor.DisplayName() + " marked \"" + ev.Title + "\" on the calendar",
		Type:      notify.TypeEvent,
		Target:    "/settings/events",
	})
	return &ev, nil
}

// Update applies a column map to one event on behalf of actor.
func (s *Events) Update(ctx context.Context, actor domain.Role, id string, changes map[string]any) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.SpecialEvent) []domain.SpecialEvent {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			found = true
			if v, ok := changes["title"].(string); ok {
				items[i].Title = v
			}
			if v, ok := changes["month_day"].(string); ok {
				items[i].MonthDay = v
			}
			if v, ok := changes["message"].(string); ok {
				items[i].Message = v
			}
			if v, ok := changes["icon"].(string); ok {
				items[i].Icon = v
			}
			items[i].UpdatedAt = s.now().UTC()
			title = items[i].Title
		}
		return items
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	// the caller keeps its map; the remote column map gets the timestamp
	cols := make(map[string]any, len(changes)+1)
	for k, v := range changes {
		cols[k] = v
	}
	cols["updated_at"] = s.now().UTC()
	if err := s.gw.Update(ctx, domain.SpecialEvent{}.TableName(), cols, gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	// at most one edit alert per event per day
	key := "event-update-" + id + "-" + domain.DayOf(s.now())
	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "special day updated",
		Body:      actor.DisplayName() + " changed \"" + title + "\"",
		Type:      notify.TypeEvent,
		Target:    "/settings/events",
		DedupKey:  &key,
	})
	return nil
}

// Remove deletes an event optimistically on behalf of actor.
func (s *Events) Remove(ctx context.Context, actor domain.Role, id string) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.SpecialEvent) []domain.SpecialEvent {
		out := items[:0]
		for _, e := range items {
			if e.ID == id {
				found = true
				title = e.Title
				continue
			}
			out = append(out, e)
		}
		return out
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	if err := s.gw.Delete(ctx, domain.SpecialEvent{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "special day removed",
		Body:      actor.DisplayName() + " took \"" + title + "\" off the calendar",
		Type:      notify.TypeEvent,
		Target:    "/settings/events",
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Events) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Events) Close() { s.m.Close() }
