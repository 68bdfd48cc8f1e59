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

// CountdownDraft carries the caller-supplied fields of a new countdown.
type CountdownDraft struct {
	Title       string
	TargetDate  time.Time
	Icon        string
	Category    string
	Description string
	ImageURL    string
}

// Countdowns mirrors the countdown events; either partner can create,
// update, or delete them.
type Countdowns struct {
	m        *mirror[domain.Countdown]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenCountdowns fetches the countdown mirror and subscribes it to changes.
func OpenCountdowns(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Countdowns, error) {
	s := &Countdowns{gw: gw, notifier: notifier, now: time.Now}
	table := domain.Countdown{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Countdown, error) {
		var out []domain.Countdown
		err := gw.Select(ctx, table, &out, gateway.OrderBy("target_date ASC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror, soonest target first.
func (s *Countdowns) List() []domain.Countdown { return s.m.Snapshot() }

// Create inserts a countdown optimistically on behalf of actor.
func (s *Countdowns) Create(ctx context.Context, actor domain.Role, draft CountdownDraft) (*domain.Countdown, error) {
	if !actor.Valid() {
		return nil, domain.ErrUnknownRole
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, ErrEmptyContent
	}

	cd := domain.Countdown{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(draft.Title),
		TargetDate:  draft.TargetDate.UTC(),
		Icon:        draft.Icon,
		Category:    draft.Category,
		Description: draft.Description,
		ImageURL:    draft.ImageURL,
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
	}

	if ok := s.m.apply(func(items []domain.Countdown) []domain.Countdown {
		return append(items, cd)
	}); !ok {
		return nil, ErrClosed
	}

	if err := s.gw.Insert(ctx, domain.Countdown{}.TableName(), &cd); err != nil {
		s.m.apply(func(items []domain.Countdown) []domain.Countdown {
			return removeByID(items, cd.ID, func(c domain.Countdown) string { return c.ID })
		})
		return nil, err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "new countdown",
		Body:      actor.DisplayName() + " is counting down to \"" + cd.Title + "\"",
		Type:      notify.TypeCountdown,
		Target:    "/countdowns",
	})
	return &cd, nil
}

// Update applies a column map to one countdown; the mirror entry is patched
// optimistically and re-fetched on failure.
func (s *Countdowns) Update(ctx context.Context, actor domain.Role, id string, changes map[string]any) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.Countdown) []domain.Countdown {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			found = true
			patchCountdown(&items[i], changes)
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
	if err := s.gw.Update(ctx, domain.Countdown{}.TableName(), cols, gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	// at most one edit alert per countdown per day
	key := "countdown-update-" + id + "-" + domain.DayOf(s.now())
	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "countdown updated",
		Body:      actor.DisplayName() + " changed \"" + title + "\"",
		Type:      notify.TypeCountdown,
		Target:    "/countdowns",
		DedupKey:  &key,
	})
	return nil
}

// Remove deletes a countdown optimistically.
func (s *Countdowns) Remove(ctx context.Context, actor domain.Role, id string) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.Countdown) []domain.Countdown {
		out := items[:0]
		for _, c := range items {
			if c.ID == id {
				found = true
				title = c.Title
				continue
			}
			out = append(out, c)
		}
		return out
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	if err := s.gw.Delete(ctx, domain.Countdown{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "countdown removed",
		Body:      actor.DisplayName() + " removed \"" + title + "\"",
		Type:      notify.TypeCountdown,
		Target:    "/countdowns",
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Countdowns) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Countdowns) Close() { s.m.Close() }

func patchCountdown(c *domain.Countdown, changes map[string]any) {
	for k, v := range changes {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				c.Title = s
			}
		case "target_date":
			if t, ok := v.(time.Time); ok {
				c.TargetDate = t
			}
		case "icon":
			if s, ok := v.(string); ok {
				c.Icon = s
			}
		case "category":
			if s, ok := v.(string); ok {
				c.Category = s
			}
		case "description":
			if s, ok := v.(string); ok {
				c.Description = s
			}
		case "image_url":
			if s, ok := v.(string); ok {
				c.ImageURL = s
			}
		}
	}
}
