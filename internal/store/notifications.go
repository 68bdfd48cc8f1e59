package store

import (
	"context"
	"time"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

// Notifications mirrors the notification slice addressed to one role. It is
// the only store whose mirror is a filtered slice rather than a full table:
// each partner's session mounts its own instance.
type Notifications struct {
	m    *mirror[domain.Notification]
	gw   gateway.Gateway
	role domain.Role
	now  func() time.Time
}

// OpenNotifications fetches role's notification mirror and subscribes it to
// changes on the notifications table. Inserted rows for the other partner
// are filtered out at the subscription; update/delete payloads cannot be
// attributed cheaply, so they pass through and cost one redundant re-fetch.
func OpenNotifications(ctx context.Context, gw gateway.Gateway, role domain.Role) (*Notifications, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	s := &Notifications{gw: gw, role: role, now: time.Now}
	table := domain.Notification{}.TableName()
	m, err := openMirror(ctx, gw, table,
		func(ctx context.Context) ([]domain.Notification, error) {
			var out []domain.Notification
			err := gw.Select(ctx, table, &out,
				gateway.Eq("recipient", role.Storage()),
				gateway.OrderBy("created_at DESC"))
			return out, err
		},
		gateway.MatchRow(func(row any) bool {
			if n, ok := row.(*domain.Notification); ok {
				return n.Recipient == role
			}
			return true
		}),
	)
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror, newest first.
func (s *Notifications) List() []domain.Notification { return s.m.Snapshot() }

// Page returns one page of the mirror plus the total count. Page numbers
// are 1-based; out-of-range pages return an empty slice.
func (s *Notifications) Page(page, pageSize int) ([]domain.Notification, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	items := s.m.Snapshot()
	total := len(items)
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.Notification{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}

// UnreadCount returns the number of unread notifications in the mirror.
func (s *Notifications) UnreadCount() int {
	n := 0
	for _, it := range s.m.Snapshot() {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead flags one notification as read, optimistically.
func (s *Notifications) MarkRead(ctx context.Context, id string) error {
	found := false
	if ok := s.m.apply(func(items []domain.Notification) []domain.Notification {
		for i := range items {
			if items[i].ID == id {
				items[i].Read = true
				found = true
			}
		}
		return items
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	err := s.gw.Update(ctx, domain.Notification{}.TableName(),
		map[string]any{"read": true}, gateway.Eq("id", id))
	if err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}
	return nil
}

// MarkAllRead flags every mirrored notification as read.
func (s *Notifications) MarkAllRead(ctx context.Context) error {
	if ok := s.m.apply(func(items []domain.Notification) []domain.Notification {
		for i := range items {
			items[i].Read = true
		}
		return items
	}); !ok {
		return ErrClosed
	}

	err := s.gw.Update(ctx, domain.Notification{}.TableName(),
		map[string]any{"read": true}, gateway.Eq("recipient", s.role.Storage()))
	if err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}
	return nil
}

// Remove deletes one notification optimistically.
func (s *Notifications) Remove(ctx context.Context, id string) error {
	found := false
	if ok := s.m.apply(func(items []domain.Notification) []domain.Notification {
		n := len(items)
		items = removeByID(items, id, func(n domain.Notification) string { return n.ID })
		found = len(items) < n
		return items
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	if err := s.gw.Delete(ctx, domain.Notification{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}
	return nil
}

// Refetch reloads the mirror in full.
func (s *Notifications) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Notifications) Close() { s.m.Close() }
