package store

import (
	"context"
	"time"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
)

// Profiles mirrors the two profile rows. A partner without a saved row reads
// as DefaultProfile; edits go through upsert so the first save creates the
// row.
type Profiles struct {
	m        *mirror[domain.Profile]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenProfiles fetches the profile mirror and subscribes it to changes.
func OpenProfiles(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Profiles, error) {
	s := &Profiles{gw: gw, notifier: notifier, now: time.Now}
	table := domain.Profile{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Profile, error) {
		var out []domain.Profile
		err := gw.Select(ctx, table, &out)
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// Get returns role's profile, merged with defaults when fields are unset or
// the row does not exist yet.
func (s *Profiles) Get(role domain.Role) domain.Profile {
	def := domain.DefaultProfile(role)
	for _, p := range s.m.Snapshot() {
		if p.ID != role {
			continue
		}
		if p.Name == "" {
			p.Name = def.Name
		}
		return p
	}
	return def
}

// Save upserts role's profile row. The mirror entry is replaced
// optimistically; a failed remote upsert triggers a full re-fetch.
func (s *Profiles) Save(ctx context.Context, p domain.Profile) error {
	if !p.ID.Valid() {
		return domain.ErrUnknownRole
	}
	p.UpdatedAt = s.now().UTC()

	if ok := s.m.apply(func(items []domain.Profile) []domain.Profile {
		for i := range items {
			if items[i].ID == p.ID {
				items[i] = p
				return items
			}
		}
		return append(items, p)
	}); !ok {
		return ErrClosed
	}

	if err := s.gw.Upsert(ctx, domain.Profile{}.TableName(), &p, "id"); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: p.ID.Other(),
		Title:     "profile updated",
		Body:      p.ID.DisplayName() + " touched up their profile",
		Type:      notify.TypeProfile,
		Target:    "/profile/" + p.ID.Storage(),
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Profiles) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Profiles) Close() { s.m.Close() }
