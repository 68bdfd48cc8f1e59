package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
)

// Captions keeps the daily-caption mirror live and owns caption submission.
// One row exists per (day, role); submitting again the same day overwrites.
type Captions struct {
	m        *mirror[domain.Caption]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenCaptions fetches the caption mirror and subscribes it to changes.
func OpenCaptions(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Captions, error) {
	s := &Captions{gw: gw, notifier: notifier, now: time.Now}
	table := domain.Caption{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Caption, error) {
		var out []domain.Caption
		err := gw.Select(ctx, table, &out, gateway.OrderBy("day DESC, role ASC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror, newest day first.
func (s *Captions) List() []domain.Caption { return s.m.Snapshot() }

// Submit upserts today's caption for role.
func (s *Captions) Submit(ctx context.Context, role domain.Role, content, mediaURL string) error {
	return s.SubmitFor(ctx, role, domain.DayOf(s.now()), content, mediaURL)
}

// SubmitFor upserts the caption for an explicit day. The mirror is updated
// optimistically; a failed remote upsert triggers a full re-fetch and the
// error is returned to the caller.
func (s *Captions) SubmitFor(ctx context.Context, role domain.Role, day, content, mediaURL string) error {
	tr := otel.Tracer("store/Captions")
	ctx, span := tr.Start(ctx, "SubmitFor",
		trace.WithAttributes(
			attribute.String("caption.day", day),
			attribute.String("caption.role", role.Storage()),
		),
	)
	defer span.End()

	if !role.Valid() {
		return domain.ErrUnknownRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	row := domain.Caption{
		ID:        uuid.NewString(),
		Day:       day,
		Role:      role,
		Content:   content,
		MediaURL:  mediaURL,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}

	if ok := s.m.apply(func(items []domain.Caption) []domain.Caption {
		for i := range items {
			if items[i].Day == day && items[i].Role == role {
				row.ID = items[i].ID
				row.CreatedAt = items[i].CreatedAt
				items[i] = row
				return items
			}
		}
		return append([]domain.Caption{row}, items...)
	}); !ok {
		return ErrClosed
	}

	if err := s.gw.Upsert(ctx, domain.Caption{}.TableName(), &row, domain.CaptionConflictColumns...); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	key := "caption-" + day + "-" + role.Storage()
	s.notifier.Go(domain.Notification{
		Recipient: role.Other(),
		Title:     "new caption",
		Body:      role.DisplayName() + " wrote today's caption",
		Type:      notify.TypeCaption,
		Target:    "/home",
		DedupKey:  &key,
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Captions) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Captions) Close() { s.m.Close() }
