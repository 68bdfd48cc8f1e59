package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
)

// MediaCleaner removes externally stored media after a post is deleted.
// Cleanup is best effort: failures are logged and never reverse the delete.
type MediaCleaner interface {
	Remove(ctx context.Context, fileURLs []string) error
}

// PostDraft carries the caller-supplied fields of a new timeline post.
type PostDraft struct {
	Role      domain.Role
	Title     string
	Content   string
	MediaURLs []string
	EventDate string
	Category  string
}

// PostPatch carries a partial update; nil fields are left unchanged.
type PostPatch struct {
	Title     *string
	Content   *string
	MediaURLs *[]string
	EventDate *string
	Category  *string
}

// Posts keeps the timeline mirror live and owns post mutations. Creation
// pre-generates the UUID so the optimistic mirror entry and the stored row
// agree without reconciliation.
type Posts struct {
	m        *mirror[domain.Post]
	gw       gateway.Gateway
	notifier *notify.Notifier
	cleaner  MediaCleaner
	now      func() time.Time
}

// OpenPosts fetches the timeline mirror and subscribes it to changes.
// cleaner may be nil when no media store is configured.
func OpenPosts(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier, cleaner MediaCleaner) (*Posts, error) {
	s := &Posts{gw: gw, notifier: notifier, cleaner: cleaner, now: time.Now}
	table := domain.Post{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Post, error) {
		var out []domain.Post
		err := gw.Select(ctx, table, &out, gateway.OrderBy("event_date DESC, created_at DESC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// List returns the mirror, newest event first.
func (s *Posts) List() []domain.Post { return s.m.Snapshot() }

// Get returns the mirrored post with the given id.
func (s *Posts) Get(id string) (domain.Post, bool) {
	for _, p := range s.m.Snapshot() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Post{}, false
}

// Create appends the post optimistically and issues the remote insert. On
// failure the optimistic entry is removed again and the error returned; the
// list afterwards equals the list before.
func (s *Posts) Create(ctx context.Context, draft PostDraft) (*domain.Post, error) {
	tr := otel.Tracer("store/Posts")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("post.role", draft.Role.Storage())),
	)
	defer span.End()

	if !draft.Role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, ErrEmptyContent
	}

	post := domain.Post{
		ID:        uuid.NewString(),
		Role:      draft.Role,
		Title:     strings.TrimSpace(draft.Title),
		Content:   draft.Content,
		MediaURLs: domain.StringList(draft.MediaURLs),
		EventDate: draft.EventDate,
		Category:  draft.Category,
		Reactions: domain.ReactionMap{},
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	post.SyncMediaURL()
	if post.EventDate == "" {
		post.EventDate = domain.DayOf(s.now())
	}

	if ok := s.m.apply(func(items []domain.Post) []domain.Post {
		return append([]domain.Post{post}, items...)
	}); !ok {
		return nil, ErrClosed
	}

	if err := s.gw.Insert(ctx, domain.Post{}.TableName(), &post); err != nil {
		s.m.apply(func(items []domain.Post) []domain.Post {
			return removeByID(items, post.ID, func(p domain.Post) string { return p.ID })
		})
		return nil, err
	}

	s.notifier.Go(domain.Notification{
		Recipient: draft.Role.Other(),
		Title:     "new memory",
		Body:      draft.Role.DisplayName() + " added \"" + post.Title + "\" to the timeline",
		Type:      notify.TypePost,
		Target:    "/timeline/" + post.ID,
	})
	return &post, nil
}

// Update merges the patch into the mirror entry and issues the remote
// update on behalf of actor. On failure the mirror is re-fetched
// (compensation, not a precise rollback) and the error returned.
func (s *Posts) Update(ctx context.Context, actor domain.Role, id string, patch PostPatch) error {
	tr := otel.Tracer("store/Posts")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("post.id", id)),
	)
	defer span.End()

	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	changes := map[string]any{"updated_at": s.now().UTC()}
	if patch.Title != nil {
		changes["title"] = *patch.Title
	}
	if patch.Content != nil {
		changes["content"] = *patch.Content
	}
	if patch.MediaURLs != nil {
		urls := domain.StringList(*patch.MediaURLs)
		changes["media_urls"] = urls
		// keep the legacy singular field in step with the list
		single := ""
		if len(urls) > 0 {
			single = urls[0]
		}
		changes["media_url"] = single
	}
	if patch.EventDate != nil {
		changes["event_date"] = *patch.EventDate
	}
	if patch.Category != nil {
		changes["category"] = *patch.Category
	}

	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.Post) []domain.Post {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			found = true
			applyPostPatch(&items[i], patch)
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

	if err := s.gw.Update(ctx, domain.Post{}.TableName(), changes, gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	// at most one edit alert per post per day
	key := "post-update-" + id + "-" + domain.DayOf(s.now())
	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "memory updated",
		Body:      actor.DisplayName() + " edited \"" + title + "\"",
		Type:      notify.TypePost,
		Target:    "/timeline/" + id,
		DedupKey:  &key,
	})
	return nil
}

// React sets role's emoji reaction on the post.
func (s *Posts) React(ctx context.Context, id string, role domain.Role, emoji string) error {
	if !role.Valid() {
		return domain.ErrUnknownRole
	}

	var reactions domain.ReactionMap
	found := false
	if ok := s.m.apply(func(items []domain.Post) []domain.Post {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			found = true
			if items[i].Reactions == nil {
				items[i].Reactions = domain.ReactionMap{}
			}
			items[i].Reactions[role.Storage()] = emoji
			reactions = items[i].Reactions
		}
		return items
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	err := s.gw.Update(ctx, domain.Post{}.TableName(),
		map[string]any{"reactions": reactions, "updated_at": s.now().UTC()},
		gateway.Eq("id", id))
	if err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: role.Other(),
		Title:     "new reaction",
		Body:      role.DisplayName() + " reacted " + emoji,
		Type:      notify.TypePost,
		Target:    "/timeline/" + id,
	})
	return nil
}

// Remove deletes the post optimistically on behalf of actor. On success,
// externally stored media is cleaned up best effort in the background; a
// cleanup failure is logged and does not reverse the delete.
func (s *Posts) Remove(ctx context.Context, actor domain.Role, id string) error {
	tr := otel.Tracer("store/Posts")
	ctx, span := tr.Start(ctx, "Remove",
		trace.WithAttributes(attribute.String("post.id", id)),
	)
	defer span.End()

	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	var mediaURLs []string
	found := false
	title := ""
	if ok := s.m.apply(func(items []domain.Post) []domain.Post {
		out := items[:0]
		for _, p := range items {
			if p.ID == id {
				found = true
				mediaURLs = append([]string(nil), p.MediaURLs...)
				title = p.Title
				continue
			}
			out = append(out, p)
		}
		return out
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	if err := s.gw.Delete(ctx, domain.Post{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "memory removed",
		Body:      actor.DisplayName() + " removed \"" + title + "\" from the timeline",
		Type:      notify.TypePost,
		Target:    "/timeline",
	})

	if s.cleaner != nil && len(mediaURLs) > 0 {
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.cleaner.Remove(cctx, mediaURLs); err != nil {
				log.Warn().Err(err).Str("post_id", id).Msg("media cleanup failed")
			}
		}()
	}
	return nil
}

// Refetch reloads the mirror in full.
func (s *Posts) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Posts) Close() { s.m.Close() }

func applyPostPatch(p *domain.Post, patch PostPatch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.MediaURLs != nil {
		p.MediaURLs = domain.StringList(*patch.MediaURLs)
		p.MediaURL = ""
		p.SyncMediaURL()
	}
	if patch.EventDate != nil {
		p.EventDate = *patch.EventDate
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
}

// removeByID filters items whose key equals id, preserving order.
func removeByID[T any](items []T, id string, key func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if key(it) == id {
			continue
		}
		out = append(out, it)
	}
	return out
}
