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

// Comments mirrors the comments table; per-post slices are derived from the
// snapshot rather than kept as separate mirrors.
type Comments struct {
	m        *mirror[domain.Comment]
	gw       gateway.Gateway
	notifier *notify.Notifier
	now      func() time.Time
}

// OpenComments fetches the comment mirror and subscribes it to changes.
func OpenComments(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier) (*Comments, error) {
	s := &Comments{gw: gw, notifier: notifier, now: time.Now}
	table := domain.Comment{}.TableName()
	m, err := openMirror(ctx, gw, table, func(ctx context.Context) ([]domain.Comment, error) {
		var out []domain.Comment
		err := gw.Select(ctx, table, &out, gateway.OrderBy("created_at ASC"))
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// ForPost returns the comments on one post, oldest first.
func (s *Comments) ForPost(postID string) []domain.Comment {
	var out []domain.Comment
	for _, c := range s.m.Snapshot() {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out
}

// Create appends a comment optimistically. The id is pre-generated so the
// mirror entry and the stored row agree.
func (s *Comments) Create(ctx context.Context, postID string, role domain.Role, content string) (*domain.Comment, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	c := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		Role:      role,
		Content:   content,
		Reactions: domain.ReactionMap{},
		CreatedAt: s.now().UTC(),
	}

	if ok := s.m.apply(func(items []domain.Comment) []domain.Comment {
		return append(items, c)
	}); !ok {
		return nil, ErrClosed
	}

	if err := s.gw.Insert(ctx, domain.Comment{}.TableName(), &c); err != nil {
		s.m.apply(func(items []domain.Comment) []domain.Comment {
			return removeByID(items, c.ID, func(c domain.Comment) string { return c.ID })
		})
		return nil, err
	}

	s.notifier.Go(domain.Notification{
		Recipient: role.Other(),
		Title:     "new comment",
		Body:      role.DisplayName() + " commented on a memory",
		Type:      notify.TypeComment,
		Target:    "/timeline/" + postID,
	})
	return &c, nil
}

// React sets role's emoji reaction on a comment.
func (s *Comments) React(ctx context.Context, id string, role domain.Role, emoji string) error {
	if !role.Valid() {
		return domain.ErrUnknownRole
	}

	var reactions domain.ReactionMap
	found := false
	postID := ""
	if ok := s.m.apply(func(items []domain.Comment) []domain.Comment {
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
			postID = items[i].PostID
		}
		return items
	}); !ok {
		return ErrClosed
	}
	if !found {
		return ErrNotFound
	}

	err := s.gw.Update(ctx, domain.Comment{}.TableName(),
		map[string]any{"reactions": reactions}, gateway.Eq("id", id))
	if err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: role.Other(),
		Title:     "new reaction",
		Body:      role.DisplayName() + " reacted " + emoji + " to a comment",
		Type:      notify.TypeComment,
		Target:    "/timeline/" + postID,
	})
	return nil
}

// Remove deletes a comment optimistically on behalf of actor.
func (s *Comments) Remove(ctx context.Context, actor domain.Role, id string) error {
	if !actor.Valid() {
		return domain.ErrUnknownRole
	}

	found := false
	postID := ""
	if ok := s.m.apply(func(items []domain.Comment) []domain.Comment {
		out := items[:0]
		for _, c := range items {
			if c.ID == id {
				found = true
				postID = c.PostID
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

	if err := s.gw.Delete(ctx, domain.Comment{}.TableName(), gateway.Eq("id", id)); err != nil {
		if rerr := s.m.Refetch(ctx); rerr != nil && rerr != ErrClosed {
			return rerr
		}
		return err
	}

	s.notifier.Go(domain.Notification{
		Recipient: actor.Other(),
		Title:     "comment removed",
		Body:      actor.DisplayName() + " removed a comment",
		Type:      notify.TypeComment,
		Target:    "/timeline/" + postID,
	})
	return nil
}

// Refetch reloads the mirror in full.
func (s *Comments) Refetch(ctx context.Context) error { return s.m.Refetch(ctx) }

// Close tears the mirror down.
func (s *Comments) Close() { s.m.Close() }
