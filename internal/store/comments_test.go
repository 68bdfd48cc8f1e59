package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

func TestComments_CreateAndForPost(t *testing.T) {
	gw := newTestGW(t, "commdb1")
	ctx := context.Background()
	s, err := OpenComments(ctx, gw, newTestNotifier(gw))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	first, err := s.Create(ctx, "post-1", domain.RoleHim, "so pretty")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "post-1", domain.RoleHer, "agreed"); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := s.Create(ctx, "post-2", domain.RoleHim, "elsewhere"); err != nil {
		t.Fatalf("create other post: %v", err)
	}

	got := s.ForPost("post-1")
	if len(got) != 2 || got[0].ID != first.ID {
		t.Fatalf("ForPost: %+v", got)
	}
	if s.ForPost("post-3") != nil {
		t.Fatalf("unknown post should have no comments")
	}

	if _, err := s.Create(ctx, "post-1", domain.RoleHim, "  "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: got %v", err)
	}
}

func TestComments_ReactAndRemove(t *testing.T) {
	gw := newTestGW(t, "commdb2")
	ctx := context.Background()
	s, err := OpenComments(ctx, gw, newTestNotifier(gw))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	c, err := s.Create(ctx, "post-1", domain.RoleHim, "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.React(ctx, c.ID, domain.RoleHer, "😂"); err != nil {
		t.Fatalf("react: %v", err)
	}
	got := s.ForPost("post-1")
	if len(got) != 1 || got[0].Reactions["her"] != "😂" {
		t.Fatalf("reaction not recorded: %+v", got)
	}

	if err := s.Remove(ctx, domain.RoleHim, c.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(s.ForPost("post-1")) != 0 {
		t.Fatalf("comment still present after remove")
	}
	if err := s.Remove(ctx, domain.RoleHim, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: got %v", err)
	}

	// his create and remove alerted her, her reaction alerted him
	waitFor(t, func() bool {
		hers, err := gw.Count(ctx, "notifications", gateway.Eq("recipient", domain.RoleHer))
		if err != nil || hers != 2 {
			return false
		}
		his, err := gw.Count(ctx, "notifications", gateway.Eq("recipient", domain.RoleHim))
		return err == nil && his == 1
	}, "partner notifications")
}
