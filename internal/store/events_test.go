package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

func TestEvents_CreateUpdateRemove(t *testing.T) {
	gw := newTestGW(t, "evtdb1")
	ctx := context.Background()
	s, err := OpenEvents(ctx, gw, newTestNotifier(gw))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ev, err := s.Create(ctx, domain.RoleHim, " first date ", "03-14", "where it all started", "💐")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ev.Title != "first date" {
		t.Fatalf("title not trimmed: %q", ev.Title)
	}

	if _, err := s.Create(ctx, domain.RoleHim, "", "03-14", "", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank title: got %v", err)
	}
	if _, err := s.Create(ctx, "stranger", "x", "03-14", "", ""); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("unknown role: got %v", err)
	}

	changes := map[string]any{"message": "our anniversary", "icon": "💍"}
	if err := s.Update(ctx, domain.RoleHim, ev.ID, changes); err != nil {
		t.Fatalf("update: %v", err)
	}
	list := s.List()
	if len(list) != 1 || list[0].Message != "our anniversary" || list[0].Icon != "💍" {
		t.Fatalf("update not mirrored: %+v", list)
	}
	if _, ok := changes["updated_at"]; ok {
		t.Fatalf("update mutated the caller's change map")
	}
	if err := s.Update(ctx, domain.RoleHim, "nope", map[string]any{"icon": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update unknown: got %v", err)
	}

	if err := s.Remove(ctx, domain.RoleHim, ev.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("event still mirrored after remove")
	}

	// create, update, and remove each alerted her
	waitFor(t, func() bool {
		n, err := gw.Count(ctx, "notifications", gateway.Eq("recipient", domain.RoleHer))
		return err == nil && n == 3
	}, "partner notifications")
}
