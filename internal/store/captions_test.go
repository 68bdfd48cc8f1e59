package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
)

func openTestCaptions(t *testing.T, name string) (*Captions, context.Context) {
	t.Helper()
	gw := newTestGW(t, name)
	s, err := OpenCaptions(context.Background(), gw, newTestNotifier(gw))
	if err != nil {
		t.Fatalf("open captions: %v", err)
	}
	t.Cleanup(s.Close)
	return s, context.Background()
}

func TestCaptions_SubmitOverwritesSameDayRole(t *testing.T) {
	s, ctx := openTestCaptions(t, "capdb1")

	if err := s.SubmitFor(ctx, domain.RoleHim, "2025-06-01", "first try", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	list := s.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 caption, got %d", len(list))
	}
	firstID := list[0].ID

	// same day, same role: overwrite, keeping the row identity
	if err := s.SubmitFor(ctx, domain.RoleHim, "2025-06-01", "second try", ""); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	list = s.List()
	if len(list) != 1 {
		t.Fatalf("resubmit should not add a row, got %d", len(list))
	}
	if list[0].ID != firstID {
		t.Fatalf("resubmit changed the row ID: %q -> %q", firstID, list[0].ID)
	}
	if list[0].Content != "second try" {
		t.Fatalf("content not overwritten: %q", list[0].Content)
	}

	// the partner's caption for the same day is a separate row
	if err := s.SubmitFor(ctx, domain.RoleHer, "2025-06-01", "hers", ""); err != nil {
		t.Fatalf("partner submit: %v", err)
	}
	if got := s.m.Len(); got != 2 {
		t.Fatalf("expected 2 captions after partner submit, got %d", got)
	}
}

func TestCaptions_SubmitValidation(t *testing.T) {
	s, ctx := openTestCaptions(t, "capdb2")

	if err := s.SubmitFor(ctx, domain.RoleHim, "2025-06-01", "   ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: got %v, want ErrEmptyContent", err)
	}
	if err := s.SubmitFor(ctx, "stranger", "2025-06-01", "hi", ""); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("unknown role: got %v, want ErrUnknownRole", err)
	}
	if got := s.m.Len(); got != 0 {
		t.Fatalf("rejected submits must not touch the mirror, got %d rows", got)
	}
}

func TestCaptions_PropagatesAcrossInstances(t *testing.T) {
	gw := newTestGW(t, "capdb3")
	notifier := newTestNotifier(gw)
	ctx := context.Background()

	// two sessions mounted on the same gateway, one per partner
	his, err := OpenCaptions(ctx, gw, notifier)
	if err != nil {
		t.Fatalf("open his: %v", err)
	}
	defer his.Close()
	hers, err := OpenCaptions(ctx, gw, notifier)
	if err != nil {
		t.Fatalf("open hers: %v", err)
	}
	defer hers.Close()

	if err := his.SubmitFor(ctx, domain.RoleHim, "2025-06-01", "good morning", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, func() bool {
		for _, c := range hers.List() {
			if c.Day == "2025-06-01" && c.Role == domain.RoleHim && c.Content == "good morning" {
				return true
			}
		}
		return false
	}, "caption to reach the partner's mirror")
}
