package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

func newTestNotifier(t *testing.T, name string) (*Notifier, *gateway.Gorm) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gateway.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	bus := gateway.NewBus()
	t.Cleanup(bus.Close)
	gw := gateway.NewGorm(db, bus)
	return New(gw), gw
}

func TestPush_FillsDefaultsAndTitleCases(t *testing.T) {
	n, gw := newTestNotifier(t, "notifydb1")
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	n.Now = func() time.Time { return fixed }

	err := n.Push(context.Background(), domain.Notification{
		Recipient: domain.RoleHer,
		Title:     "new memory added",
		Type:      TypePost,
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	var out []domain.Notification
	if err := gw.Select(context.Background(), "notifications", &out); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	got := out[0]
	if got.ID == "" {
		t.Fatalf("ID should be generated")
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, fixed)
	}
	if got.Title != "New Memory Added" {
		t.Fatalf("title should be title-cased, got %q", got.Title)
	}
}

func TestPush_UnknownRecipient(t *testing.T) {
	n, _ := newTestNotifier(t, "notifydb2")

	err := n.Push(context.Background(), domain.Notification{Title: "t"})
	if !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPush_DuplicateDedupKeyIsBenign(t *testing.T) {
	n, gw := newTestNotifier(t, "notifydb3")
	ctx := context.Background()

	key := "love-2025-06-01-him"
	first := domain.Notification{Recipient: domain.RoleHer, Title: "love", Type: TypeLove, DedupKey: &key}
	if err := n.Push(ctx, first); err != nil {
		t.Fatalf("first push: %v", err)
	}

	// same logical event again: swallowed, no second row
	second := domain.Notification{Recipient: domain.RoleHer, Title: "love", Type: TypeLove, DedupKey: &key}
	if err := n.Push(ctx, second); err != nil {
		t.Fatalf("duplicate push should be nil, got %v", err)
	}

	count, err := gw.Count(ctx, "notifications")
	if err != nil || count != 1 {
		t.Fatalf("expected 1 row after duplicate, got %d (%v)", count, err)
	}
}
