package store

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
)

func newTestGW(t *testing.T, name string) *gateway.Gorm {
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
	return gateway.NewGorm(db, bus)
}

func newTestNotifier(gw gateway.Gateway) *notify.Notifier {
	return notify.New(gw)
}

// waitFor polls cond until it holds or the deadline expires. Mirrors refresh
// asynchronously off the change bus, so tests observing a propagated change
// have to poll.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// failingGateway wraps a real gateway and fails selected mutations, for
// exercising the compensation paths.
type failingGateway struct {
	gateway.Gateway
	insertErr error
	updateErr error
	deleteErr error
}

func (f *failingGateway) Insert(ctx context.Context, table string, row any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Gateway.Insert(ctx, table, row)
}

func (f *failingGateway) Update(ctx context.Context, table string, changes map[string]any, opts ...gateway.Option) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Gateway.Update(ctx, table, changes, opts...)
}

func (f *failingGateway) Delete(ctx context.Context, table string, opts ...gateway.Option) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Gateway.Delete(ctx, table, opts...)
}
