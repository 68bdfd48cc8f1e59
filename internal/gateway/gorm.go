package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// UseTracing attaches the GORM OpenTelemetry plugin (traces only).
func UseTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates/updates the schema for every domain model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(domain.AllModels()...)
}

// Gorm implements Gateway on a GORM handle and publishes a change event on
// the bus after every successful mutation.
type Gorm struct {
	db  *gorm.DB
	bus *Bus
}

// NewGorm wires a GORM handle and a change bus into a Gateway.
func NewGorm(db *gorm.DB, bus *Bus) *Gorm {
	return &Gorm{db: db, bus: bus}
}

// Bus exposes the change bus so consumers outside the store layer (the
// websocket hub) can subscribe without holding a Gateway.
func (g *Gorm) Bus() *Bus { return g.bus }

func (g *Gorm) scoped(ctx context.Context, table string, opts ...Option) *gorm.DB {
	q := BuildQuery(opts...)
	tx := g.db.WithContext(ctx).Table(table)
	for _, c := range q.Conds {
		tx = tx.Where(c.Column+" "+condOp(c)+" ?", c.Value)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

// Select loads matching rows into dest.
func (g *Gorm) Select(ctx context.Context, table string, dest any, opts ...Option) error {
	return g.scoped(ctx, table, opts...).Find(dest).Error
}

// Count returns the number of matching rows.
func (g *Gorm) Count(ctx context.Context, table string, opts ...Option) (int64, error) {
	var n int64
	err := g.scoped(ctx, table, opts...).Count(&n).Error
	return n, err
}

// Insert stores the row and publishes an Inserted event.
func (g *Gorm) Insert(ctx context.Context, table string, row any) error {
	if err := g.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return err
	}
	g.bus.Publish(Change{Table: table, Type: Inserted, Row: row})
	return nil
}

// Update applies the column map to matching rows and publishes an Updated
// event whose payload carries the changed columns plus the filter columns,
// so hand-optimized subscribers can patch their mirror directly.
func (g *Gorm) Update(ctx context.Context, table string, changes map[string]any, opts ...Option) error {
	if err := g.scoped(ctx, table, opts...).Updates(changes).Error; err != nil {
		return err
	}
	payload := make(map[string]any, len(changes)+2)
	for k, v := range changes {
		payload[k] = v
	}
	for _, c := range BuildQuery(opts...).Conds {
		payload[c.Column] = c.Value
	}
	g.bus.Publish(Change{Table: table, Type: Updated, Row: payload})
	return nil
}

// Upsert inserts or, on conflict over conflictColumns, overwrites the row.
func (g *Gorm) Upsert(ctx context.Context, table string, row any, conflictColumns ...string) error {
	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}
	err := g.db.WithContext(ctx).Table(table).
		Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).
		Create(row).Error
	if err != nil {
		return err
	}
	g.bus.Publish(Change{Table: table, Type: Updated, Row: row})
	return nil
}

// Delete removes matching rows and publishes a Deleted event carrying the
// filter columns.
func (g *Gorm) Delete(ctx context.Context, table string, opts ...Option) error {
	q := BuildQuery(opts...)
	tx := g.db.WithContext(ctx).Table(table)
	for _, c := range q.Conds {
		tx = tx.Where(c.Column+" "+condOp(c)+" ?", c.Value)
	}
	if err := tx.Delete(nil).Error; err != nil {
		return err
	}
	payload := make(map[string]any, len(q.Conds))
	for _, c := range q.Conds {
		payload[c.Column] = c.Value
	}
	g.bus.Publish(Change{Table: table, Type: Deleted, Row: payload})
	return nil
}

func condOp(c Cond) string {
	if c.Op == "" {
		return "="
	}
	return c.Op
}

// Subscribe proxies to the change bus.
func (g *Gorm) Subscribe(table string, opts ...SubOption) (<-chan Change, func()) {
	return g.bus.Subscribe(table, opts...)
}

// IsDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
