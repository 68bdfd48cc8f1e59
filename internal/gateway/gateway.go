// Package gateway provides the remote data access capability used by every
// entity store: per-table select/insert/update/upsert/delete plus a
// subscribe-to-changes primitive. The concrete implementation in this package
// is backed by GORM; stores only ever see the Gateway interface, so tests can
// wrap it to inject failures.
package gateway

import (
	"context"
)

// ChangeType classifies a change event.
type ChangeType string

const (
	// Inserted marks a new row.
	Inserted ChangeType = "INSERT"
	// Updated marks an in-place update (or upsert).
	Updated ChangeType = "UPDATE"
	// Deleted marks a removed row.
	Deleted ChangeType = "DELETE"
)

// Change is one change event on a table. Row carries the inserted/upserted
// model, or a column map for updates and deletes. Subscribers that do not
// want to interpret the payload simply re-fetch their mirror.
type Change struct {
	Table string
	Type  ChangeType
	Row   any
}

// Query collects the filter/order/limit applied to a table operation.
type Query struct {
	Conds []Cond
	Order string
	Limit int
}

// Cond is a single column comparison. Op is "=" when empty.
type Cond struct {
	Column string
	Op     string
	Value  any
}

// Option configures a Query.
type Option func(*Query)

// Eq filters on column equality.
func Eq(column string, value any) Option {
	return func(q *Query) { q.Conds = append(q.Conds, Cond{Column: column, Op: "=", Value: value}) }
}

// Gte filters on column >= value (timestamp windows, day cutoffs).
func Gte(column string, value any) Option {
	return func(q *Query) { q.Conds = append(q.Conds, Cond{Column: column, Op: ">=", Value: value}) }
}

// OrderBy sets the ordering expression, e.g. "created_at DESC".
func OrderBy(expr string) Option {
	return func(q *Query) { q.Order = expr }
}

// Limit caps the number of returned rows.
func Limit(n int) Option {
	return func(q *Query) { q.Limit = n }
}

// BuildQuery applies options to an empty Query.
func BuildQuery(opts ...Option) Query {
	var q Query
	for _, o := range opts {
		o(&q)
	}
	return q
}

// Gateway is the remote relational store capability. All methods are safe for
// concurrent use. Errors are the underlying driver errors; use IsDuplicate to
// detect unique-constraint violations portably.
type Gateway interface {
	// Select loads rows into dest (a pointer to a slice of models).
	Select(ctx context.Context, table string, dest any, opts ...Option) error
	// Count returns the number of rows matching the options.
	Count(ctx context.Context, table string, opts ...Option) (int64, error)
	// Insert stores a new row (a pointer to a model).
	Insert(ctx context.Context, table string, row any) error
	// Update applies a column map to all rows matching the options.
	Update(ctx context.Context, table string, changes map[string]any, opts ...Option) error
	// Upsert inserts the row or, on a conflict over conflictColumns,
	// overwrites the existing row with it.
	Upsert(ctx context.Context, table string, row any, conflictColumns ...string) error
	// Delete removes all rows matching the options.
	Delete(ctx context.Context, table string, opts ...Option) error
	// Subscribe opens a change feed for one table (TableAny for all tables).
	// The returned stop function must be called on teardown; leaking a
	// subscription leaks a live channel per mounted consumer.
	Subscribe(table string, opts ...SubOption) (<-chan Change, func())
}

// TableAny subscribes to change events on every table.
const TableAny = "*"
