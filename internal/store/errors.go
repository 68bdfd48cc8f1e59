// Package store implements the entity-mirror synchronization layer: one
// store per entity keeping an in-memory mirror of its table slice live via
// an initial fetch plus a change subscription, with optimistic mutation
// semantics (apply locally, issue the remote call, compensate on failure).
//
// This file centralizes the store-level error values so callers can branch
// on them instead of parsing messages.
package store

import "errors"

var (
	// ErrClosed is returned by mutations on a store whose mirror has been
	// torn down. Late network completions hit this instead of mutating
	// freed state.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound indicates the target entity is not in the mirror.
	ErrNotFound = errors.New("entity not found")

	// ErrEmptyContent is returned when a required text field is empty; the
	// remote call is skipped entirely.
	ErrEmptyContent = errors.New("content is empty")

	// ErrCoolingDown is returned by Love.Send while the cooldown window is
	// still open. No row is inserted.
	ErrCoolingDown = errors.New("love cooldown active")
)
