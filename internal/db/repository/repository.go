// Package repository implements the C4 read/write contract: a single
// write operation, replay_event, folding a ChangeLogEntry into whichever
// backing store an implementation owns, plus the read-side query surface
// (by id, by sequence, by condition, offset-paginated, cursor-paginated).
package repository

import (
	"context"

	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// PageRequest is a 0-based offset page request.
type PageRequest struct {
	Page     int
	PageSize int
}

// PageResult carries one page of Entity values plus enough metadata for
// a caller to render pagination controls without a second count query.
type PageResult struct {
	Content       []eventsourcing.Entity
	TotalElements int
	Page          int
	PageSize      int
}

// Probe is a caller-supplied predicate for find_one/find_all/paginated
// condition queries. It runs against the already-replayed in-memory view
// of an entity; the SQL backend still has to materialize candidate rows
// before it can apply one, since a Go closure cannot be pushed down into
// a WHERE clause.
type Probe func(eventsourcing.Entity) bool

// Repository is the C4 contract. Both the in-memory and SQL backends
// implement it identically from the caller's perspective: replaying the
// same event log against either produces the same read-side answers.
type Repository interface {
	// ReplayEvent folds entry into the backing store. Create is a no-op
	// if the entity already exists; Update returns EntityNotFound if it
	// does not; Delete is a no-op if it does not. All three are
	// idempotent under replay of the same event.
	ReplayEvent(ctx context.Context, entry eventsourcing.ChangeLogEntry) error

	FindByID(ctx context.Context, entityType string, id uint64) (eventsourcing.Entity, error)
	Exists(ctx context.Context, entityType string, id uint64) (bool, error)

	// FindBySequence looks up the entity created by the Create event
	// whose EventID equals seq. Distinct from FindByID: entity_id is the
	// domain identity (order_id, trade_id, ...), sequence is the
	// creation event's position in the global event_id ordering.
	FindBySequence(ctx context.Context, entityType string, seq uint64) (eventsourcing.Entity, error)

	FindOneByCondition(ctx context.Context, entityType string, probe Probe) (eventsourcing.Entity, bool, error)
	FindAllByCondition(ctx context.Context, entityType string, probe Probe) ([]eventsourcing.Entity, error)
	FindAllByConditionPaginated(ctx context.Context, entityType string, probe Probe, page PageRequest) (PageResult, error)
	FindRangeBySequencePaginated(ctx context.Context, entityType string, from, to uint64, page PageRequest) (PageResult, error)

	// FindByCursor returns up to limit entities after (forward) or before
	// (!forward) cursor, ordered by creation sequence, plus the cursor to
	// pass on the next call. Required alongside offset pagination because
	// offset pagination degrades past roughly 1000 pages (spec's stated
	// rationale): a cursor is a sequence number, not a row offset, so the
	// query plan stays an index seek at any depth.
	FindByCursor(ctx context.Context, entityType string, probe Probe, cursor uint64, limit int, forward bool) ([]eventsourcing.Entity, uint64, error)
}
