package repository

import (
	"context"
	"sort"
	"sync"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// record pairs a live entity with the event_id of the Create entry that
// first produced it, since FindBySequence/cursor pagination order by
// creation sequence rather than by the mutable entity_id space.
type record struct {
	entity   eventsourcing.Entity
	sequence uint64
}

// InMemoryRepository is a mutex-guarded map keyed by (entity_type,
// entity_id), the simplest backend satisfying the C4 contract and the
// one recovery/replay tests run against without a live database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	registry *eventsourcing.Registry
	data     map[string]map[uint64]*record
}

// NewInMemoryRepository builds an empty repository. registry supplies the
// entity_type -> FactoryFunc bindings used to reconstruct entities from
// Create entries.
func NewInMemoryRepository(registry *eventsourcing.Registry) *InMemoryRepository {
	return &InMemoryRepository{
		registry: registry,
		data:     make(map[string]map[uint64]*record),
	}
}

func (r *InMemoryRepository) bucket(entityType string) map[uint64]*record {
	b, ok := r.data[entityType]
	if !ok {
		b = make(map[uint64]*record)
		r.data[entityType] = b
	}
	return b
}

// ReplayEvent folds entry per §4.4: Create is idempotent-insert, Update
// requires the entity to already exist, Delete is an idempotent removal.
func (r *InMemoryRepository) ReplayEvent(_ context.Context, entry eventsourcing.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.bucket(entry.EntityType)

	switch entry.Operation {
	case eventsourcing.OpCreate:
		if len(entry.Changes) == 0 {
			return coreerrors.Validation("create entry %d has no record changes", entry.EventID)
		}
		id := entry.Changes[0].EntityID
		if _, exists := bucket[id]; exists {
			return nil // idempotent re-application
		}
		entity, err := r.registry.FromCreatedEvent(entry)
		if err != nil {
			return err
		}
		bucket[id] = &record{entity: entity, sequence: entry.EventID}
		return nil

	case eventsourcing.OpUpdate:
		for _, rc := range entry.Changes {
			existing, ok := bucket[rc.EntityID]
			if !ok {
				return coreerrors.EntityNotFound(entry.EntityType, rc.EntityID)
			}
			if err := existing.entity.Replay(entry); err != nil {
				return err
			}
		}
		return nil

	case eventsourcing.OpDelete:
		for _, rc := range entry.Changes {
			delete(bucket, rc.EntityID)
		}
		return nil

	default:
		return coreerrors.Validation("unknown change operation %v", entry.Operation)
	}
}

func (r *InMemoryRepository) FindByID(_ context.Context, entityType string, id uint64) (eventsourcing.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[entityType][id]
	if !ok {
		return nil, coreerrors.EntityNotFound(entityType, id)
	}
	return rec.entity, nil
}

func (r *InMemoryRepository) Exists(_ context.Context, entityType string, id uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.data[entityType][id]
	return ok, nil
}

func (r *InMemoryRepository) FindBySequence(_ context.Context, entityType string, seq uint64) (eventsourcing.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.data[entityType] {
		if rec.sequence == seq {
			return rec.entity, nil
		}
	}
	return nil, coreerrors.EntityNotFound(entityType, seq)
}

// sortedRecords returns every record of entityType sorted by creation
// sequence, the stable order every paginated/cursor read uses.
func (r *InMemoryRepository) sortedRecords(entityType string) []*record {
	bucket := r.data[entityType]
	out := make([]*record, 0, len(bucket))
	for _, rec := range bucket {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sequence < out[j].sequence })
	return out
}

func (r *InMemoryRepository) FindOneByCondition(_ context.Context, entityType string, probe Probe) (eventsourcing.Entity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.sortedRecords(entityType) {
		if probe(rec.entity) {
			return rec.entity, true, nil
		}
	}
	return nil, false, nil
}

func (r *InMemoryRepository) FindAllByCondition(_ context.Context, entityType string, probe Probe) ([]eventsourcing.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []eventsourcing.Entity
	for _, rec := range r.sortedRecords(entityType) {
		if probe(rec.entity) {
			out = append(out, rec.entity)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) FindAllByConditionPaginated(_ context.Context, entityType string, probe Probe, page PageRequest) (PageResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []eventsourcing.Entity
	for _, rec := range r.sortedRecords(entityType) {
		if probe(rec.entity) {
			matched = append(matched, rec.entity)
		}
	}
	return paginate(matched, page), nil
}

func (r *InMemoryRepository) FindRangeBySequencePaginated(_ context.Context, entityType string, from, to uint64, page PageRequest) (PageResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []eventsourcing.Entity
	for _, rec := range r.sortedRecords(entityType) {
		if rec.sequence >= from && rec.sequence <= to {
			matched = append(matched, rec.entity)
		}
	}
	return paginate(matched, page), nil
}

func paginate(all []eventsourcing.Entity, page PageRequest) PageResult {
	start := page.Page * page.PageSize
	if start < 0 {
		start = 0
	}
	end := start + page.PageSize
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	content := make([]eventsourcing.Entity, end-start)
	copy(content, all[start:end])
	return PageResult{
		Content:       content,
		TotalElements: len(all),
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
}

func (r *InMemoryRepository) FindByCursor(_ context.Context, entityType string, probe Probe, cursor uint64, limit int, forward bool) ([]eventsourcing.Entity, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.sortedRecords(entityType)
	var window []*record
	if forward {
		for _, rec := range records {
			if rec.sequence > cursor {
				window = append(window, rec)
			}
		}
	} else {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].sequence < cursor {
				window = append(window, records[i])
			}
		}
	}

	out := make([]eventsourcing.Entity, 0, limit)
	var next uint64
	for _, rec := range window {
		if !probe(rec.entity) {
			continue
		}
		out = append(out, rec.entity)
		next = rec.sequence
		if len(out) >= limit {
			break
		}
	}
	return out, next, nil
}
