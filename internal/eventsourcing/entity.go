package eventsourcing

import (
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
)

// Entity is the minimal contract the repository layer (C4) needs to
// fold a ChangeLogEntry into any concrete entity type. Each concrete
// entity (OrderEntity, TradeEntity, PricePointEntity, PositionEntity)
// additionally exposes Diff and a package-level FromCreatedEvent
// constructor, plus Track* producers: OrderEntity has TrackCreate,
// TrackUpdate and TrackDelete; PositionEntity has TrackCreate and
// TrackUpdate; TradeEntity has TrackCreate only; PricePointEntity has
// TrackUpdate only. No entity other than OrderEntity has a TrackDelete.
// These are hand-written per
// type rather than expressed through this interface because Go has no
// derive facility to generate them, and a self-referential generic
// interface buys nothing a type switch in the repository wouldn't also
// need.
type Entity interface {
	// EntityID returns the id, stable across the entity's lifetime.
	EntityID() uint64

	// EntityType returns the logical table name, the same string
	// ChangeLogEntry.EntityType carries for rows of this kind.
	EntityType() string

	// Replay applies entry in place. Only RecordChanges whose EntityID
	// equals the receiver's id are applied; the others are skipped, so
	// an entry with no record for the receiver is a no-op. Order,
	// PricePoint and Position refuse a record for their id under a
	// different EntityType with a FieldParseError-class EntityError;
	// TradeEntity accepts any Create as a no-op and refuses every
	// Update or Delete.
	Replay(entry ChangeLogEntry) error
}

// FactoryFunc reconstructs a fresh Entity purely from the new_value
// payload of a Create ChangeLogEntry. Repositories key a registry of
// these by EntityType so recovery can bootstrap an entity from its
// first event alone, without a snapshot.
type FactoryFunc func(entry ChangeLogEntry) (Entity, error)

// Registry maps an entity_type string to its FactoryFunc, letting the
// repository layer stay entity-agnostic.
type Registry struct {
	factories map[string]FactoryFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FactoryFunc)}
}

// Register binds entityType to factory. Re-registering the same type
// overwrites the previous binding.
func (r *Registry) Register(entityType string, factory FactoryFunc) {
	r.factories[entityType] = factory
}

// FromCreatedEvent looks up the factory for entry.EntityType and uses it
// to build a fresh Entity, or returns FieldParseError if no factory is
// registered for that entity type.
func (r *Registry) FromCreatedEvent(entry ChangeLogEntry) (Entity, error) {
	factory, ok := r.factories[entry.EntityType]
	if !ok {
		return nil, coreerrors.FieldParseError("no factory registered for entity type %q", entry.EntityType)
	}
	return factory(entry)
}

// requireTarget is the shared guard every concrete Replay implementation
// opens with: the entry must name this entity's type and id.
func requireTarget(entityType string, entityID uint64, entry ChangeLogEntry, recordEntityID uint64) error {
	if entry.EntityType != entityType {
		return coreerrors.FieldParseError("replay: entry entity_type %q does not match %q", entry.EntityType, entityType)
	}
	if recordEntityID != entityID {
		return coreerrors.FieldParseError("replay: entry targets entity %d, receiver is %d", recordEntityID, entityID)
	}
	return nil
}

// appendIfChanged is a small helper for diff() implementations: it appends a
// FieldChange to changes only if old and new differ.
func appendIfChanged(changes []FieldChange, fieldName string, oldV, newV FieldValue) []FieldChange {
	if oldV.Equal(newV) {
		return changes
	}
	old := oldV
	new_ := newV
	return append(changes, FieldChange{FieldName: fieldName, OldValue: &old, NewValue: &new_})
}
