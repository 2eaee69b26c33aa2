package eventsourcing

import (
	"sort"

	"github.com/tradsys/lobcore/internal/core/domain"
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
)

// Operation re-exports domain.ChangeOperation under the name used
// throughout this package and the wire-format documentation.
type Operation = domain.ChangeOperation

const (
	OpCreate = domain.Create
	OpUpdate = domain.Update
	OpDelete = domain.Delete
)

// FieldChange holds one named field's before/after value. In a Create,
// OldValue is always nil; in a Delete, NewValue is always nil; in an
// Update, at least one FieldChange in the owning RecordChange has
// OldValue != NewValue.
type FieldChange struct {
	FieldName string
	OldValue  *FieldValue
	NewValue  *FieldValue
}

// Changed reports whether Old and New differ (by tag or value). A
// FieldChange with no observable difference should never be emitted by
// diff; this helper lets callers assert that invariant in tests.
func (c FieldChange) Changed() bool {
	if (c.OldValue == nil) != (c.NewValue == nil) {
		return true
	}
	if c.OldValue == nil {
		return false
	}
	return !c.OldValue.Equal(*c.NewValue)
}

// RecordChange batches the FieldChanges for one entity instance within
// a single ChangeLogEntry.
type RecordChange struct {
	EntityID     uint64
	FieldChanges []FieldChange
}

// ChangeLogEntry is a single immutable record describing a create,
// update, or delete of one or more entities of one EntityType, under one
// TransactionID. Once constructed it is never mutated.
type ChangeLogEntry struct {
	EventID       uint64
	TransactionID uint64
	EntityType    string
	Operation     Operation
	Changes       []RecordChange
	Timestamp     uint64 // milliseconds since epoch
}

// Validate checks the structural invariants of §4.3/§4.2: in a Create
// every field change has OldValue == nil; in a Delete every field
// change has NewValue == nil; in an Update at least one field differs.
func (e ChangeLogEntry) Validate() error {
	for _, rc := range e.Changes {
		switch e.Operation {
		case OpCreate:
			for _, fc := range rc.FieldChanges {
				if fc.OldValue != nil {
					return coreerrors.Validation("create entry %d field %q has a non-nil old value", e.EventID, fc.FieldName)
				}
			}
		case OpDelete:
			for _, fc := range rc.FieldChanges {
				if fc.NewValue != nil {
					return coreerrors.Validation("delete entry %d field %q has a non-nil new value", e.EventID, fc.FieldName)
				}
			}
		case OpUpdate:
			anyChanged := false
			for _, fc := range rc.FieldChanges {
				if fc.Changed() {
					anyChanged = true
					break
				}
			}
			if !anyChanged {
				return coreerrors.Validation("update entry %d for entity %d has no observed field change", e.EventID, rc.EntityID)
			}
		}
	}
	return nil
}

// Log is an append-only, monotonicity-checked sequence of
// ChangeLogEntry values for one entity's history. Monotonicity is
// asserted at append time per §4.3: an entry whose EventID or Timestamp
// is not strictly greater than the last appended entry is a
// SequenceViolation.
type Log struct {
	entries []ChangeLogEntry
}

// Append adds entry to the log, enforcing strict (event_id, timestamp)
// monotonicity against the previously appended entry.
func (l *Log) Append(entry ChangeLogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if len(l.entries) > 0 {
		last := l.entries[len(l.entries)-1]
		if entry.EventID <= last.EventID {
			return coreerrors.SequenceViolation("event_id %d is not greater than last appended %d", entry.EventID, last.EventID)
		}
		if entry.Timestamp <= last.Timestamp {
			return coreerrors.SequenceViolation("timestamp %d is not greater than last appended %d", entry.Timestamp, last.Timestamp)
		}
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the log ordered by (timestamp, event_id),
// the order replay must read rows in.
func (l *Log) Entries() []ChangeLogEntry {
	out := make([]ChangeLogEntry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Len reports the number of entries currently appended.
func (l *Log) Len() int { return len(l.entries) }
