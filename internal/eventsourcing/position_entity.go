package eventsourcing

import (
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// PositionEntityType is the entity_type string every Position
// ChangeLogEntry and repository row carries. Positions are the
// SPEC_FULL.md supplement implied by "balances, positions" in the
// purpose statement but dropped by the distillation; they follow the
// same Entity contract as Order/Trade/PricePoint.
const PositionEntityType = "Position"

// PositionEntity holds one trader's net signed quantity and average
// entry price for one symbol. It is folded by the same command handler
// that packages Order/Trade events, not by the matching engine itself.
type PositionEntity struct {
	PositionID       uint64 // synthetic key, see PositionKey
	TraderID         uint64
	Symbol           string
	NetQuantity      fixedpoint.Value // signed: positive long, negative short
	AverageEntryPrice fixedpoint.Value
}

// PositionKey derives a synthetic entity id for a (trader, symbol) pair.
// Symbols are small in number and known at startup, so a simple FNV-1a
// fold over traderID and symbol is stable and collision-free in
// practice for this entity's scope.
func PositionKey(traderID uint64, symbol string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64) ^ traderID
	h *= prime64
	for i := 0; i < len(symbol); i++ {
		h ^= uint64(symbol[i])
		h *= prime64
	}
	return h
}

func (p PositionEntity) EntityID() uint64   { return p.PositionID }
func (p PositionEntity) EntityType() string { return PositionEntityType }

// Diff compares net_quantity and average_entry_price; TraderID and
// Symbol are immutable identity fields, excluded like OrderEntity's
// CreatedAt.
func (p PositionEntity) Diff(other PositionEntity) []FieldChange {
	var changes []FieldChange
	changes = appendIfChanged(changes, "net_quantity", NewQuantity(p.NetQuantity), NewQuantity(other.NetQuantity))
	changes = appendIfChanged(changes, "average_entry_price", NewPrice(p.AverageEntryPrice), NewPrice(other.AverageEntryPrice))
	return changes
}

// Replay applies an Update entry's net_quantity / average_entry_price
// field changes.
func (p *PositionEntity) Replay(entry ChangeLogEntry) error {
	for _, rc := range entry.Changes {
		if rc.EntityID != p.PositionID {
			continue
		}
		if err := requireTarget(PositionEntityType, p.PositionID, entry, rc.EntityID); err != nil {
			return err
		}
		if entry.Operation != OpUpdate {
			continue
		}
		for _, fc := range rc.FieldChanges {
			if fc.NewValue == nil {
				continue
			}
			switch fc.FieldName {
			case "net_quantity":
				q, err := fc.NewValue.AsDecimal()
				if err != nil {
					return err
				}
				p.NetQuantity = q
			case "average_entry_price":
				price, err := fc.NewValue.AsDecimal()
				if err != nil {
					return err
				}
				p.AverageEntryPrice = price
			}
		}
	}
	return nil
}

// TrackCreate produces a Create entry from p's current state.
func (p PositionEntity) TrackCreate(transactionID, eventID, timestamp uint64) ChangeLogEntry {
	nv := func(fv FieldValue) *FieldValue { v := fv; return &v }
	return ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    PositionEntityType,
		Operation:     OpCreate,
		Timestamp:     timestamp,
		Changes: []RecordChange{{
			EntityID: p.PositionID,
			FieldChanges: []FieldChange{
				{FieldName: "trader_id", NewValue: nv(NewTraderID(p.TraderID))},
				{FieldName: "symbol", NewValue: nv(NewStringValue(p.Symbol))},
				{FieldName: "net_quantity", NewValue: nv(NewQuantity(p.NetQuantity))},
				{FieldName: "average_entry_price", NewValue: nv(NewPrice(p.AverageEntryPrice))},
			},
		}},
	}
}

// TrackUpdate clones p, applies mutate, diffs, and returns (mutated
// clone, Update entry), matching OrderEntity's TrackUpdate shape.
func (p PositionEntity) TrackUpdate(mutate func(*PositionEntity), transactionID, eventID, timestamp uint64) (PositionEntity, ChangeLogEntry) {
	before := p
	after := p
	mutate(&after)
	changes := before.Diff(after)

	var recordChanges []RecordChange
	if len(changes) > 0 {
		recordChanges = []RecordChange{{EntityID: p.PositionID, FieldChanges: changes}}
	}

	return after, ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    PositionEntityType,
		Operation:     OpUpdate,
		Timestamp:     timestamp,
		Changes:       recordChanges,
	}
}

// PositionFromCreatedEvent reconstructs a PositionEntity from a Create
// entry.
func PositionFromCreatedEvent(entry ChangeLogEntry) (Entity, error) {
	if entry.EntityType != PositionEntityType || entry.Operation != OpCreate {
		return nil, coreerrors.FieldParseError("not a Position create entry")
	}
	if len(entry.Changes) == 0 {
		return nil, coreerrors.FieldParseError("create entry has no record changes")
	}
	rc := entry.Changes[0]
	pos := &PositionEntity{PositionID: rc.EntityID}
	for _, fc := range rc.FieldChanges {
		if fc.NewValue == nil {
			continue
		}
		switch fc.FieldName {
		case "trader_id":
			id, err := fc.NewValue.AsU64()
			if err != nil {
				return nil, err
			}
			pos.TraderID = id
		case "symbol":
			s, err := fc.NewValue.AsString()
			if err != nil {
				return nil, err
			}
			pos.Symbol = s
		case "net_quantity":
			q, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			pos.NetQuantity = q
		case "average_entry_price":
			price, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			pos.AverageEntryPrice = price
		}
	}
	return pos, nil
}
