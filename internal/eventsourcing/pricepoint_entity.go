package eventsourcing

import (
	"github.com/tradsys/lobcore/internal/core/domain"
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// PricePointEntityType is the entity_type string every PricePoint
// ChangeLogEntry and repository row carries. Its EntityID is a
// synthetic key combining side and price, since a PricePoint has no
// engine-assigned id of its own (spec §3: "unique within its side").
const PricePointEntityType = "PricePoint"

// PricePointEntity mirrors the aggregate total_quantity change-log rows
// spec §4.5 requires for every price-level mutation. It carries no
// chain/head/tail arena indices — those are purely an engine-internal
// concern of the live matching.PricePoint.
type PricePointEntity struct {
	Key           uint64 // packed (side, price) synthetic entity id, see PricePointKey
	Side          domain.Side
	Price         fixedpoint.Value
	TotalQuantity fixedpoint.Value
}

// PricePointKey derives the synthetic EntityID for a (side, price) pair:
// the price's raw mantissa in the high bits, the side in the low bit.
// Prices within one symbol always share a tick exponent, so the
// mantissa alone disambiguates price levels.
func PricePointKey(side domain.Side, price fixedpoint.Value) uint64 {
	sideBit := uint64(0)
	if side == domain.Sell {
		sideBit = 1
	}
	return (uint64(price.Mantissa()) << 1) | sideBit
}

func (p PricePointEntity) EntityID() uint64   { return p.Key }
func (p PricePointEntity) EntityType() string { return PricePointEntityType }

// Diff compares total_quantity only; Side and Price are immutable for
// the lifetime of a PricePoint (it is destroyed, not repriced, when its
// chain empties).
func (p PricePointEntity) Diff(other PricePointEntity) []FieldChange {
	return appendIfChanged(nil, "total_quantity", NewQuantity(p.TotalQuantity), NewQuantity(other.TotalQuantity))
}

// Replay applies an Update entry's total_quantity field change.
func (p *PricePointEntity) Replay(entry ChangeLogEntry) error {
	for _, rc := range entry.Changes {
		if rc.EntityID != p.Key {
			continue
		}
		if err := requireTarget(PricePointEntityType, p.Key, entry, rc.EntityID); err != nil {
			return err
		}
		if entry.Operation != OpUpdate {
			continue
		}
		for _, fc := range rc.FieldChanges {
			if fc.FieldName == "total_quantity" && fc.NewValue != nil {
				q, err := fc.NewValue.AsDecimal()
				if err != nil {
					return err
				}
				p.TotalQuantity = q
			}
		}
	}
	return nil
}

// TrackUpdate produces a PricePoint Update entry carrying the
// before/after total_quantity, per spec §4.5's "Price-point total
// updates" event shape.
func (p PricePointEntity) TrackUpdate(newTotal fixedpoint.Value, transactionID, eventID, timestamp uint64) ChangeLogEntry {
	after := p
	after.TotalQuantity = newTotal
	changes := p.Diff(after)

	var recordChanges []RecordChange
	if len(changes) > 0 {
		recordChanges = []RecordChange{{EntityID: p.Key, FieldChanges: changes}}
	}

	return ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    PricePointEntityType,
		Operation:     OpUpdate,
		Timestamp:     timestamp,
		Changes:       recordChanges,
	}
}

// PricePointFromCreatedEvent reconstructs a PricePointEntity from a
// Create entry (emitted the first time a price level is touched).
func PricePointFromCreatedEvent(entry ChangeLogEntry) (Entity, error) {
	if entry.EntityType != PricePointEntityType || entry.Operation != OpCreate {
		return nil, coreerrors.FieldParseError("not a PricePoint create entry")
	}
	if len(entry.Changes) == 0 {
		return nil, coreerrors.FieldParseError("create entry has no record changes")
	}
	rc := entry.Changes[0]
	pp := &PricePointEntity{Key: rc.EntityID}
	for _, fc := range rc.FieldChanges {
		if fc.NewValue == nil {
			continue
		}
		switch fc.FieldName {
		case "side":
			s, err := fc.NewValue.AsSide()
			if err != nil {
				return nil, err
			}
			pp.Side = s
		case "price":
			p, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			pp.Price = p
		case "total_quantity":
			q, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			pp.TotalQuantity = q
		}
	}
	return pp, nil
}
