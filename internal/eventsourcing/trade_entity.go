package eventsourcing

import (
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// TradeEntityType is the entity_type string every Trade ChangeLogEntry
// and repository row carries.
const TradeEntityType = "Trade"

// TradeEntity mirrors spec §3's Trade: immutable once emitted, so it
// only ever appears as a Create entry (#[replay(skip)] equivalent: an
// Update/Delete entry targeting a Trade is a FieldParseError, there is
// no field to mutate).
type TradeEntity struct {
	TradeID       uint64
	BuyerOrderID  uint64
	SellerOrderID uint64
	Price         fixedpoint.Value
	Quantity      fixedpoint.Value
	Timestamp     uint64
}

func (t TradeEntity) EntityID() uint64   { return t.TradeID }
func (t TradeEntity) EntityType() string { return TradeEntityType }

// Diff is declared for symmetry with the Entity machinery contract, but
// a Trade is immutable once emitted; two TradeEntity values with the
// same TradeID are always equal in every field.
func (t TradeEntity) Diff(other TradeEntity) []FieldChange {
	var changes []FieldChange
	changes = appendIfChanged(changes, "buyer_order_id", NewOrderID(t.BuyerOrderID), NewOrderID(other.BuyerOrderID))
	changes = appendIfChanged(changes, "seller_order_id", NewOrderID(t.SellerOrderID), NewOrderID(other.SellerOrderID))
	changes = appendIfChanged(changes, "price", NewPrice(t.Price), NewPrice(other.Price))
	changes = appendIfChanged(changes, "quantity", NewQuantity(t.Quantity), NewQuantity(other.Quantity))
	return changes
}

// Replay only accepts Create entries for a Trade: there is nothing to
// mutate post-creation, so Update/Delete targeting a Trade is rejected
// as a FieldParseError rather than silently ignored.
func (t *TradeEntity) Replay(entry ChangeLogEntry) error {
	if entry.Operation != OpCreate {
		return coreerrors.FieldParseError("trade %d: trades are immutable, cannot apply %s", t.TradeID, entry.Operation)
	}
	return nil
}

// TrackCreate produces the single Create ChangeLogEntry a Trade ever
// has.
func (t TradeEntity) TrackCreate(transactionID, eventID, timestamp uint64) ChangeLogEntry {
	nv := func(fv FieldValue) *FieldValue { v := fv; return &v }
	return ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    TradeEntityType,
		Operation:     OpCreate,
		Timestamp:     timestamp,
		Changes: []RecordChange{{
			EntityID: t.TradeID,
			FieldChanges: []FieldChange{
				{FieldName: "buyer_order_id", NewValue: nv(NewOrderID(t.BuyerOrderID))},
				{FieldName: "seller_order_id", NewValue: nv(NewOrderID(t.SellerOrderID))},
				{FieldName: "price", NewValue: nv(NewPrice(t.Price))},
				{FieldName: "quantity", NewValue: nv(NewQuantity(t.Quantity))},
			},
		}},
	}
}

// TradeFromCreatedEvent reconstructs a TradeEntity from a Create entry.
func TradeFromCreatedEvent(entry ChangeLogEntry) (Entity, error) {
	if entry.EntityType != TradeEntityType || entry.Operation != OpCreate {
		return nil, coreerrors.FieldParseError("not a Trade create entry")
	}
	if len(entry.Changes) == 0 {
		return nil, coreerrors.FieldParseError("create entry has no record changes")
	}
	rc := entry.Changes[0]
	trade := &TradeEntity{TradeID: rc.EntityID, Timestamp: entry.Timestamp}
	for _, fc := range rc.FieldChanges {
		if fc.NewValue == nil {
			continue
		}
		switch fc.FieldName {
		case "buyer_order_id":
			id, err := fc.NewValue.AsU64()
			if err != nil {
				return nil, err
			}
			trade.BuyerOrderID = id
		case "seller_order_id":
			id, err := fc.NewValue.AsU64()
			if err != nil {
				return nil, err
			}
			trade.SellerOrderID = id
		case "price":
			p, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			trade.Price = p
		case "quantity":
			q, err := fc.NewValue.AsDecimal()
			if err != nil {
				return nil, err
			}
			trade.Quantity = q
		}
	}
	return trade, nil
}
