package eventsourcing

import (
	"github.com/tradsys/lobcore/internal/core/domain"
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// OrderEntityType is the entity_type string every Order ChangeLogEntry
// and repository row carries.
const OrderEntityType = "Order"

// OrderEntity mirrors the persisted view of a matching-engine Order
// (spec §3): the fields a handler packages into events and a repository
// folds into a row. It carries no engine-internal arena indices — those
// live only in the live matching.Order, never in the log.
type OrderEntity struct {
	OrderID        uint64
	TraderID       uint64
	Side           domain.Side
	Price          fixedpoint.Value
	Quantity       fixedpoint.Value
	FilledQuantity fixedpoint.Value
	Status         domain.OrderStatus
	CreatedAt      uint64 // ms since epoch; #[diff(skip)]-equivalent: immutable, excluded from Diff
}

func (o OrderEntity) EntityID() uint64    { return o.OrderID }
func (o OrderEntity) EntityType() string  { return OrderEntityType }

// Diff compares o against other field-by-field in declaration order,
// skipping CreatedAt (immutable once set, the #[diff(skip)] field of
// this entity).
func (o OrderEntity) Diff(other OrderEntity) []FieldChange {
	var changes []FieldChange
	changes = appendIfChanged(changes, "trader_id", NewTraderID(o.TraderID), NewTraderID(other.TraderID))
	changes = appendIfChanged(changes, "side", NewSide(o.Side), NewSide(other.Side))
	changes = appendIfChanged(changes, "price", NewPrice(o.Price), NewPrice(other.Price))
	changes = appendIfChanged(changes, "quantity", NewQuantity(o.Quantity), NewQuantity(other.Quantity))
	changes = appendIfChanged(changes, "filled_quantity", NewQuantity(o.FilledQuantity), NewQuantity(other.FilledQuantity))
	changes = appendIfChanged(changes, "status", NewStatus(o.Status.String()), NewStatus(other.Status.String()))
	return changes
}

// Replay applies entry to o in place. Update entries apply each named
// FieldChange; unknown field names are skipped (forward compatibility)
// without an error, and nothing reports them; a value of the wrong
// variant is a FieldParseError.
func (o *OrderEntity) Replay(entry ChangeLogEntry) error {
	for _, rc := range entry.Changes {
		if rc.EntityID != o.OrderID {
			continue
		}
		if err := requireTarget(OrderEntityType, o.OrderID, entry, rc.EntityID); err != nil {
			return err
		}
		if entry.Operation != OpUpdate {
			continue
		}
		for _, fc := range rc.FieldChanges {
			if fc.NewValue == nil {
				continue
			}
			if err := o.applyField(fc.FieldName, *fc.NewValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *OrderEntity) applyField(name string, v FieldValue) error {
	switch name {
	case "trader_id":
		id, err := v.AsU64()
		if err != nil {
			return err
		}
		o.TraderID = id
	case "side":
		s, err := v.AsSide()
		if err != nil {
			return err
		}
		o.Side = s
	case "price":
		p, err := v.AsDecimal()
		if err != nil {
			return err
		}
		o.Price = p
	case "quantity":
		q, err := v.AsDecimal()
		if err != nil {
			return err
		}
		o.Quantity = q
	case "filled_quantity":
		q, err := v.AsDecimal()
		if err != nil {
			return err
		}
		o.FilledQuantity = q
	case "status":
		s, err := v.AsString()
		if err != nil {
			return err
		}
		status, err := parseOrderStatus(s)
		if err != nil {
			return err
		}
		o.Status = status
	default:
		// unknown field name: skipped for forward compatibility; no
		// error is returned and no warning is logged.
	}
	return nil
}

func parseOrderStatus(s string) (domain.OrderStatus, error) {
	switch s {
	case "pending":
		return domain.Pending, nil
	case "submitted":
		return domain.Submitted, nil
	case "partially_filled":
		return domain.PartiallyFilled, nil
	case "filled":
		return domain.Filled, nil
	case "cancelled":
		return domain.Cancelled, nil
	case "rejected":
		return domain.Rejected, nil
	default:
		return 0, coreerrors.FieldParseError("unknown order status %q", s)
	}
}

// TrackCreate produces a Create ChangeLogEntry from o's current state:
// every field change has OldValue == nil.
func (o OrderEntity) TrackCreate(transactionID, eventID, timestamp uint64) ChangeLogEntry {
	nv := func(fv FieldValue) *FieldValue { v := fv; return &v }
	return ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    OrderEntityType,
		Operation:     OpCreate,
		Timestamp:     timestamp,
		Changes: []RecordChange{{
			EntityID: o.OrderID,
			FieldChanges: []FieldChange{
				{FieldName: "trader_id", NewValue: nv(NewTraderID(o.TraderID))},
				{FieldName: "side", NewValue: nv(NewSide(o.Side))},
				{FieldName: "price", NewValue: nv(NewPrice(o.Price))},
				{FieldName: "quantity", NewValue: nv(NewQuantity(o.Quantity))},
				{FieldName: "filled_quantity", NewValue: nv(NewQuantity(o.FilledQuantity))},
				{FieldName: "status", NewValue: nv(NewStatus(o.Status.String()))},
			},
		}},
	}
}

// TrackUpdate clones o, runs mutate over the clone, diffs the two, and
// returns (mutated clone, Update entry). The entry's Changes is empty
// when mutate produced no observable difference.
func (o OrderEntity) TrackUpdate(mutate func(*OrderEntity), transactionID, eventID, timestamp uint64) (OrderEntity, ChangeLogEntry) {
	before := o
	after := o
	mutate(&after)
	changes := before.Diff(after)

	var recordChanges []RecordChange
	if len(changes) > 0 {
		recordChanges = []RecordChange{{EntityID: o.OrderID, FieldChanges: changes}}
	}

	return after, ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    OrderEntityType,
		Operation:     OpUpdate,
		Timestamp:     timestamp,
		Changes:       recordChanges,
	}
}

// TrackDelete produces a Delete ChangeLogEntry from o's current state:
// every field change has NewValue == nil.
func (o OrderEntity) TrackDelete(transactionID, eventID, timestamp uint64) ChangeLogEntry {
	ov := func(fv FieldValue) *FieldValue { v := fv; return &v }
	return ChangeLogEntry{
		EventID:       eventID,
		TransactionID: transactionID,
		EntityType:    OrderEntityType,
		Operation:     OpDelete,
		Timestamp:     timestamp,
		Changes: []RecordChange{{
			EntityID: o.OrderID,
			FieldChanges: []FieldChange{
				{FieldName: "status", OldValue: ov(NewStatus(o.Status.String()))},
			},
		}},
	}
}

// OrderFromCreatedEvent reconstructs an OrderEntity from the new_value
// payload of a Create entry alone, required so recovery can start from
// the first event of a live order even without a snapshot.
func OrderFromCreatedEvent(entry ChangeLogEntry) (Entity, error) {
	if entry.EntityType != OrderEntityType || entry.Operation != OpCreate {
		return nil, coreerrors.FieldParseError("not an Order create entry")
	}
	if len(entry.Changes) == 0 {
		return nil, coreerrors.FieldParseError("create entry has no record changes")
	}
	rc := entry.Changes[0]
	o := &OrderEntity{OrderID: rc.EntityID, CreatedAt: entry.Timestamp}
	for _, fc := range rc.FieldChanges {
		if fc.NewValue == nil {
			continue
		}
		if err := o.applyField(fc.FieldName, *fc.NewValue); err != nil {
			return nil, err
		}
	}
	return o, nil
}
