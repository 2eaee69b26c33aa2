package eventsourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/lobcore/internal/core/domain"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

func newTestOrder() OrderEntity {
	return OrderEntity{
		OrderID:        1,
		TraderID:       42,
		Side:           domain.Buy,
		Price:          fixedpoint.MustNew(10100, -2),
		Quantity:       fixedpoint.MustNew(100, -2),
		FilledQuantity: fixedpoint.Zero(-2),
		Status:         domain.Submitted,
		CreatedAt:      1000,
	}
}

func TestOrderEntity_DiffReplayRoundTrip(t *testing.T) {
	a := newTestOrder()
	b := a
	b.FilledQuantity = fixedpoint.MustNew(50, -2)
	b.Status = domain.PartiallyFilled

	changes := a.Diff(b)
	require.NotEmpty(t, changes)

	entry := ChangeLogEntry{
		EventID:    1,
		EntityType: OrderEntityType,
		Operation:  OpUpdate,
		Timestamp:  1001,
		Changes:    []RecordChange{{EntityID: a.OrderID, FieldChanges: changes}},
	}

	clone := a
	require.NoError(t, clone.Replay(entry))
	assert.Equal(t, b, clone)
}

func TestOrderEntity_TrackCreateReconstruction(t *testing.T) {
	o := newTestOrder()
	entry := o.TrackCreate(1, 1, 1000)

	reconstructed, err := OrderFromCreatedEvent(entry)
	require.NoError(t, err)

	got := reconstructed.(*OrderEntity)
	assert.Equal(t, o.OrderID, got.OrderID)
	assert.Equal(t, o.TraderID, got.TraderID)
	assert.Equal(t, o.Side, got.Side)
	assert.True(t, o.Price.Equal(got.Price))
	assert.True(t, o.Quantity.Equal(got.Quantity))
	assert.True(t, o.FilledQuantity.Equal(got.FilledQuantity))
	assert.Equal(t, o.Status, got.Status)
}

func TestOrderEntity_UpdateReversibility(t *testing.T) {
	before := newTestOrder()
	after := before
	after.FilledQuantity = fixedpoint.MustNew(100, -2)
	after.Status = domain.Filled

	changes := before.Diff(after)
	require.NotEmpty(t, changes)

	// swap old/new and re-apply to the post-change entity: restores the
	// prior value.
	swapped := make([]FieldChange, len(changes))
	for i, c := range changes {
		swapped[i] = FieldChange{FieldName: c.FieldName, OldValue: c.NewValue, NewValue: c.OldValue}
	}
	entry := ChangeLogEntry{
		EventID:    2,
		EntityType: OrderEntityType,
		Operation:  OpUpdate,
		Timestamp:  1002,
		Changes:    []RecordChange{{EntityID: after.OrderID, FieldChanges: swapped}},
	}

	clone := after
	require.NoError(t, clone.Replay(entry))
	assert.Equal(t, before, clone)
}

func TestOrderEntity_TrackUpdate_NoDiffYieldsEmptyChanges(t *testing.T) {
	o := newTestOrder()
	_, entry := o.TrackUpdate(func(e *OrderEntity) {}, 1, 1, 1000)
	assert.Empty(t, entry.Changes)
}

func TestChangeLogEntry_Validate_CreateRejectsOldValue(t *testing.T) {
	old := NewTraderID(1)
	entry := ChangeLogEntry{
		EntityType: OrderEntityType,
		Operation:  OpCreate,
		Changes: []RecordChange{{
			EntityID:     1,
			FieldChanges: []FieldChange{{FieldName: "trader_id", OldValue: &old}},
		}},
	}
	assert.Error(t, entry.Validate())
}

func TestLog_AppendEnforcesMonotonicEventID(t *testing.T) {
	var log Log
	o := newTestOrder()
	require.NoError(t, log.Append(o.TrackCreate(1, 1, 1000)))

	dup := o.TrackCreate(1, 1, 1001)
	err := log.Append(dup)
	assert.Error(t, err)
}

func TestTradeEntity_ReplayRejectsNonCreate(t *testing.T) {
	trade := TradeEntity{TradeID: 1}
	entry := ChangeLogEntry{EntityType: TradeEntityType, Operation: OpUpdate}
	assert.Error(t, trade.Replay(entry))
}
