package eventsourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

func newTestPosition() PositionEntity {
	return PositionEntity{
		PositionID:        PositionKey(42, "BTC-USD"),
		TraderID:          42,
		Symbol:            "BTC-USD",
		NetQuantity:       fixedpoint.MustNew(100, -2),
		AverageEntryPrice: fixedpoint.MustNew(1010000, -2),
	}
}

func TestPositionKey_StableAndSymbolSensitive(t *testing.T) {
	a := PositionKey(42, "BTC-USD")
	b := PositionKey(42, "BTC-USD")
	c := PositionKey(42, "ETH-USD")
	d := PositionKey(7, "BTC-USD")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestPositionEntity_DiffReplayRoundTrip(t *testing.T) {
	a := newTestPosition()
	b := a
	b.NetQuantity = fixedpoint.MustNew(150, -2)
	b.AverageEntryPrice = fixedpoint.MustNew(1020000, -2)

	changes := a.Diff(b)
	require.Len(t, changes, 2)

	entry := ChangeLogEntry{
		EventID:    1,
		EntityType: PositionEntityType,
		Operation:  OpUpdate,
		Timestamp:  1001,
		Changes:    []RecordChange{{EntityID: a.PositionID, FieldChanges: changes}},
	}

	clone := a
	require.NoError(t, clone.Replay(entry))
	assert.Equal(t, b, clone)
}

func TestPositionEntity_DiffOmitsUnchangedFields(t *testing.T) {
	a := newTestPosition()
	b := a
	b.NetQuantity = fixedpoint.MustNew(150, -2)

	changes := a.Diff(b)
	require.Len(t, changes, 1)
	assert.Equal(t, "net_quantity", changes[0].FieldName)
}

func TestPositionEntity_TrackCreateReconstruction(t *testing.T) {
	p := newTestPosition()
	entry := p.TrackCreate(1, 1, 1000)

	reconstructed, err := PositionFromCreatedEvent(entry)
	require.NoError(t, err)

	got := reconstructed.(*PositionEntity)
	assert.Equal(t, p.PositionID, got.PositionID)
	assert.Equal(t, p.TraderID, got.TraderID)
	assert.Equal(t, p.Symbol, got.Symbol)
	assert.True(t, p.NetQuantity.Equal(got.NetQuantity))
	assert.True(t, p.AverageEntryPrice.Equal(got.AverageEntryPrice))
}

func TestPositionEntity_TrackUpdateAppliesMutation(t *testing.T) {
	p := newTestPosition()

	after, entry := p.TrackUpdate(func(pos *PositionEntity) {
		pos.NetQuantity = fixedpoint.MustNew(200, -2)
	}, 5, 2, 1002)

	require.Len(t, entry.Changes, 1)
	assert.True(t, after.NetQuantity.Equal(fixedpoint.MustNew(200, -2)))
	assert.Equal(t, OpUpdate, entry.Operation)
	assert.Equal(t, uint64(5), entry.TransactionID)
}

func TestPositionEntity_TrackUpdateNoopProducesEmptyChanges(t *testing.T) {
	p := newTestPosition()

	_, entry := p.TrackUpdate(func(*PositionEntity) {}, 5, 2, 1002)

	assert.Empty(t, entry.Changes)
}
