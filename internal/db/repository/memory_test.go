package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/lobcore/internal/core/domain"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

func newRegistry() *eventsourcing.Registry {
	reg := eventsourcing.NewRegistry()
	reg.Register(eventsourcing.OrderEntityType, eventsourcing.OrderFromCreatedEvent)
	return reg
}

func px(v int64) fixedpoint.Value { return fixedpoint.MustNew(v, -2) }

func sampleCreate(orderID uint64) eventsourcing.ChangeLogEntry {
	order := eventsourcing.OrderEntity{
		OrderID:  orderID,
		TraderID: 1,
		Side:     domain.Buy,
		Price:    px(1000000),
		Quantity: px(5000),
		Status:   domain.Submitted,
	}
	return order.TrackCreate(1, orderID, orderID)
}

func TestReplayEvent_CreateIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()

	entry := sampleCreate(1)
	require.NoError(t, repo.ReplayEvent(ctx, entry))
	require.NoError(t, repo.ReplayEvent(ctx, entry))

	exists, err := repo.Exists(ctx, eventsourcing.OrderEntityType, 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReplayEvent_UpdateMissingEntityIsNotFound(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()

	order := eventsourcing.OrderEntity{OrderID: 5, Status: domain.Submitted}
	_, entry := order.TrackUpdate(func(o *eventsourcing.OrderEntity) { o.Status = domain.Filled }, 1, 2, 2)

	err := repo.ReplayEvent(ctx, entry)
	assert.Error(t, err)
}

func TestReplayEvent_UpdateAppliesDiff(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()

	require.NoError(t, repo.ReplayEvent(ctx, sampleCreate(1)))

	order := eventsourcing.OrderEntity{OrderID: 1, TraderID: 1, Side: domain.Buy, Price: px(1000000), Quantity: px(5000), Status: domain.Submitted}
	_, entry := order.TrackUpdate(func(o *eventsourcing.OrderEntity) {
		o.Status = domain.Filled
		o.FilledQuantity = px(5000)
	}, 2, 3, 3)
	require.NoError(t, repo.ReplayEvent(ctx, entry))

	found, err := repo.FindByID(ctx, eventsourcing.OrderEntityType, 1)
	require.NoError(t, err)
	updated := found.(*eventsourcing.OrderEntity)
	assert.Equal(t, domain.Filled, updated.Status)
	assert.True(t, updated.FilledQuantity.Equal(px(5000)))
}

func TestReplayEvent_DeleteIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()
	require.NoError(t, repo.ReplayEvent(ctx, sampleCreate(1)))

	del := eventsourcing.ChangeLogEntry{
		EventID: 2, TransactionID: 2, EntityType: eventsourcing.OrderEntityType, Operation: eventsourcing.OpDelete, Timestamp: 2,
		Changes: []eventsourcing.RecordChange{{EntityID: 1}},
	}
	require.NoError(t, repo.ReplayEvent(ctx, del))
	require.NoError(t, repo.ReplayEvent(ctx, del)) // idempotent

	exists, err := repo.Exists(ctx, eventsourcing.OrderEntityType, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindBySequence(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()
	require.NoError(t, repo.ReplayEvent(ctx, sampleCreate(7)))

	found, err := repo.FindBySequence(ctx, eventsourcing.OrderEntityType, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), found.EntityID())
}

func TestFindAllByConditionPaginated(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, repo.ReplayEvent(ctx, sampleCreate(i)))
	}

	page, err := repo.FindAllByConditionPaginated(ctx, eventsourcing.OrderEntityType, func(eventsourcing.Entity) bool { return true }, PageRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalElements)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, uint64(3), page.Content[0].EntityID())
}

func TestFindByCursor_ForwardAdvancesPastSeen(t *testing.T) {
	repo := NewInMemoryRepository(newRegistry())
	ctx := context.Background()
	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, repo.ReplayEvent(ctx, sampleCreate(i)))
	}

	first, cursor, err := repo.FindByCursor(ctx, eventsourcing.OrderEntityType, func(eventsourcing.Entity) bool { return true }, 0, 2, true)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, uint64(1), first[0].EntityID())
	assert.Equal(t, uint64(2), first[1].EntityID())

	second, _, err := repo.FindByCursor(ctx, eventsourcing.OrderEntityType, func(eventsourcing.Entity) bool { return true }, cursor, 2, true)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, uint64(3), second[0].EntityID())
	assert.Equal(t, uint64(4), second[1].EntityID())
}
