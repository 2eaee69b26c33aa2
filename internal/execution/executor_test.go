package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"

	"github.com/tradsys/lobcore/internal/admission"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
	"github.com/tradsys/lobcore/internal/db/repository"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

const testExponent = -2

func px(v int64) fixedpoint.Value { return fixedpoint.MustNew(v, testExponent) }

func newTestExecutor(t *testing.T) (*Executor, repository.Repository) {
	t.Helper()
	var tick uint64
	clock := func() uint64 { tick++; return tick }
	engine := order_matching.NewEngine("BTC-USD", testExponent, 64, 64, clock, nil)
	router := order_matching.NewSymbolRouter(nil)
	require.NoError(t, router.Register("BTC-USD", engine))
	t.Cleanup(router.Close)

	gate := admission.New(limiter.Rate{Period: time.Minute, Limit: 1000}, nil)

	registry := eventsourcing.NewRegistry()
	registry.Register(eventsourcing.OrderEntityType, eventsourcing.OrderFromCreatedEvent)
	registry.Register(eventsourcing.TradeEntityType, eventsourcing.TradeFromCreatedEvent)
	registry.Register(eventsourcing.PricePointEntityType, eventsourcing.PricePointFromCreatedEvent)
	repo := repository.NewInMemoryRepository(registry)

	return New("BTC-USD", router, gate, repo, nil), repo
}

func TestExecutor_RestingLimitOrderPersistsCreate(t *testing.T) {
	e, repo := newTestExecutor(t)
	ctx := context.Background()

	result, err := e.SubmitLimit(ctx, "trader-1", order_matching.Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)
	assert.Equal(t, order_matching.Submitted, result.Status)

	stored, err := repo.FindByID(ctx, eventsourcing.OrderEntityType, result.OrderID)
	require.NoError(t, err)
	order := stored.(*eventsourcing.OrderEntity)
	assert.Equal(t, result.OrderID, order.OrderID)
	assert.Equal(t, order_matching.Submitted, order.Status)
}

func TestExecutor_CrossingOrdersPersistTradesAndUpdates(t *testing.T) {
	e, repo := newTestExecutor(t)
	ctx := context.Background()

	sell, err := e.SubmitLimit(ctx, "trader-1", order_matching.Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)

	buy, err := e.SubmitLimit(ctx, "trader-2", order_matching.Buy, px(1010000), px(10000), 2)
	require.NoError(t, err)
	require.Len(t, buy.Trades, 1)

	tradeID := buy.Trades[0].ID
	storedTrade, err := repo.FindByID(ctx, eventsourcing.TradeEntityType, tradeID)
	require.NoError(t, err)
	trade := storedTrade.(*eventsourcing.TradeEntity)
	assert.True(t, trade.Price.Equal(px(1010000)))

	storedSell, err := repo.FindByID(ctx, eventsourcing.OrderEntityType, sell.OrderID)
	require.NoError(t, err)
	sellOrder := storedSell.(*eventsourcing.OrderEntity)
	assert.Equal(t, order_matching.Filled, sellOrder.Status)
	assert.True(t, sellOrder.FilledQuantity.Equal(px(10000)))
}

func TestExecutor_SubmitMarketPersistsCreate(t *testing.T) {
	e, repo := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.SubmitLimit(ctx, "trader-1", order_matching.Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)

	result, err := e.SubmitMarket(ctx, "trader-2", order_matching.Buy, px(10000), 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	stored, err := repo.FindByID(ctx, eventsourcing.OrderEntityType, result.OrderID)
	require.NoError(t, err)
	order := stored.(*eventsourcing.OrderEntity)
	assert.Equal(t, order_matching.Filled, order.Status)
}

func TestExecutor_CapacityExceededNeverReachesRepository(t *testing.T) {
	var tick uint64
	clock := func() uint64 { tick++; return tick }
	engine := order_matching.NewEngine("BTC-USD", testExponent, 64, 64, clock, nil)
	router := order_matching.NewSymbolRouter(nil)
	require.NoError(t, router.Register("BTC-USD", engine))
	t.Cleanup(router.Close)

	gate := admission.New(limiter.Rate{Period: time.Minute, Limit: 1}, nil)
	registry := eventsourcing.NewRegistry()
	registry.Register(eventsourcing.OrderEntityType, eventsourcing.OrderFromCreatedEvent)
	registry.Register(eventsourcing.PricePointEntityType, eventsourcing.PricePointFromCreatedEvent)
	repo := repository.NewInMemoryRepository(registry)
	e := New("BTC-USD", router, gate, repo, nil)
	ctx := context.Background()

	_, err := e.SubmitLimit(ctx, "trader-1", order_matching.Buy, px(1010000), px(10000), 1)
	require.NoError(t, err)

	_, err = e.SubmitLimit(ctx, "trader-1", order_matching.Buy, px(1010000), px(10000), 1)
	require.Error(t, err)

	all, err := repo.FindAllByCondition(ctx, eventsourcing.OrderEntityType, func(eventsourcing.Entity) bool { return true })
	require.NoError(t, err)
	assert.Len(t, all, 1, "the rejected second submission must never have reached the repository")
}
