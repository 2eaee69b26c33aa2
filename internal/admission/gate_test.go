package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
)

const testExponent = -2

func px(v int64) fixedpoint.Value { return fixedpoint.MustNew(v, testExponent) }

func newTestRouter(t *testing.T) *order_matching.SymbolRouter {
	t.Helper()
	var tick uint64
	clock := func() uint64 { tick++; return tick }
	engine := order_matching.NewEngine("BTC-USD", testExponent, 64, 64, clock, nil)
	router := order_matching.NewSymbolRouter(nil)
	require.NoError(t, router.Register("BTC-USD", engine))
	t.Cleanup(router.Close)
	return router
}

func TestGate_AllowsWithinLimit(t *testing.T) {
	g := New(limiter.Rate{Period: time.Minute, Limit: 2}, nil)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "trader-1"))
	require.NoError(t, g.Allow(ctx, "trader-1"))
}

func TestGate_RejectsOverLimit(t *testing.T) {
	g := New(limiter.Rate{Period: time.Minute, Limit: 1}, nil)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "trader-1"))
	err := g.Allow(ctx, "trader-1")
	require.Error(t, err)
	code, ok := coreerrors.GetCode(err)
	require.True(t, ok)
	assert.Equal(t, coreerrors.CodeCapacityExceeded, code)
}

func TestGate_BucketsAreIndependentPerKey(t *testing.T) {
	g := New(limiter.Rate{Period: time.Minute, Limit: 1}, nil)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "trader-1"))
	require.NoError(t, g.Allow(ctx, "trader-2"))
}

func TestGate_SubmitLimitRoutesThroughToEngine(t *testing.T) {
	g := New(limiter.Rate{Period: time.Minute, Limit: 10}, nil)
	router := newTestRouter(t)
	ctx := context.Background()

	sell, err := g.SubmitLimit(ctx, router, "BTC-USD", "trader-1", order_matching.Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)
	assert.Equal(t, order_matching.Submitted, sell.Status)

	buy, err := g.SubmitLimit(ctx, router, "BTC-USD", "trader-2", order_matching.Buy, px(1010000), px(10000), 2)
	require.NoError(t, err)
	assert.Equal(t, order_matching.Filled, buy.Status)
	require.Len(t, buy.Trades, 1)
}

func TestGate_SubmitLimitRejectsOverLimitBeforeReachingEngine(t *testing.T) {
	g := New(limiter.Rate{Period: time.Minute, Limit: 1}, nil)
	router := newTestRouter(t)
	ctx := context.Background()

	_, err := g.SubmitLimit(ctx, router, "BTC-USD", "trader-1", order_matching.Buy, px(1010000), px(10000), 1)
	require.NoError(t, err)

	_, err = g.SubmitLimit(ctx, router, "BTC-USD", "trader-1", order_matching.Buy, px(1010000), px(10000), 1)
	require.Error(t, err)
	code, ok := coreerrors.GetCode(err)
	require.True(t, ok)
	assert.Equal(t, coreerrors.CodeCapacityExceeded, code)
}
