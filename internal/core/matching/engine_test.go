package order_matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

const testExponent = -2

func px(v int64) fixedpoint.Value { return fixedpoint.MustNew(v, testExponent) }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	var tick uint64
	clock := func() uint64 { tick++; return tick }
	return NewEngine("BTC-USD", testExponent, 64, 64, clock, nil)
}

func TestSimpleCross(t *testing.T) {
	e := newTestEngine(t)

	sell, err := e.SubmitLimit(Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)
	assert.Equal(t, Submitted, sell.Status)

	buy, err := e.SubmitLimit(Buy, px(1010000), px(10000), 2)
	require.NoError(t, err)

	require.Len(t, buy.Trades, 1)
	trade := buy.Trades[0]
	assert.True(t, trade.Price.Equal(px(1010000)))
	assert.True(t, trade.Quantity.Equal(px(10000)))
	assert.Equal(t, Filled, buy.Status)
	require.Len(t, buy.Touched, 1)
	assert.Equal(t, Filled, buy.Touched[0].NewStatus)

	_, ok := e.BestBid()
	assert.False(t, ok)
	_, ok = e.BestAsk()
	assert.False(t, ok)
}

func TestPartialFillThenRest(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SubmitLimit(Sell, px(1010000), px(5000), 1)
	require.NoError(t, err)

	buy, err := e.SubmitLimit(Buy, px(1010000), px(10000), 2)
	require.NoError(t, err)

	require.Len(t, buy.Trades, 1)
	assert.True(t, buy.Trades[0].Quantity.Equal(px(5000)))
	assert.Equal(t, PartiallyFilled, buy.Status)
	assert.True(t, buy.FilledQuantity.Equal(px(5000)))

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(px(1010000)))
}

func TestWalkTheBook(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SubmitLimit(Sell, px(1010000), px(2000), 1)
	require.NoError(t, err)
	_, err = e.SubmitLimit(Sell, px(1015000), px(3000), 2)
	require.NoError(t, err)

	buy, err := e.SubmitLimit(Buy, px(1030000), px(10000), 3)
	require.NoError(t, err)

	require.Len(t, buy.Trades, 2)
	assert.True(t, buy.Trades[0].Price.Equal(px(1010000)))
	assert.True(t, buy.Trades[0].Quantity.Equal(px(2000)))
	assert.True(t, buy.Trades[1].Price.Equal(px(1015000)))
	assert.True(t, buy.Trades[1].Quantity.Equal(px(3000)))
	assert.Equal(t, PartiallyFilled, buy.Status)
	assert.True(t, buy.FilledQuantity.Equal(px(5000)))

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(px(1030000)))
}

func TestFIFOTieBreak(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SubmitLimit(Sell, px(1010000), px(5000), 1)
	require.NoError(t, err)
	_, err = e.SubmitLimit(Sell, px(1010000), px(5000), 2)
	require.NoError(t, err)

	buy, err := e.SubmitLimit(Buy, px(1010000), px(6000), 3)
	require.NoError(t, err)

	require.Len(t, buy.Trades, 2)
	assert.True(t, buy.Trades[0].Quantity.Equal(px(5000)))
	assert.True(t, buy.Trades[1].Quantity.Equal(px(1000)))
	require.Len(t, buy.Touched, 2)
	assert.Equal(t, Filled, buy.Touched[0].NewStatus)
	assert.Equal(t, PartiallyFilled, buy.Touched[1].NewStatus)
	assert.True(t, buy.Touched[1].NewFilled.Equal(px(1000)))
}

func TestCancelClearsBest(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.SubmitLimit(Buy, px(990000), px(1000), 1)
	require.NoError(t, err)

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(px(990000)))

	require.NoError(t, e.Cancel(res.OrderID))
	_, ok = e.BestBid()
	assert.False(t, ok)

	err = e.Cancel(res.OrderID)
	assert.Error(t, err)
}

func TestEventAtomicity(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SubmitLimit(Sell, px(1010000), px(5000), 1)
	require.NoError(t, err)

	buy, err := e.SubmitLimit(Buy, px(1010000), px(8000), 2)
	require.NoError(t, err)

	// every trade carries the submission's transaction id, and the
	// touched resting orders and price-point updates come back in the
	// same result.
	for _, trade := range buy.Trades {
		assert.Equal(t, buy.TransactionID, trade.TransactionID)
	}
	assert.NotEmpty(t, buy.Trades)
	assert.NotEmpty(t, buy.Touched)
	assert.NotEmpty(t, buy.PricePointUpdates)
	assert.Equal(t, PartiallyFilled, buy.Status)
}

func TestSubmitMarket_RejectedOnEmptyBook(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.SubmitMarket(Buy, px(1000), 1)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Status)
	assert.Empty(t, res.Trades)
}

func TestSubmitMarket_PartiallyFilledWhenBookExhausted(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SubmitLimit(Sell, px(1010000), px(3000), 1)
	require.NoError(t, err)

	res, err := e.SubmitMarket(Buy, px(10000), 2)
	require.NoError(t, err)
	assert.Equal(t, PartiallyFilled, res.Status)
	assert.True(t, res.FilledQuantity.Equal(px(3000)))

	_, ok := e.BestAsk()
	assert.False(t, ok)
}

func TestSubmitMarket_DoesNotCreatePricePoint(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SubmitLimit(Sell, px(1010000), px(10000), 1)
	require.NoError(t, err)

	res, err := e.SubmitMarket(Buy, px(5000), 2)
	require.NoError(t, err)
	assert.Equal(t, Filled, res.Status)

	_, found := e.orderIndex[res.OrderID]
	assert.False(t, found)
	assert.Equal(t, 0, e.bidIndex.Len())
}

func TestValidation_RejectsZeroQuantity(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SubmitLimit(Buy, px(1000000), px(0), 1)
	assert.Error(t, err)
}

func TestValidation_RejectsMismatchedTickExponent(t *testing.T) {
	e := newTestEngine(t)
	badQty := fixedpoint.MustNew(100, -3)
	_, err := e.SubmitLimit(Buy, px(1000000), badQty, 1)
	assert.Error(t, err)
}

func TestDepth_ReturnsBestFirst(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SubmitLimit(Buy, px(990000), px(1000), 1)
	require.NoError(t, err)
	_, err = e.SubmitLimit(Buy, px(995000), px(1000), 2)
	require.NoError(t, err)

	bids, _ := e.Depth(10)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(px(995000)))
	assert.True(t, bids[1].Price.Equal(px(990000)))
}

func TestSpread(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SubmitLimit(Buy, px(990000), px(1000), 1)
	require.NoError(t, err)
	_, err = e.SubmitLimit(Sell, px(1010000), px(1000), 2)
	require.NoError(t, err)

	spread, ok := e.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(px(20000)))
}
