package order_matching

import (
	"time"

	"go.uber.org/zap"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// Clock supplies the monotone millisecond timestamp an Engine stamps
// onto orders and trades. It is an injected generator, not a
// process-wide singleton, per the design note that global mutable
// counters become owned, threaded-through generators; tests pass a
// deterministic Clock, production wires wall-clock time.
type Clock func() uint64

func wallClock() uint64 { return uint64(time.Now().UnixMilli()) }

// Engine is a single-symbol, single-threaded price-time priority LOB.
// It owns its Order/PricePoint arenas, side indices, and order index
// outright; nothing outside this package ever touches them directly.
// Concurrency across symbols, if any, is the caller's concern (spec
// §5): one Engine per symbol, driven by one goroutine or a coarse lock.
type Engine struct {
	symbol       string
	tickExponent int

	orders      *Arena[Order]
	pricePoints *Arena[PricePoint]
	bidIndex    *sideIndex
	askIndex    *sideIndex
	orderIndex  map[uint64]uint32

	nextOrderID uint64
	nextTradeID uint64
	nextTxID    uint64

	clock    Clock
	logger   *zap.Logger
	poisoned error
	metrics  *Metrics
}

// NewEngine builds an Engine for symbol with arenas sized at startup
// (orderCapacity, pricePointCapacity) per the memory-discipline rule
// that arenas never grow mid-match. A nil clock defaults to wall time.
func NewEngine(symbol string, tickExponent, orderCapacity, pricePointCapacity int, clock Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = wallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		symbol:       symbol,
		tickExponent: tickExponent,
		orders:       NewArena[Order](orderCapacity),
		pricePoints:  NewArena[PricePoint](pricePointCapacity),
		bidIndex:     newSideIndex(Buy),
		askIndex:     newSideIndex(Sell),
		orderIndex:   make(map[uint64]uint32),
		clock:        clock,
		logger:       logger,
	}
}

// Symbol returns the symbol this Engine matches.
func (e *Engine) Symbol() string { return e.symbol }

// SetMetrics attaches the collectors SubmitLimit/SubmitMarket/poison
// report through. Optional; a nil *Metrics receiver is a no-op, so
// engines built without a registry behave identically.
func (e *Engine) SetMetrics(m *Metrics) { e.metrics = m }

// Poisoned reports whether the engine has detected corrupt internal
// state and stopped accepting submissions (spec §7: InternalInvariant
// is fatal to the symbol's engine, never silently recovered).
func (e *Engine) Poisoned() error { return e.poisoned }

func (e *Engine) poison(cause error) error {
	wrapped := coreerrors.InternalInvariant("engine for symbol %s poisoned: %v", e.symbol, cause)
	e.poisoned = wrapped
	e.logger.Error("matching engine poisoned, no further submissions will be accepted",
		zap.String("symbol", e.symbol), zap.Error(cause))
	e.metrics.ObservePoisoned(e.symbol)
	return wrapped
}

func (e *Engine) validateQuantity(quantity fixedpoint.Value) error {
	if quantity.Exponent() != e.tickExponent {
		return coreerrors.Validation("quantity tick exponent %d does not match symbol exponent %d", quantity.Exponent(), e.tickExponent)
	}
	if quantity.Mantissa() <= 0 {
		return coreerrors.Validation("quantity must be positive")
	}
	return nil
}

func (e *Engine) validatePrice(price fixedpoint.Value) error {
	if price.Exponent() != e.tickExponent {
		return coreerrors.Validation("price tick exponent %d does not match symbol exponent %d", price.Exponent(), e.tickExponent)
	}
	if price.Mantissa() <= 0 {
		return coreerrors.Validation("price must be positive")
	}
	return nil
}

func (e *Engine) ownIndex(side Side) *sideIndex {
	if side == Buy {
		return e.bidIndex
	}
	return e.askIndex
}

func (e *Engine) oppositeIndex(side Side) *sideIndex {
	if side == Buy {
		return e.askIndex
	}
	return e.bidIndex
}

func minQuantity(a, b fixedpoint.Value) fixedpoint.Value {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// SubmitLimit implements spec §4.5's limit-order algorithm: matches
// against the opposite side while it crosses, then rests any residual
// at its own price level.
func (e *Engine) SubmitLimit(side Side, price, quantity fixedpoint.Value, traderID uint64) (SubmissionResult, error) {
	if e.poisoned != nil {
		return SubmissionResult{}, e.poisoned
	}
	if err := e.validatePrice(price); err != nil {
		return SubmissionResult{}, err
	}
	if err := e.validateQuantity(quantity); err != nil {
		return SubmissionResult{}, err
	}

	txID := e.nextTxID
	e.nextTxID++
	orderID := e.nextOrderID
	e.nextOrderID++

	incoming := Order{
		ID:             orderID,
		TraderID:       traderID,
		Side:           side,
		Kind:           Limit,
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: fixedpoint.Zero(e.tickExponent),
		Status:         Pending,
		CreatedAt:      e.clock(),
		PricePointIdx:  noneIndex,
		Prev:           noneIndex,
		Next:           noneIndex,
	}

	result := SubmissionResult{TransactionID: txID, OrderID: orderID}
	opposite := e.oppositeIndex(side)
	priceMantissa := price.Mantissa()

	for {
		remaining, err := incoming.Remaining()
		if err != nil {
			return SubmissionResult{}, e.poison(err)
		}
		if remaining.IsZero() || !opposite.Crosses(priceMantissa) {
			break
		}
		trade, touched, ppUpdate, err := e.matchOnce(&incoming, opposite, txID)
		if err != nil {
			return SubmissionResult{}, err
		}
		result.Trades = append(result.Trades, trade)
		result.Touched = append(result.Touched, touched)
		result.PricePointUpdates = append(result.PricePointUpdates, ppUpdate)
	}

	remaining, err := incoming.Remaining()
	if err != nil {
		return SubmissionResult{}, e.poison(err)
	}

	if remaining.IsZero() {
		incoming.Status = Filled
	} else {
		if len(result.Trades) == 0 {
			incoming.Status = Submitted
		} else {
			incoming.Status = PartiallyFilled
		}
		if err := e.restOrder(&incoming, &result); err != nil {
			return SubmissionResult{}, err
		}
	}

	result.Status = incoming.Status
	result.FilledQuantity = incoming.FilledQuantity
	e.metrics.ObserveSubmission(e.symbol, side, len(result.Trades))
	return result, nil
}

// SubmitMarket implements spec §4.5's market-order algorithm: the same
// matching loop as a limit order, with no price bound and no resting
// step. The Open Question on the empty-book terminus is resolved as:
// zero fill → Rejected (nothing happened, no record worth keeping as
// live book state); any partial fill → PartiallyFilled, kept as a
// record, never Rejected once at least one trade occurred.
func (e *Engine) SubmitMarket(side Side, quantity fixedpoint.Value, traderID uint64) (SubmissionResult, error) {
	if e.poisoned != nil {
		return SubmissionResult{}, e.poisoned
	}
	if err := e.validateQuantity(quantity); err != nil {
		return SubmissionResult{}, err
	}

	txID := e.nextTxID
	e.nextTxID++
	orderID := e.nextOrderID
	e.nextOrderID++

	incoming := Order{
		ID:             orderID,
		TraderID:       traderID,
		Side:           side,
		Kind:           Market,
		Quantity:       quantity,
		FilledQuantity: fixedpoint.Zero(e.tickExponent),
		Status:         Pending,
		CreatedAt:      e.clock(),
		PricePointIdx:  noneIndex,
		Prev:           noneIndex,
		Next:           noneIndex,
	}

	result := SubmissionResult{TransactionID: txID, OrderID: orderID}
	opposite := e.oppositeIndex(side)

	for {
		remaining, err := incoming.Remaining()
		if err != nil {
			return SubmissionResult{}, e.poison(err)
		}
		if remaining.IsZero() {
			break
		}
		if _, ok := opposite.Best(); !ok {
			break
		}
		trade, touched, ppUpdate, err := e.matchOnce(&incoming, opposite, txID)
		if err != nil {
			return SubmissionResult{}, err
		}
		result.Trades = append(result.Trades, trade)
		result.Touched = append(result.Touched, touched)
		result.PricePointUpdates = append(result.PricePointUpdates, ppUpdate)
	}

	remaining, err := incoming.Remaining()
	if err != nil {
		return SubmissionResult{}, e.poison(err)
	}

	switch {
	case remaining.IsZero():
		incoming.Status = Filled
	case len(result.Trades) == 0:
		incoming.Status = Rejected
	default:
		incoming.Status = PartiallyFilled
	}

	result.Status = incoming.Status
	result.FilledQuantity = incoming.FilledQuantity
	e.metrics.ObserveSubmission(e.symbol, side, len(result.Trades))
	return result, nil
}

// matchOnce consumes the head of opposite's best price point against
// incoming, emitting one Trade at the resting (maker) order's price.
func (e *Engine) matchOnce(incoming *Order, opposite *sideIndex, txID uint64) (Trade, TouchedOrder, PricePointUpdate, error) {
	bestMantissa, _ := opposite.Best()
	ppIdx, _ := opposite.Get(bestMantissa)
	pp := e.pricePoints.Get(ppIdx)
	restingIdx := pp.Head
	resting := e.orders.Get(restingIdx)

	incomingRemaining, err := incoming.Remaining()
	if err != nil {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(err)
	}
	restingRemaining, err := resting.Remaining()
	if err != nil {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(err)
	}
	fillQty := minQuantity(incomingRemaining, restingRemaining)

	trade := Trade{
		ID:            e.nextTradeID,
		Price:         resting.Price,
		Quantity:      fillQty,
		TakerSide:     incoming.Side,
		Timestamp:     e.clock(),
		TransactionID: txID,
	}
	e.nextTradeID++
	if incoming.Side == Buy {
		trade.BuyOrderID, trade.SellOrderID = incoming.ID, resting.ID
	} else {
		trade.BuyOrderID, trade.SellOrderID = resting.ID, incoming.ID
	}

	touched := TouchedOrder{OrderID: resting.ID, OldStatus: resting.Status, OldFilled: resting.FilledQuantity}

	newIncomingFilled, err := incoming.FilledQuantity.Add(fillQty)
	if err != nil {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(err)
	}
	incoming.FilledQuantity = newIncomingFilled

	newRestingFilled, err := resting.FilledQuantity.Add(fillQty)
	if err != nil {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(err)
	}
	resting.FilledQuantity = newRestingFilled

	oldTotal := pp.TotalQuantity
	newTotal, err := pp.TotalQuantity.Sub(fillQty)
	if err != nil || newTotal.Mantissa() < 0 {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(coreerrors.InternalInvariant("price point %s total_quantity underflow", pp.Price))
	}
	pp.TotalQuantity = newTotal
	ppUpdate := PricePointUpdate{Side: pp.Side, Price: pp.Price, OldTotal: oldTotal, NewTotal: newTotal}

	restingRemainingAfter, err := resting.Remaining()
	if err != nil {
		return Trade{}, TouchedOrder{}, PricePointUpdate{}, e.poison(err)
	}
	if restingRemainingAfter.IsZero() {
		resting.Status = Filled
		e.unlinkFromChain(pp, resting)
		delete(e.orderIndex, resting.ID)
		e.orders.Free(restingIdx)
		if pp.Head == noneIndex {
			opposite.Remove(bestMantissa)
			e.pricePoints.Free(ppIdx)
			ppUpdate.Removed = true
		}
	} else {
		resting.Status = PartiallyFilled
	}
	touched.NewStatus = resting.Status
	touched.NewFilled = resting.FilledQuantity

	return trade, touched, ppUpdate, nil
}

// unlinkFromChain removes order from pp's FIFO chain in place.
func (e *Engine) unlinkFromChain(pp *PricePoint, order *Order) {
	if order.Prev != noneIndex {
		e.orders.Get(order.Prev).Next = order.Next
	} else {
		pp.Head = order.Next
	}
	if order.Next != noneIndex {
		e.orders.Get(order.Next).Prev = order.Prev
	} else {
		pp.Tail = order.Prev
	}
}

// restOrder appends incoming to the tail of its own price level's FIFO
// chain, creating the PricePoint if this is the first order at that
// price, and records the resulting total_quantity update.
func (e *Engine) restOrder(incoming *Order, result *SubmissionResult) error {
	mantissa := incoming.Price.Mantissa()
	own := e.ownIndex(incoming.Side)

	ppIdx, ok := own.Get(mantissa)
	var pp *PricePoint
	if !ok {
		idx, err := e.pricePoints.Alloc()
		if err != nil {
			return err
		}
		pp = e.pricePoints.Get(idx)
		*pp = PricePoint{
			Side:          incoming.Side,
			Price:         incoming.Price,
			TotalQuantity: fixedpoint.Zero(e.tickExponent),
			Head:          noneIndex,
			Tail:          noneIndex,
		}
		own.Insert(mantissa, idx)
		ppIdx = idx
	} else {
		pp = e.pricePoints.Get(ppIdx)
	}

	orderIdx, err := e.orders.Alloc()
	if err != nil {
		return err
	}
	stored := e.orders.Get(orderIdx)
	*stored = *incoming
	stored.PricePointIdx = ppIdx
	stored.Prev = pp.Tail
	stored.Next = noneIndex
	if pp.Tail != noneIndex {
		e.orders.Get(pp.Tail).Next = orderIdx
	} else {
		pp.Head = orderIdx
	}
	pp.Tail = orderIdx

	remaining, err := stored.Remaining()
	if err != nil {
		return e.poison(err)
	}
	oldTotal := pp.TotalQuantity
	newTotal, err := pp.TotalQuantity.Add(remaining)
	if err != nil {
		return e.poison(err)
	}
	pp.TotalQuantity = newTotal
	result.PricePointUpdates = append(result.PricePointUpdates, PricePointUpdate{
		Side: pp.Side, Price: pp.Price, OldTotal: oldTotal, NewTotal: newTotal,
	})

	e.orderIndex[stored.ID] = orderIdx
	*incoming = *stored
	return nil
}

// Cancel implements spec §4.5's cancel contract: unlinks the order from
// its price point, releases its arena slot, and is idempotent at the
// caller's discretion — a second cancel of the same id returns
// OrderNotFound rather than corrupting state.
func (e *Engine) Cancel(orderID uint64) error {
	if e.poisoned != nil {
		return e.poisoned
	}
	idx, ok := e.orderIndex[orderID]
	if !ok {
		return coreerrors.OrderNotFound(orderID)
	}
	order := e.orders.Get(idx)
	pp := e.pricePoints.Get(order.PricePointIdx)

	remaining, err := order.Remaining()
	if err != nil {
		return e.poison(err)
	}
	e.unlinkFromChain(pp, order)

	newTotal, err := pp.TotalQuantity.Sub(remaining)
	if err != nil || newTotal.Mantissa() < 0 {
		return e.poison(coreerrors.InternalInvariant("price point %s total_quantity underflow on cancel", pp.Price))
	}
	pp.TotalQuantity = newTotal

	if pp.Head == noneIndex {
		e.ownIndex(order.Side).Remove(pp.Price.Mantissa())
		e.pricePoints.Free(order.PricePointIdx)
	}

	delete(e.orderIndex, orderID)
	e.orders.Free(idx)
	return nil
}

// BestBid returns the highest resting buy price, or false if the bid
// side is empty.
func (e *Engine) BestBid() (fixedpoint.Value, bool) {
	m, ok := e.bidIndex.Best()
	if !ok {
		return fixedpoint.Value{}, false
	}
	return fixedpoint.MustNew(m, e.tickExponent), true
}

// BestAsk returns the lowest resting sell price, or false if the ask
// side is empty.
func (e *Engine) BestAsk() (fixedpoint.Value, bool) {
	m, ok := e.askIndex.Best()
	if !ok {
		return fixedpoint.Value{}, false
	}
	return fixedpoint.MustNew(m, e.tickExponent), true
}

// Spread returns BestAsk - BestBid, or false if either side is empty.
func (e *Engine) Spread() (fixedpoint.Value, bool) {
	bid, ok := e.BestBid()
	if !ok {
		return fixedpoint.Value{}, false
	}
	ask, ok := e.BestAsk()
	if !ok {
		return fixedpoint.Value{}, false
	}
	spread, err := ask.Sub(bid)
	if err != nil {
		return fixedpoint.Value{}, false
	}
	return spread, true
}

// Depth returns up to levels aggregated price levels per side, best
// price first.
func (e *Engine) Depth(levels int) (bids, asks []PriceLevel) {
	return e.levelsFor(e.bidIndex, levels), e.levelsFor(e.askIndex, levels)
}

func (e *Engine) levelsFor(idx *sideIndex, levels int) []PriceLevel {
	mantissas := idx.Levels(levels)
	out := make([]PriceLevel, 0, len(mantissas))
	for _, m := range mantissas {
		ppIdx, ok := idx.Get(m)
		if !ok {
			continue
		}
		pp := e.pricePoints.Get(ppIdx)
		out = append(out, PriceLevel{Price: fixedpoint.MustNew(m, e.tickExponent), Quantity: pp.TotalQuantity})
	}
	return out
}
