// Package order_matching implements the arena-allocated, price-time
// priority limit order book (spec §4.5). State mutation for one symbol
// is never concurrent with itself; the Engine is the only owner of its
// arenas, side indices, and order index.
package order_matching

import (
	"github.com/tradsys/lobcore/internal/core/domain"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// Side re-exports domain.Side so callers of this package need not import
// internal/core/domain directly for the common vocabulary.
type Side = domain.Side

const (
	Buy  = domain.Buy
	Sell = domain.Sell
)

// OrderStatus re-exports domain.OrderStatus; wire values are bit-exact
// per spec §6 (Pending=1 .. Rejected=6).
type OrderStatus = domain.OrderStatus

const (
	Pending         = domain.Pending
	Submitted       = domain.Submitted
	PartiallyFilled = domain.PartiallyFilled
	Filled          = domain.Filled
	Cancelled       = domain.Cancelled
	Rejected        = domain.Rejected
)

// OrderKind re-exports domain.OrderKind.
type OrderKind = domain.OrderKind

const (
	Limit  = domain.Limit
	Market = domain.Market
)

// Order is a resting or just-matched order. Prev/Next/PricePointIdx are
// intrusive arena indices, not pointers: Prev/Next link the FIFO chain
// of the owning PricePoint, and PricePointIdx is the back-index to it.
// noneIndex in any of the three means "not currently linked" (market
// orders and orders that filled in full on arrival never populate
// them).
type Order struct {
	ID             uint64
	TraderID       uint64
	Side           Side
	Kind           OrderKind
	Price          fixedpoint.Value
	Quantity       fixedpoint.Value
	FilledQuantity fixedpoint.Value
	Status         OrderStatus
	CreatedAt      uint64

	PricePointIdx uint32
	Prev          uint32
	Next          uint32
}

// Remaining returns the order's unfilled quantity.
func (o *Order) Remaining() (fixedpoint.Value, error) {
	return o.Quantity.Sub(o.FilledQuantity)
}

// PricePoint is one level of the book: a price, an aggregate quantity,
// and the head/tail arena indices of its resting-order FIFO chain. A
// PricePoint exists in its side's index iff its chain is non-empty
// (spec §8 invariant); Head/Tail are noneIndex exactly when the chain
// is empty, at which point the PricePoint itself is removed and its
// arena slot freed rather than left dangling.
type PricePoint struct {
	Side          Side
	Price         fixedpoint.Value
	TotalQuantity fixedpoint.Value
	Head          uint32
	Tail          uint32
}

// Trade is one execution, always priced at the resting (maker) order's
// price per spec §4.5.
type Trade struct {
	ID            uint64
	BuyOrderID    uint64
	SellOrderID   uint64
	Price         fixedpoint.Value
	Quantity      fixedpoint.Value
	TakerSide     Side
	Timestamp     uint64
	TransactionID uint64
}

// PriceLevel is one row of a Depth() query result: an aggregate
// quantity at a price, with no per-order detail.
type PriceLevel struct {
	Price    fixedpoint.Value
	Quantity fixedpoint.Value
}

// TouchedOrder describes a resting order's state change caused by
// someone else's submission, the shape a caller needs to build an
// Order-Update (or Delete, per the handler's terminal-order policy)
// ChangeLogEntry under the submission's shared transaction_id.
type TouchedOrder struct {
	OrderID   uint64
	OldStatus OrderStatus
	NewStatus OrderStatus
	OldFilled fixedpoint.Value
	NewFilled fixedpoint.Value
}

// PricePointUpdate describes a price level's total_quantity change (or
// removal), the shape a caller needs to build a PricePoint-Update
// ChangeLogEntry under the submission's transaction_id.
type PricePointUpdate struct {
	Side     Side
	Price    fixedpoint.Value
	OldTotal fixedpoint.Value
	NewTotal fixedpoint.Value
	Removed  bool
}

// SubmissionResult is what SubmitLimit/SubmitMarket return: the
// incoming order's outcome plus everything a caller needs to package
// the submission into ChangeLogEntries sharing one transaction_id
// (spec §4.5 "Trade emission and event generation").
type SubmissionResult struct {
	TransactionID uint64
	OrderID       uint64
	Status        OrderStatus
	FilledQuantity fixedpoint.Value
	Trades        []Trade
	Touched       []TouchedOrder
	PricePointUpdates []PricePointUpdate
}
