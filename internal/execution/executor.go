// Package execution is the "caller" spec.md's matching-engine contract
// hands event packaging to: the matching engine only emits Trade values
// and before/after diffs (SubmissionResult), never EntityEvents itself.
// Executor turns one SubmissionResult into the ChangeLogEntry sequence
// spec.md §4.5 describes (Order Create/Update, Trade Create, PricePoint
// Create for a newly opened level and PricePoint Update, all sharing one
// transaction_id) and replays them through a
// repository.Repository.
package execution

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tradsys/lobcore/internal/admission"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
	"github.com/tradsys/lobcore/internal/db/repository"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// Executor packages one symbol's submissions into ChangeLogEntries and
// persists them. It sits behind the admission gate: every call first
// clears Gate.Allow, then runs on the symbol's router, then replays
// events, in that order, so a submission refused with an error (by the
// gate, including capacity exceeded, or by the engine's validation) never
// reaches the repository. An order the engine accepts with status
// Rejected is persisted like any other.
type Executor struct {
	symbol   string
	router   *order_matching.SymbolRouter
	gate     *admission.Gate
	repo     repository.Repository
	eventSeq uint64 // atomic; next ChangeLogEntry.EventID
	logger   *zap.Logger
}

// New builds an Executor for symbol. router must already have an engine
// registered for symbol (see SymbolRouter.Register).
func New(symbol string, router *order_matching.SymbolRouter, gate *admission.Gate, repo repository.Repository, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{symbol: symbol, router: router, gate: gate, repo: repo, logger: logger}
}

func (e *Executor) nextEventID() uint64 {
	return atomic.AddUint64(&e.eventSeq, 1)
}

// SubmitLimit admits, routes, and persists a limit order submission.
func (e *Executor) SubmitLimit(ctx context.Context, traderKey string, side order_matching.Side, price, quantity fixedpoint.Value, traderID uint64) (order_matching.SubmissionResult, error) {
	result, err := e.gate.SubmitLimit(ctx, e.router, e.symbol, traderKey, side, price, quantity, traderID)
	if err != nil {
		return result, err
	}
	if perr := e.persist(ctx, side, price, quantity, traderID, result); perr != nil {
		e.logger.Error("persisting submission events failed", zap.Error(perr), zap.Uint64("order_id", result.OrderID))
		return result, perr
	}
	return result, nil
}

// SubmitMarket admits, routes, and persists a market order submission.
func (e *Executor) SubmitMarket(ctx context.Context, traderKey string, side order_matching.Side, quantity fixedpoint.Value, traderID uint64) (order_matching.SubmissionResult, error) {
	result, err := e.gate.SubmitMarket(ctx, e.router, e.symbol, traderKey, side, quantity, traderID)
	if err != nil {
		return result, err
	}
	if perr := e.persist(ctx, side, fixedpoint.Value{}, quantity, traderID, result); perr != nil {
		e.logger.Error("persisting submission events failed", zap.Error(perr), zap.Uint64("order_id", result.OrderID))
		return result, perr
	}
	return result, nil
}

// persist packages result into ChangeLogEntries, in the order spec.md
// §4.5 names them (order creation, trades, touched-order updates,
// price-point updates, each preceded by a price-point Create when the
// level's prior total is zero), and replays each through the repository.
func (e *Executor) persist(ctx context.Context, side order_matching.Side, price, quantity fixedpoint.Value, traderID uint64, result order_matching.SubmissionResult) error {
	now := uint64(time.Now().UnixMilli())
	txID := result.TransactionID

	order := eventsourcing.OrderEntity{
		OrderID:        result.OrderID,
		TraderID:       traderID,
		Side:           side,
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: result.FilledQuantity,
		Status:         result.Status,
		CreatedAt:      now,
	}
	createEntry := order.TrackCreate(txID, e.nextEventID(), now)
	e.tagSymbol(&createEntry)
	if err := e.repo.ReplayEvent(ctx, createEntry); err != nil {
		return err
	}

	for _, trade := range result.Trades {
		tradeEntity := eventsourcing.TradeEntity{
			TradeID:       trade.ID,
			BuyerOrderID:  trade.BuyOrderID,
			SellerOrderID: trade.SellOrderID,
			Price:         trade.Price,
			Quantity:      trade.Quantity,
			Timestamp:     trade.Timestamp,
		}
		tradeEntry := tradeEntity.TrackCreate(txID, e.nextEventID(), now)
		e.tagSymbol(&tradeEntry)
		if err := e.repo.ReplayEvent(ctx, tradeEntry); err != nil {
			return err
		}
	}

	for _, touched := range result.Touched {
		before := eventsourcing.OrderEntity{
			OrderID:        touched.OrderID,
			Status:         touched.OldStatus,
			FilledQuantity: touched.OldFilled,
		}
		_, updateEntry := before.TrackUpdate(func(o *eventsourcing.OrderEntity) {
			o.Status = touched.NewStatus
			o.FilledQuantity = touched.NewFilled
		}, txID, e.nextEventID(), now)
		if err := e.repo.ReplayEvent(ctx, updateEntry); err != nil {
			return err
		}
	}

	for _, ppUpdate := range result.PricePointUpdates {
		pp := eventsourcing.PricePointEntity{
			Key:           eventsourcing.PricePointKey(ppUpdate.Side, ppUpdate.Price),
			Side:          ppUpdate.Side,
			Price:         ppUpdate.Price,
			TotalQuantity: ppUpdate.OldTotal,
		}
		if ppUpdate.OldTotal.IsZero() {
			// A zero prior total means the engine has just opened this level:
			// create its row (empty) so the Update below has a target.
			side, price, total := eventsourcing.NewSide(pp.Side), eventsourcing.NewPrice(pp.Price), eventsourcing.NewQuantity(pp.TotalQuantity)
			createEntry := eventsourcing.ChangeLogEntry{
				EventID: e.nextEventID(), TransactionID: txID, EntityType: eventsourcing.PricePointEntityType,
				Operation: eventsourcing.OpCreate, Timestamp: now,
				Changes: []eventsourcing.RecordChange{{EntityID: pp.Key, FieldChanges: []eventsourcing.FieldChange{
					{FieldName: "side", NewValue: &side}, {FieldName: "price", NewValue: &price}, {FieldName: "total_quantity", NewValue: &total},
				}}},
			}
			if err := e.repo.ReplayEvent(ctx, createEntry); err != nil {
				return err
			}
		}
		ppEntry := pp.TrackUpdate(ppUpdate.NewTotal, txID, e.nextEventID(), now)
		if err := e.repo.ReplayEvent(ctx, ppEntry); err != nil {
			return err
		}
	}

	return nil
}

// tagSymbol stashes e.symbol as a synthetic "symbol" field on entry's
// sole RecordChange, the companion field db/repository's SQL backend
// expects on Order/Trade Create entries (OrderEntity/TradeEntity carry
// no Symbol field themselves, since the matching engine is already
// partitioned per symbol and has no use for it internally).
func (e *Executor) tagSymbol(entry *eventsourcing.ChangeLogEntry) {
	if len(entry.Changes) == 0 {
		return
	}
	v := eventsourcing.NewStringValue(e.symbol)
	entry.Changes[0].FieldChanges = append(entry.Changes[0].FieldChanges, eventsourcing.FieldChange{
		FieldName: "symbol",
		NewValue:  &v,
	})
}
