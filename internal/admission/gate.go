// Package admission implements the external admission-control boundary
// spec.md §4.5/§7 describes: a token-bucket limiter that sits in front
// of Engine.SubmitLimit/SubmitMarket and turns exhaustion into
// CapacityExceeded before a command ever reaches a symbol's router,
// rather than letting it queue behind an already-saturated engine.
package admission

import (
	"context"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
)

// Gate rate-limits submissions per trader, independent of which symbol
// they target: a trader hammering one symbol's router shouldn't starve
// their own submissions to another.
type Gate struct {
	limiter *limiter.Limiter
	logger  *zap.Logger
}

// New builds a gate with rate (e.g. limiter.Rate{Period: time.Second,
// Limit: 50}), backed by an in-memory store. A distributed deployment
// would swap in one of limiter's redis/memcached store drivers without
// touching the call sites below.
func New(rate limiter.Rate, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		limiter: limiter.New(memory.NewStore(), rate),
		logger:  logger,
	}
}

// Allow consumes one token from key's bucket, returning CapacityExceeded
// once the bucket is empty.
func (g *Gate) Allow(ctx context.Context, key string) error {
	res, err := g.limiter.Get(ctx, key)
	if err != nil {
		return err
	}
	if res.Reached {
		return coreerrors.CapacityExceeded("admission limit reached for %q (limit=%d, reset=%d)", key, res.Limit, res.Reset)
	}
	return nil
}

// SubmitLimit admits a trader's limit order past the gate before routing
// it to symbol's engine. traderKey scopes the bucket; callers typically
// pass the trader id rendered as a string.
func (g *Gate) SubmitLimit(ctx context.Context, router *order_matching.SymbolRouter, symbol, traderKey string, side order_matching.Side, price, quantity fixedpoint.Value, traderID uint64) (order_matching.SubmissionResult, error) {
	if err := g.Allow(ctx, traderKey); err != nil {
		return order_matching.SubmissionResult{}, err
	}
	var result order_matching.SubmissionResult
	err := router.Submit(symbol, func(e *order_matching.Engine) error {
		r, err := e.SubmitLimit(side, price, quantity, traderID)
		result = r
		return err
	})
	return result, err
}

// SubmitMarket admits a trader's market order past the gate before
// routing it to symbol's engine.
func (g *Gate) SubmitMarket(ctx context.Context, router *order_matching.SymbolRouter, symbol, traderKey string, side order_matching.Side, quantity fixedpoint.Value, traderID uint64) (order_matching.SubmissionResult, error) {
	if err := g.Allow(ctx, traderKey); err != nil {
		return order_matching.SubmissionResult{}, err
	}
	var result order_matching.SubmissionResult
	err := router.Submit(symbol, func(e *order_matching.Engine) error {
		r, err := e.SubmitMarket(side, quantity, traderID)
		result = r
		return err
	})
	return result, err
}
