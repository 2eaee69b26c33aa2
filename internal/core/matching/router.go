package order_matching

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
)

// SymbolRouter fans submissions out to one Engine per symbol while
// preserving per-symbol FIFO order: each symbol gets its own
// single-goroutine ants pool, so two commands for the same symbol are
// never reordered relative to each other, but commands for different
// symbols may run concurrently (spec §5: "no cross-symbol atomicity in
// the core").
type SymbolRouter struct {
	engines map[string]*Engine
	pools   map[string]*ants.Pool
	logger  *zap.Logger
}

// NewSymbolRouter builds an empty router. Call Register for each symbol
// before routing commands to it.
func NewSymbolRouter(logger *zap.Logger) *SymbolRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SymbolRouter{
		engines: make(map[string]*Engine),
		pools:   make(map[string]*ants.Pool),
		logger:  logger,
	}
}

// Register binds symbol to engine and gives it a dedicated single-slot
// pool. Registering the same symbol twice replaces the prior binding
// and releases its pool.
func (r *SymbolRouter) Register(symbol string, engine *Engine) error {
	if existing, ok := r.pools[symbol]; ok {
		existing.Release()
	}
	pool, err := ants.NewPool(1, ants.WithNonblocking(false))
	if err != nil {
		return err
	}
	r.engines[symbol] = engine
	r.pools[symbol] = pool
	return nil
}

// Engine returns the engine registered for symbol, if any.
func (r *SymbolRouter) Engine(symbol string) (*Engine, bool) {
	e, ok := r.engines[symbol]
	return e, ok
}

// Submit runs fn on symbol's dedicated pool and blocks for its result,
// preserving submission order for that symbol even when callers invoke
// Submit concurrently from multiple goroutines.
func (r *SymbolRouter) Submit(symbol string, fn func(*Engine) error) error {
	pool, ok := r.pools[symbol]
	if !ok {
		return coreerrors.Validation("no engine registered for symbol %q", symbol)
	}
	engine := r.engines[symbol]

	done := make(chan error, 1)
	if err := pool.Submit(func() {
		done <- fn(engine)
	}); err != nil {
		return err
	}
	return <-done
}

// Close releases every per-symbol pool.
func (r *SymbolRouter) Close() {
	for symbol, pool := range r.pools {
		pool.Release()
		delete(r.pools, symbol)
	}
}
