package db

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradsys/lobcore/internal/db/queries"
)

// InitializeDatabase sets up the database with optimizations and runs
// migrations for the three persisted entity tables.
func InitializeDatabase(db *gorm.DB, logger *zap.Logger) error {
	optimizer := queries.NewOptimizer(db, logger)

	if err := optimizer.EnableQueryOptimizations(); err != nil {
		logger.Error("Failed to enable database optimizations", zap.Error(err))
		return err
	}

	if err := runMigrations(db, logger); err != nil {
		logger.Error("Failed to migrate database schema", zap.Error(err))
		return err
	}

	tables := []string{"orders", "trades", "positions"}
	for _, table := range tables {
		if err := optimizer.OptimizeTable(table); err != nil {
			logger.Warn("Failed to optimize table", zap.String("table", table), zap.Error(err))
		}
	}

	createCommonIndexes(db, optimizer, logger)

	logger.Info("Database initialized with optimizations")
	return nil
}

// createCommonIndexes creates indexes for common query patterns via the
// query optimizer's helper rather than raw SQL, so index creation goes
// through the same logged, error-checked path as everything else the
// optimizer does.
func createCommonIndexes(db *gorm.DB, optimizer *queries.Optimizer, logger *zap.Logger) {
	orderIndexes := []struct {
		name    string
		columns []string
		unique  bool
	}{
		{"idx_orders_symbol_status", []string{"symbol", "status"}, false},
		{"idx_orders_trader_id", []string{"trader_id"}, false},
		{"idx_orders_created_at", []string{"created_at"}, false},
	}
	for _, idx := range orderIndexes {
		if err := optimizer.CreateIndex("orders", idx.name, idx.columns, idx.unique); err != nil {
			logger.Warn("Failed to create index", zap.String("index", idx.name), zap.Error(err))
		}
	}

	tradeIndexes := []struct {
		name    string
		columns []string
		unique  bool
	}{
		{"idx_trades_buyer_order_id", []string{"buyer_order_id"}, false},
		{"idx_trades_seller_order_id", []string{"seller_order_id"}, false},
		{"idx_trades_symbol_timestamp", []string{"symbol", "executed_at"}, false},
	}
	for _, idx := range tradeIndexes {
		if err := optimizer.CreateIndex("trades", idx.name, idx.columns, idx.unique); err != nil {
			logger.Warn("Failed to create index", zap.String("index", idx.name), zap.Error(err))
		}
	}
}
