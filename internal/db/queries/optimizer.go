package queries

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Optimizer provides query optimization utilities
type Optimizer struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewOptimizer creates a new query optimizer
func NewOptimizer(db *gorm.DB, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		db:     db,
		logger: logger,
	}
}

// AnalyzeQuery analyzes a query and returns its Postgres execution plan.
func (o *Optimizer) AnalyzeQuery(query string, args ...interface{}) (string, error) {
	rows, err := o.db.Raw(fmt.Sprintf("EXPLAIN %s", query), args...).Rows()
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var planBuilder strings.Builder
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", err
		}
		planBuilder.WriteString(line)
		planBuilder.WriteString("\n")
	}

	return planBuilder.String(), nil
}

// OptimizeTable analyzes and optimizes a table
func (o *Optimizer) OptimizeTable(table string) error {
	// Update Postgres's planner statistics for table.
	result := o.db.Exec(fmt.Sprintf("ANALYZE %s", table))
	if result.Error != nil {
		o.logger.Error("Failed to optimize table",
			zap.String("table", table),
			zap.Error(result.Error))
		return result.Error
	}
	
	o.logger.Info("Table optimized",
		zap.String("table", table))
	return nil
}

// CreateIndex creates an index if it doesn't exist
func (o *Optimizer) CreateIndex(table, indexName string, columns []string, unique bool) error {
	uniqueStr := ""
	if unique {
		uniqueStr = "UNIQUE"
	}
	
	query := fmt.Sprintf("CREATE %s INDEX IF NOT EXISTS %s ON %s (%s)",
		uniqueStr, indexName, table, strings.Join(columns, ", "))
	
	result := o.db.Exec(query)
	if result.Error != nil {
		o.logger.Error("Failed to create index",
			zap.String("table", table),
			zap.String("index", indexName),
			zap.Error(result.Error))
		return result.Error
	}
	
	o.logger.Info("Index created or already exists",
		zap.String("table", table),
		zap.String("index", indexName))
	return nil
}

// GetSlowQueries returns recent slow queries
func (o *Optimizer) GetSlowQueries(threshold time.Duration) ([]map[string]interface{}, error) {
	// This requires SQLite query logging to be enabled
	// For a production system, you would implement a custom query logger
	var results []map[string]interface{}
	
	// This is a placeholder - in a real system you would query your query log table
	// For demonstration purposes only
	return results, nil
}

// EnableQueryOptimizations sets session-level Postgres parameters tuned
// for the repository's access pattern: frequent small point lookups
// (find_by_id) and append-heavy writes (replay_event).
func (o *Optimizer) EnableQueryOptimizations() error {
	sqlDB, err := o.db.DB()
	if err != nil {
		return err
	}

	settings := []string{
		"SET synchronous_commit = off",
		"SET random_page_cost = 1.1",
	}

	for _, setting := range settings {
		if _, err := sqlDB.Exec(setting); err != nil {
			o.logger.Error("Failed to apply session setting",
				zap.String("setting", setting),
				zap.Error(err))
			return err
		}
	}

	o.logger.Info("Postgres session optimizations enabled")
	return nil
}
