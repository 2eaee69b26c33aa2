package repository

import (
	"context"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gorm.io/gorm"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/db/models"
	"github.com/tradsys/lobcore/internal/db/queries"
	"github.com/tradsys/lobcore/internal/db/sqlgen"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// SQLRepository is the Postgres-backed C4 implementation: one table per
// entity type (Order, Trade, Position), written through deterministic
// sqlgen statements and read back through the shared query builder.
// ReplayEvent is wrapped in a circuit breaker so a string of database
// failures fails fast rather than hanging a symbol's recovery pass.
type SQLRepository struct {
	db              *gorm.DB
	logger          *zap.Logger
	builder         func() *queries.Builder
	symbolExponents map[string]int
	breaker         *gobreaker.CircuitBreaker
}

// NewSQLRepository builds a repository against db. symbolExponents gives
// the tick exponent used to convert each symbol's decimal.Decimal
// columns back to fixedpoint.Value on read. Writes and migrations go
// through gorm directly; the read side (loadRows) goes through the same
// connection via queries.Builder, so sequence-range and cursor reads push
// their WHERE/ORDER BY/LIMIT down into SQL instead of materializing whole
// tables.
func NewSQLRepository(db *gorm.DB, logger *zap.Logger, symbolExponents map[string]int) (*SQLRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SQLRepository{
		db:              db,
		logger:          logger,
		symbolExponents: symbolExponents,
	}
	r.builder = func() *queries.Builder { return queries.NewBuilder(db, logger) }
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "repository.replay_event",
		MaxRequests: 1,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return r, nil
}

func (r *SQLRepository) exponentFor(symbol string) (int, error) {
	exp, ok := r.symbolExponents[symbol]
	if !ok {
		return 0, coreerrors.Validation("no tick exponent registered for symbol %q", symbol)
	}
	return exp, nil
}

// ReplayEvent folds entry into the appropriate table, through the
// circuit breaker.
func (r *SQLRepository) ReplayEvent(ctx context.Context, entry eventsourcing.ChangeLogEntry) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.replayEvent(ctx, entry)
	})
	return err
}

func (r *SQLRepository) replayEvent(ctx context.Context, entry eventsourcing.ChangeLogEntry) error {
	switch entry.EntityType {
	case eventsourcing.OrderEntityType:
		return r.replayOrder(ctx, entry)
	case eventsourcing.TradeEntityType:
		return r.replayTrade(ctx, entry)
	case eventsourcing.PositionEntityType:
		return r.replayPosition(ctx, entry)
	default:
		return coreerrors.Validation("unsupported entity type %q for SQL backend", entry.EntityType)
	}
}

func (r *SQLRepository) replayOrder(ctx context.Context, entry eventsourcing.ChangeLogEntry) error {
	if len(entry.Changes) == 0 {
		return coreerrors.Validation("entry %d has no record changes", entry.EventID)
	}
	id := entry.Changes[0].EntityID

	switch entry.Operation {
	case eventsourcing.OpCreate:
		var existing models.OrderRow
		if err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&existing).Error; err == nil {
			return nil // idempotent re-application
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		factory, err := eventsourcing.OrderFromCreatedEvent(entry)
		if err != nil {
			return err
		}
		order := factory.(*eventsourcing.OrderEntity)
		symbol, err := symbolFromEntry(entry)
		if err != nil {
			return err
		}
		row := models.OrderRowFromEntity(*order, symbol, entry.EventID)
		stmt, args := sqlgen.Insert("orders", orderColumns(row))
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	case eventsourcing.OpUpdate:
		var row models.OrderRow
		if err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return coreerrors.EntityNotFound(eventsourcing.OrderEntityType, id)
			}
			return err
		}
		exp, err := r.exponentFor(row.Symbol)
		if err != nil {
			return err
		}
		entity, err := row.ToEntity(exp)
		if err != nil {
			return err
		}
		if err := entity.Replay(entry); err != nil {
			return err
		}
		updated := models.OrderRowFromEntity(entity, row.Symbol, row.Sequence)
		stmt, args := sqlgen.Update("orders", "order_id", id, orderColumns(updated))
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	case eventsourcing.OpDelete:
		stmt, args := sqlgen.Delete("orders", "order_id", id)
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	default:
		return coreerrors.Validation("unknown change operation %v", entry.Operation)
	}
}

func orderColumns(row models.OrderRow) []sqlgen.Column {
	return []sqlgen.Column{
		{Name: "order_id", Value: row.OrderID},
		{Name: "sequence", Value: row.Sequence},
		{Name: "trader_id", Value: row.TraderID},
		{Name: "symbol", Value: row.Symbol},
		{Name: "side", Value: row.Side},
		{Name: "price", Value: row.Price},
		{Name: "quantity", Value: row.Quantity},
		{Name: "filled_quantity", Value: row.FilledQuantity},
		{Name: "status", Value: row.Status},
	}
}

// symbolFromEntry extracts the symbol a Create entry's caller packaged
// as the entity's synthetic "symbol" field companion. Order and Trade
// Create entries carry it as a RecordChange field named "symbol"
// (execution.Executor's tagSymbol adds it); an entry without a string
// "symbol" field is a Validation error, with no fallback symbol.
func symbolFromEntry(entry eventsourcing.ChangeLogEntry) (string, error) {
	for _, rc := range entry.Changes {
		for _, fc := range rc.FieldChanges {
			if fc.FieldName == "symbol" && fc.NewValue != nil {
				s, err := fc.NewValue.AsString()
				if err == nil {
					return s, nil
				}
			}
		}
	}
	return "", coreerrors.Validation("create entry %d carries no symbol field", entry.EventID)
}

func (r *SQLRepository) replayTrade(ctx context.Context, entry eventsourcing.ChangeLogEntry) error {
	if entry.Operation != eventsourcing.OpCreate {
		return coreerrors.Validation("trades are immutable once created, operation %v not permitted", entry.Operation)
	}
	if len(entry.Changes) == 0 {
		return coreerrors.Validation("entry %d has no record changes", entry.EventID)
	}
	id := entry.Changes[0].EntityID

	var existing models.TradeRow
	if err := r.db.WithContext(ctx).Where("trade_id = ?", id).First(&existing).Error; err == nil {
		return nil
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	factory, err := eventsourcing.TradeFromCreatedEvent(entry)
	if err != nil {
		return err
	}
	trade := factory.(*eventsourcing.TradeEntity)
	symbol, err := symbolFromEntry(entry)
	if err != nil {
		return err
	}
	row := models.TradeRowFromEntity(*trade, symbol, entry.EventID)
	stmt, args := sqlgen.Insert("trades", []sqlgen.Column{
		{Name: "trade_id", Value: row.TradeID},
		{Name: "sequence", Value: row.Sequence},
		{Name: "symbol", Value: row.Symbol},
		{Name: "buyer_order_id", Value: row.BuyerOrderID},
		{Name: "seller_order_id", Value: row.SellerOrderID},
		{Name: "price", Value: row.Price},
		{Name: "quantity", Value: row.Quantity},
		{Name: "executed_at", Value: row.ExecutedAt},
	})
	return r.db.WithContext(ctx).Exec(stmt, args...).Error
}

func (r *SQLRepository) replayPosition(ctx context.Context, entry eventsourcing.ChangeLogEntry) error {
	if len(entry.Changes) == 0 {
		return coreerrors.Validation("entry %d has no record changes", entry.EventID)
	}
	id := entry.Changes[0].EntityID

	switch entry.Operation {
	case eventsourcing.OpCreate:
		var existing models.PositionRow
		if err := r.db.WithContext(ctx).Where("position_id = ?", id).First(&existing).Error; err == nil {
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		factory, err := eventsourcing.PositionFromCreatedEvent(entry)
		if err != nil {
			return err
		}
		pos := factory.(*eventsourcing.PositionEntity)
		row := models.PositionRowFromEntity(*pos, entry.EventID)
		stmt, args := sqlgen.Insert("positions", positionColumns(row))
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	case eventsourcing.OpUpdate:
		var row models.PositionRow
		if err := r.db.WithContext(ctx).Where("position_id = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return coreerrors.EntityNotFound(eventsourcing.PositionEntityType, id)
			}
			return err
		}
		exp, err := r.exponentFor(row.Symbol)
		if err != nil {
			return err
		}
		entity, err := row.ToEntity(exp)
		if err != nil {
			return err
		}
		if err := entity.Replay(entry); err != nil {
			return err
		}
		updated := models.PositionRowFromEntity(entity, row.Sequence)
		stmt, args := sqlgen.Update("positions", "position_id", id, positionColumns(updated))
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	case eventsourcing.OpDelete:
		stmt, args := sqlgen.Delete("positions", "position_id", id)
		return r.db.WithContext(ctx).Exec(stmt, args...).Error

	default:
		return coreerrors.Validation("unknown change operation %v", entry.Operation)
	}
}

func positionColumns(row models.PositionRow) []sqlgen.Column {
	return []sqlgen.Column{
		{Name: "position_id", Value: row.PositionID},
		{Name: "sequence", Value: row.Sequence},
		{Name: "trader_id", Value: row.TraderID},
		{Name: "symbol", Value: row.Symbol},
		{Name: "net_quantity", Value: row.NetQuantity},
		{Name: "average_entry_price", Value: row.AverageEntryPrice},
	}
}

func (r *SQLRepository) FindByID(ctx context.Context, entityType string, id uint64) (eventsourcing.Entity, error) {
	switch entityType {
	case eventsourcing.OrderEntityType:
		var row models.OrderRow
		if err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, coreerrors.EntityNotFound(entityType, id)
			}
			return nil, err
		}
		exp, err := r.exponentFor(row.Symbol)
		if err != nil {
			return nil, err
		}
		entity, err := row.ToEntity(exp)
		if err != nil {
			return nil, err
		}
		return &entity, nil

	case eventsourcing.TradeEntityType:
		var row models.TradeRow
		if err := r.db.WithContext(ctx).Where("trade_id = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, coreerrors.EntityNotFound(entityType, id)
			}
			return nil, err
		}
		exp, err := r.exponentFor(row.Symbol)
		if err != nil {
			return nil, err
		}
		entity, err := row.ToEntity(exp)
		if err != nil {
			return nil, err
		}
		return &entity, nil

	case eventsourcing.PositionEntityType:
		var row models.PositionRow
		if err := r.db.WithContext(ctx).Where("position_id = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, coreerrors.EntityNotFound(entityType, id)
			}
			return nil, err
		}
		exp, err := r.exponentFor(row.Symbol)
		if err != nil {
			return nil, err
		}
		entity, err := row.ToEntity(exp)
		if err != nil {
			return nil, err
		}
		return &entity, nil

	default:
		return nil, coreerrors.Validation("unsupported entity type %q for SQL backend", entityType)
	}
}

func (r *SQLRepository) Exists(ctx context.Context, entityType string, id uint64) (bool, error) {
	_, err := r.FindByID(ctx, entityType, id)
	if err == nil {
		return true, nil
	}
	if code, ok := coreerrors.GetCode(err); ok && code == coreerrors.CodeEntityNotFound {
		return false, nil
	}
	return false, err
}

func (r *SQLRepository) FindBySequence(ctx context.Context, entityType string, seq uint64) (eventsourcing.Entity, error) {
	all, err := r.loadAll(ctx, entityType)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.sequence == seq {
			return e.entity, nil
		}
	}
	return nil, coreerrors.EntityNotFound(entityType, seq)
}

// loadedEntity pairs a reconstructed Entity with its creation sequence,
// mirroring the in-memory backend's record so FindByCursor/paginated
// reads share ordering semantics across both implementations.
type loadedEntity struct {
	entity   eventsourcing.Entity
	sequence uint64
}

// tableFor maps an entity type to its backing table, the only piece of
// knowledge loadRows needs to hand a *queries.Builder to the right rows.
func (r *SQLRepository) tableFor(entityType string) (string, error) {
	switch entityType {
	case eventsourcing.OrderEntityType:
		return "orders", nil
	case eventsourcing.TradeEntityType:
		return "trades", nil
	case eventsourcing.PositionEntityType:
		return "positions", nil
	default:
		return "", coreerrors.Validation("unsupported entity type %q for SQL backend", entityType)
	}
}

// loadRows builds a query for entityType's table through queries.Builder,
// defaulting to an unbounded scan ordered by sequence ASC. configure may
// narrow it with Where/Limit/Offset/OrderBy before it runs — the hook
// FindRangeBySequencePaginated and FindByCursor use to push their bounds
// down into SQL instead of materializing the whole table.
func (r *SQLRepository) loadRows(ctx context.Context, entityType string, configure func(*queries.Builder)) ([]loadedEntity, error) {
	table, err := r.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	b := r.builder().WithContext(ctx).Table(table).OrderBy("sequence ASC")
	if configure != nil {
		configure(b)
	}

	switch entityType {
	case eventsourcing.OrderEntityType:
		var rows []models.OrderRow
		if err := b.Execute(&rows); err != nil {
			return nil, err
		}
		out := make([]loadedEntity, 0, len(rows))
		for _, row := range rows {
			exp, err := r.exponentFor(row.Symbol)
			if err != nil {
				return nil, err
			}
			entity, err := row.ToEntity(exp)
			if err != nil {
				return nil, err
			}
			out = append(out, loadedEntity{entity: &entity, sequence: row.Sequence})
		}
		return out, nil

	case eventsourcing.TradeEntityType:
		var rows []models.TradeRow
		if err := b.Execute(&rows); err != nil {
			return nil, err
		}
		out := make([]loadedEntity, 0, len(rows))
		for _, row := range rows {
			exp, err := r.exponentFor(row.Symbol)
			if err != nil {
				return nil, err
			}
			entity, err := row.ToEntity(exp)
			if err != nil {
				return nil, err
			}
			out = append(out, loadedEntity{entity: &entity, sequence: row.Sequence})
		}
		return out, nil

	case eventsourcing.PositionEntityType:
		var rows []models.PositionRow
		if err := b.Execute(&rows); err != nil {
			return nil, err
		}
		out := make([]loadedEntity, 0, len(rows))
		for _, row := range rows {
			exp, err := r.exponentFor(row.Symbol)
			if err != nil {
				return nil, err
			}
			entity, err := row.ToEntity(exp)
			if err != nil {
				return nil, err
			}
			out = append(out, loadedEntity{entity: &entity, sequence: row.Sequence})
		}
		return out, nil

	default:
		return nil, coreerrors.Validation("unsupported entity type %q for SQL backend", entityType)
	}
}

// loadAll loads every row for entityType, ordered by sequence ASC. Used
// by the probe-based condition queries: a Probe is an opaque Go closure,
// so it cannot be translated into a WHERE clause and every candidate row
// has to be materialized before it runs.
func (r *SQLRepository) loadAll(ctx context.Context, entityType string) ([]loadedEntity, error) {
	return r.loadRows(ctx, entityType, nil)
}

func (r *SQLRepository) FindOneByCondition(ctx context.Context, entityType string, probe Probe) (eventsourcing.Entity, bool, error) {
	all, err := r.loadAll(ctx, entityType)
	if err != nil {
		return nil, false, err
	}
	for _, e := range all {
		if probe(e.entity) {
			return e.entity, true, nil
		}
	}
	return nil, false, nil
}

func (r *SQLRepository) FindAllByCondition(ctx context.Context, entityType string, probe Probe) ([]eventsourcing.Entity, error) {
	all, err := r.loadAll(ctx, entityType)
	if err != nil {
		return nil, err
	}
	var out []eventsourcing.Entity
	for _, e := range all {
		if probe(e.entity) {
			out = append(out, e.entity)
		}
	}
	return out, nil
}

func (r *SQLRepository) FindAllByConditionPaginated(ctx context.Context, entityType string, probe Probe, page PageRequest) (PageResult, error) {
	all, err := r.loadAll(ctx, entityType)
	if err != nil {
		return PageResult{}, err
	}
	var matched []eventsourcing.Entity
	for _, e := range all {
		if probe(e.entity) {
			matched = append(matched, e.entity)
		}
	}
	return paginate(matched, page), nil
}

// FindRangeBySequencePaginated pushes the [from, to] sequence bound and
// the page window into SQL via queries.Builder: a count query for
// TotalElements plus a bounded, offset-limited fetch for Content, rather
// than loading the whole table and slicing in Go.
func (r *SQLRepository) FindRangeBySequencePaginated(ctx context.Context, entityType string, from, to uint64, page PageRequest) (PageResult, error) {
	table, err := r.tableFor(entityType)
	if err != nil {
		return PageResult{}, err
	}

	total, err := r.builder().WithContext(ctx).Table(table).
		Where("sequence >= ?", from).
		Where("sequence <= ?", to).
		Count()
	if err != nil {
		return PageResult{}, err
	}

	rows, err := r.loadRows(ctx, entityType, func(b *queries.Builder) {
		b.Where("sequence >= ?", from).
			Where("sequence <= ?", to).
			Limit(page.PageSize).
			Offset(page.Page * page.PageSize)
	})
	if err != nil {
		return PageResult{}, err
	}

	content := make([]eventsourcing.Entity, 0, len(rows))
	for _, e := range rows {
		content = append(content, e.entity)
	}
	return PageResult{
		Content:       content,
		TotalElements: int(total),
		Page:          page.Page,
		PageSize:      page.PageSize,
	}, nil
}

// FindByCursor pushes the cursor bound and scan direction into SQL via
// queries.Builder, then applies probe and the result limit in Go: probe
// is an opaque closure the query builder cannot express as a WHERE
// clause, so it still runs against the materialized (but now
// SQL-narrowed) rows.
func (r *SQLRepository) FindByCursor(ctx context.Context, entityType string, probe Probe, cursor uint64, limit int, forward bool) ([]eventsourcing.Entity, uint64, error) {
	rows, err := r.loadRows(ctx, entityType, func(b *queries.Builder) {
		if forward {
			b.Where("sequence > ?", cursor).OrderBy("sequence ASC")
		} else {
			b.Where("sequence < ?", cursor).OrderBy("sequence DESC")
		}
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]eventsourcing.Entity, 0, limit)
	var next uint64
	for _, e := range rows {
		if !probe(e.entity) {
			continue
		}
		out = append(out, e.entity)
		next = e.sequence
		if len(out) >= limit {
			break
		}
	}
	return out, next, nil
}
