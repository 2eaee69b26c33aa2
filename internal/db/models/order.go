package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradsys/lobcore/internal/core/domain"
	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// OrderRow is the storage-row view of an OrderEntity. RowID is a
// synthetic UUID primary key distinct from OrderID, the domain identity
// every ChangeLogEntry and engine-side index keys on; a storage engine
// wants its own clustering key independent of how the domain numbers
// things.
type OrderRow struct {
	RowID          uuid.UUID       `gorm:"type:uuid;primaryKey" db:"row_id"`
	OrderID        uint64          `gorm:"uniqueIndex;not null" db:"order_id"`
	Sequence       uint64          `gorm:"index;not null" db:"sequence"`
	TraderID       uint64          `gorm:"index;not null" db:"trader_id"`
	Symbol         string          `gorm:"type:varchar(20);index;not null" db:"symbol"`
	Side           string          `gorm:"type:varchar(4);not null" db:"side"`
	Price          decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"price"`
	Quantity       decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"quantity"`
	FilledQuantity decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"filled_quantity"`
	Status         string          `gorm:"type:varchar(20);index;not null" db:"status"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (OrderRow) TableName() string { return "orders" }

// BeforeCreate assigns RowID if the caller left it zero, mirroring the
// teacher's UUID-on-insert convention.
func (o *OrderRow) BeforeCreate(tx *gorm.DB) error {
	if o.RowID == uuid.Nil {
		o.RowID = uuid.New()
	}
	return nil
}

// ToEntity converts a row back into the domain OrderEntity, at symbol's
// tick exponent.
func (o OrderRow) ToEntity(tickExponent int) (eventsourcing.OrderEntity, error) {
	price, err := decimalToFixed(o.Price, tickExponent)
	if err != nil {
		return eventsourcing.OrderEntity{}, err
	}
	qty, err := decimalToFixed(o.Quantity, tickExponent)
	if err != nil {
		return eventsourcing.OrderEntity{}, err
	}
	filled, err := decimalToFixed(o.FilledQuantity, tickExponent)
	if err != nil {
		return eventsourcing.OrderEntity{}, err
	}
	side, err := parseSide(o.Side)
	if err != nil {
		return eventsourcing.OrderEntity{}, err
	}
	status, err := parseStatus(o.Status)
	if err != nil {
		return eventsourcing.OrderEntity{}, err
	}
	return eventsourcing.OrderEntity{
		OrderID:        o.OrderID,
		TraderID:       o.TraderID,
		Side:           side,
		Price:          price,
		Quantity:       qty,
		FilledQuantity: filled,
		Status:         status,
		CreatedAt:      uint64(o.CreatedAt.UnixMilli()),
	}, nil
}

// OrderRowFromEntity builds the row a repository persists for entity,
// tagging it with symbol (not carried by OrderEntity itself, since the
// matching engine is already partitioned per symbol) and sequence (the
// event_id of the Create entry that first produced it).
func OrderRowFromEntity(entity eventsourcing.OrderEntity, symbol string, sequence uint64) OrderRow {
	return OrderRow{
		OrderID:        entity.OrderID,
		Sequence:       sequence,
		TraderID:       entity.TraderID,
		Symbol:         symbol,
		Side:           entity.Side.String(),
		Price:          fixedToDecimal(entity.Price),
		Quantity:       fixedToDecimal(entity.Quantity),
		FilledQuantity: fixedToDecimal(entity.FilledQuantity),
		Status:         entity.Status.String(),
		CreatedAt:      time.UnixMilli(int64(entity.CreatedAt)),
	}
}

func fixedToDecimal(v fixedpoint.Value) decimal.Decimal {
	return decimal.New(v.Mantissa(), int32(v.Exponent()))
}

func decimalToFixed(d decimal.Decimal, tickExponent int) (fixedpoint.Value, error) {
	rescaled := d.Rescale(int32(tickExponent))
	return fixedpoint.New(rescaled.Coefficient().Int64(), tickExponent)
}

func parseSide(s string) (domain.Side, error) {
	switch s {
	case "buy":
		return domain.Buy, nil
	case "sell":
		return domain.Sell, nil
	default:
		return 0, coreerrors.FieldParseError("unknown side %q", s)
	}
}

func parseStatus(s string) (domain.OrderStatus, error) {
	switch s {
	case "pending":
		return domain.Pending, nil
	case "submitted":
		return domain.Submitted, nil
	case "partially_filled":
		return domain.PartiallyFilled, nil
	case "filled":
		return domain.Filled, nil
	case "cancelled":
		return domain.Cancelled, nil
	case "rejected":
		return domain.Rejected, nil
	default:
		return 0, coreerrors.FieldParseError("unknown order status %q", s)
	}
}
