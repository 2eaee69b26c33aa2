package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// TradeRow is the storage-row view of a TradeEntity. Trades are
// immutable once emitted, so the row is write-once: the repository never
// issues an UPDATE against this table.
type TradeRow struct {
	RowID         uuid.UUID       `gorm:"type:uuid;primaryKey" db:"row_id"`
	TradeID       uint64          `gorm:"uniqueIndex;not null" db:"trade_id"`
	Sequence      uint64          `gorm:"index;not null" db:"sequence"`
	Symbol        string          `gorm:"type:varchar(20);index;not null" db:"symbol"`
	BuyerOrderID  uint64          `gorm:"index;not null" db:"buyer_order_id"`
	SellerOrderID uint64          `gorm:"index;not null" db:"seller_order_id"`
	Price         decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"price"`
	Quantity      decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"quantity"`
	ExecutedAt    time.Time       `gorm:"index" db:"executed_at"`
}

func (TradeRow) TableName() string { return "trades" }

func (t *TradeRow) BeforeCreate(tx *gorm.DB) error {
	if t.RowID == uuid.Nil {
		t.RowID = uuid.New()
	}
	return nil
}

func (t TradeRow) ToEntity(tickExponent int) (eventsourcing.TradeEntity, error) {
	price, err := decimalToFixed(t.Price, tickExponent)
	if err != nil {
		return eventsourcing.TradeEntity{}, err
	}
	qty, err := decimalToFixed(t.Quantity, tickExponent)
	if err != nil {
		return eventsourcing.TradeEntity{}, err
	}
	return eventsourcing.TradeEntity{
		TradeID:       t.TradeID,
		BuyerOrderID:  t.BuyerOrderID,
		SellerOrderID: t.SellerOrderID,
		Price:         price,
		Quantity:      qty,
		Timestamp:     uint64(t.ExecutedAt.UnixMilli()),
	}, nil
}

// TradeRowFromEntity builds the row persisted for entity, tagging it
// with symbol (not carried on TradeEntity itself) and sequence (the
// event_id of the Create entry that produced it).
func TradeRowFromEntity(entity eventsourcing.TradeEntity, symbol string, sequence uint64) TradeRow {
	return TradeRow{
		TradeID:       entity.TradeID,
		Sequence:      sequence,
		Symbol:        symbol,
		BuyerOrderID:  entity.BuyerOrderID,
		SellerOrderID: entity.SellerOrderID,
		Price:         fixedToDecimal(entity.Price),
		Quantity:      fixedToDecimal(entity.Quantity),
		ExecutedAt:    time.UnixMilli(int64(entity.Timestamp)),
	}
}
