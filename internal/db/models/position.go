package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradsys/lobcore/internal/eventsourcing"
)

// PositionRow is the storage-row view of a PositionEntity.
type PositionRow struct {
	RowID             uuid.UUID       `gorm:"type:uuid;primaryKey" db:"row_id"`
	PositionID        uint64          `gorm:"uniqueIndex;not null" db:"position_id"`
	Sequence          uint64          `gorm:"index;not null" db:"sequence"`
	TraderID          uint64          `gorm:"index;not null" db:"trader_id"`
	Symbol            string          `gorm:"type:varchar(20);index;not null" db:"symbol"`
	NetQuantity       decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"net_quantity"`
	AverageEntryPrice decimal.Decimal `gorm:"type:decimal(28,8);not null" db:"average_entry_price"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (PositionRow) TableName() string { return "positions" }

func (p *PositionRow) BeforeCreate(tx *gorm.DB) error {
	if p.RowID == uuid.Nil {
		p.RowID = uuid.New()
	}
	return nil
}

func (p PositionRow) ToEntity(tickExponent int) (eventsourcing.PositionEntity, error) {
	netQty, err := decimalToFixed(p.NetQuantity, tickExponent)
	if err != nil {
		return eventsourcing.PositionEntity{}, err
	}
	avgPrice, err := decimalToFixed(p.AverageEntryPrice, tickExponent)
	if err != nil {
		return eventsourcing.PositionEntity{}, err
	}
	return eventsourcing.PositionEntity{
		PositionID:        p.PositionID,
		TraderID:          p.TraderID,
		Symbol:            p.Symbol,
		NetQuantity:       netQty,
		AverageEntryPrice: avgPrice,
	}, nil
}

// PositionRowFromEntity builds the row persisted for entity.
func PositionRowFromEntity(entity eventsourcing.PositionEntity, sequence uint64) PositionRow {
	return PositionRow{
		PositionID:        entity.PositionID,
		Sequence:          sequence,
		TraderID:          entity.TraderID,
		Symbol:            entity.Symbol,
		NetQuantity:       fixedToDecimal(entity.NetQuantity),
		AverageEntryPrice: fixedToDecimal(entity.AverageEntryPrice),
		UpdatedAt:         time.Now(),
	}
}
