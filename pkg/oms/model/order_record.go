package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is the latest known state of an order as persisted by the
// event worker. One row per order; newer revisions overwrite older ones.
type OrderRecord struct {
	OrderID        string          `gorm:"primaryKey"`
	ClientOrderID  string          `gorm:"index"`
	Symbol         string          `gorm:"index"`
	Side           OrderSide
	Type           OrderType
	Status         OrderStatus
	Quantity       decimal.Decimal `gorm:"type:numeric"`
	Price          decimal.Decimal `gorm:"type:numeric"`
	FilledQuantity decimal.Decimal `gorm:"type:numeric"`
	AvgFillPrice   decimal.Decimal `gorm:"type:numeric"`
	Commission     decimal.Decimal `gorm:"type:numeric"`
	StrategyID     string
	Reason         string
	Revision       int
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (OrderRecord) TableName() string {
	return "orders"
}

func NewOrderRecord(ev *OrderEvent) *OrderRecord {
	return &OrderRecord{
		OrderID:        ev.OrderID,
		ClientOrderID:  ev.ClientOrderID,
		Symbol:         ev.Symbol,
		Side:           ev.Side,
		Type:           ev.Type,
		Status:         ev.Status,
		Quantity:       ev.Qty,
		Price:          ev.Price,
		FilledQuantity: ev.FilledQty,
		AvgFillPrice:   ev.AvgPrice,
		Commission:     ev.Commission,
		StrategyID:     ev.StrategyID,
		Reason:         ev.Reason,
		Revision:       ev.Revision,
		UpdatedAt:      ev.Timestamp,
	}
}
