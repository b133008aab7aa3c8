package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is a flattened order snapshot taken at a state change.
type OrderEvent struct {
	EventID       string          `json:"event_id" gorm:"primaryKey"`
	OrderID       string          `json:"order_id" gorm:"index"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Status        OrderStatus     `json:"status"`
	Qty           decimal.Decimal `json:"qty" gorm:"type:numeric"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric"`
	FilledQty     decimal.Decimal `json:"filled_qty" gorm:"type:numeric"`
	AvgPrice      decimal.Decimal `json:"avg_price" gorm:"type:numeric"`
	LastQty       decimal.Decimal `json:"last_qty" gorm:"type:numeric"`
	LastPrice     decimal.Decimal `json:"last_price" gorm:"type:numeric"`
	Commission    decimal.Decimal `json:"commission" gorm:"type:numeric"`
	StrategyID    string          `json:"strategy_id"`
	Reason        string          `json:"reason"`
	Revision      int             `json:"revision"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}

func NewOrderEvent(o Order) *OrderEvent {
	ev := &OrderEvent{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Status:        o.Status,
		Qty:           o.Quantity,
		Price:         o.Price,
		FilledQty:     o.FilledQuantity,
		AvgPrice:      o.AvgFillPrice,
		Commission:    o.Commission,
		StrategyID:    o.StrategyID,
		Reason:        o.Reason,
		Revision:      o.Revision,
		Timestamp:     o.UpdatedTime,
	}
	if n := len(o.Fills); n > 0 {
		ev.LastQty = o.Fills[n-1].Quantity
		ev.LastPrice = o.Fills[n-1].Price
	}
	if o.OrderID == "" {
		// rejected requests never got an order id
		ev.EventID = fmt.Sprintf("rej-%s-%d", o.ClientOrderID, o.UpdatedTime.UnixNano())
		return ev
	}
	ev.EventID = NewEventID(o.OrderID, o.Revision)
	return ev
}

// NewEventID is unique per (order, revision), so re-delivered events are
// idempotent on insert.
func NewEventID(orderID string, revision int) string {
	return fmt.Sprintf("%s-%d", orderID, revision)
}
