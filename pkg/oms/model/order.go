package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected,
		OrderStatusExpired, OrderStatusFailed:
		return true
	}
	return false
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s OrderSide) Sign() decimal.Decimal {
	if s == OrderSideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
	OrderTypeIceberg   OrderType = "ICEBERG"
	OrderTypeTWAP      OrderType = "TWAP"
	OrderTypeVWAP      OrderType = "VWAP"
)

type OrderTimeInForce string

const (
	OrderTimeInForceGTC OrderTimeInForce = "GTC"
	OrderTimeInForceIOC OrderTimeInForce = "IOC"
	OrderTimeInForceFOK OrderTimeInForce = "FOK"
	OrderTimeInForceDAY OrderTimeInForce = "DAY"
)

var (
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrInvariantViolation = errors.New("order invariant violation")
)

// Fill is one execution applied to an order.
type Fill struct {
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Timestamp  time.Time       `json:"timestamp"`
}

type Order struct {
	OrderID string `json:"order_id"`

	// init info
	ClientOrderID        string           `json:"client_order_id"`
	Symbol               string           `json:"symbol"`
	Side                 OrderSide        `json:"side"`
	Type                 OrderType        `json:"type"`
	Quantity             decimal.Decimal  `json:"quantity"`
	Price                decimal.Decimal  `json:"price"`
	StopPrice            decimal.Decimal  `json:"stop_price"`
	TimeInForce          OrderTimeInForce `json:"time_in_force"`
	StrategyID           string           `json:"strategy_id"`
	IcebergQty           decimal.Decimal  `json:"iceberg_qty"`
	TWAPDuration         time.Duration    `json:"twap_duration"`
	MaxParticipationRate decimal.Decimal  `json:"max_participation_rate"`

	// calculated info
	Status         OrderStatus     `json:"status"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	Commission     decimal.Decimal `json:"commission"`
	Reason         string          `json:"reason,omitempty"`
	Revision       int             `json:"revision"`
	CreatedTime    time.Time       `json:"created_time"`
	UpdatedTime    time.Time       `json:"updated_time"`
	Fills          []Fill          `json:"fills"`
}

// NewOrder creates a PENDING order from a request that already passed risk.
func NewOrder(orderID string, req *OrderRequest, now time.Time) *Order {
	return &Order{
		OrderID:              orderID,
		ClientOrderID:        req.ClientOrderID,
		Symbol:               req.Symbol,
		Side:                 req.Side,
		Type:                 req.Type,
		Quantity:             req.Quantity,
		Price:                req.Price,
		StopPrice:            req.StopPrice,
		TimeInForce:          req.TimeInForce,
		StrategyID:           req.StrategyID,
		IcebergQty:           req.IcebergQty,
		TWAPDuration:         req.TWAPDuration,
		MaxParticipationRate: req.MaxParticipationRate,
		Status:               OrderStatusPending,
		CreatedTime:          now,
		UpdatedTime:          now,
	}
}

// RejectedOrder builds the snapshot published when a request fails risk.
// It never enters the order store.
func RejectedOrder(req *OrderRequest, reason string, now time.Time) *Order {
	o := NewOrder("", req, now)
	o.Status = OrderStatusRejected
	o.Reason = reason
	return o
}

func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// FillPercentage is filled/quantity in percent.
func (o *Order) FillPercentage() decimal.Decimal {
	if !o.Quantity.IsPositive() {
		return decimal.Zero
	}
	return o.FilledQuantity.Div(o.Quantity).Mul(decimal.NewFromInt(100))
}

func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func (o *Order) CanCancel() bool {
	return !o.IsTerminal()
}

// CanModify allows in-place amendment only before any fill is applied.
func (o *Order) CanModify() bool {
	return (o.Status == OrderStatusPending || o.Status == OrderStatusSubmitted) &&
		o.FilledQuantity.IsZero()
}

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusSubmitted, OrderStatusCancelled, OrderStatusRejected,
		OrderStatusExpired, OrderStatusFailed,
	},
	OrderStatusSubmitted: {
		OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled,
		OrderStatusRejected, OrderStatusExpired, OrderStatusFailed,
	},
	OrderStatusPartiallyFilled: {
		OrderStatusSubmitted, OrderStatusFilled, OrderStatusCancelled,
		OrderStatusRejected, OrderStatusExpired, OrderStatusFailed,
	},
}

// Transition moves the order to status to, enforcing the lifecycle graph.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if o.Status == to {
		return nil
	}
	for _, s := range allowedTransitions[o.Status] {
		if s == to {
			o.Status = to
			o.UpdatedTime = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
}

// ApplyFill records an execution. It panics when the fill would break the
// quantity invariant: clamping would corrupt the average price.
func (o *Order) ApplyFill(qty, price, commission decimal.Decimal, ts time.Time) {
	if !qty.IsPositive() {
		panic(fmt.Errorf("%w: order %s fill quantity %s must be positive",
			ErrInvariantViolation, o.OrderID, qty))
	}
	if next := o.FilledQuantity.Add(qty); next.GreaterThan(o.Quantity) {
		panic(fmt.Errorf("%w: order %s filled %s exceeds quantity %s",
			ErrInvariantViolation, o.OrderID, next, o.Quantity))
	}
	switch o.Status {
	case OrderStatusFilled, OrderStatusRejected:
		panic(fmt.Errorf("%w: order %s fill on %s order",
			ErrInvariantViolation, o.OrderID, o.Status))
	}

	o.Fills = append(o.Fills, Fill{
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Timestamp:  ts,
	})
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.Commission = o.Commission.Add(commission)

	notional, volume := decimal.Zero, decimal.Zero
	for _, f := range o.Fills {
		notional = notional.Add(f.Quantity.Mul(f.Price))
		volume = volume.Add(f.Quantity)
	}
	o.AvgFillPrice = notional.Div(volume)
	o.UpdatedTime = ts

	// late fills on cancelled/expired/failed orders keep their terminal status
	if o.IsTerminal() {
		return
	}
	if o.FilledQuantity.Equal(o.Quantity) {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Snapshot returns a copy safe to hand to callbacks.
func (o *Order) Snapshot() Order {
	cp := *o
	cp.Fills = append([]Fill(nil), o.Fills...)
	return cp
}
