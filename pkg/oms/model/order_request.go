package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// OrderRequest is the immutable intent consumed by Submit.
type OrderRequest struct {
	Symbol        string           `validate:"required"`
	Side          OrderSide        `validate:"required,oneof=BUY SELL"`
	Type          OrderType        `validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT ICEBERG TWAP VWAP"`
	Quantity      decimal.Decimal  `validate:"-"`
	Price         decimal.Decimal  `validate:"-"`
	StopPrice     decimal.Decimal  `validate:"-"`
	TimeInForce   OrderTimeInForce `validate:"omitempty,oneof=GTC IOC FOK DAY"`
	ClientOrderID string
	StrategyID    string

	// algorithm parameters
	IcebergQty           decimal.Decimal `validate:"-"`
	TWAPDuration         time.Duration
	MaxParticipationRate decimal.Decimal `validate:"-"`

	// ScheduledOffset is set on TWAP/VWAP children: delay from the parent's
	// start at which the slice is due.
	ScheduledOffset time.Duration
}

// Normalize fills defaults: GTC time in force and a generated client id.
func (r *OrderRequest) Normalize() {
	if r.TimeInForce == "" {
		r.TimeInForce = OrderTimeInForceGTC
	}
	if r.ClientOrderID == "" {
		r.ClientOrderID = uuid.NewString()
	}
}

func (r *OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", r.Quantity)
	}
	if r.Price.IsNegative() || r.StopPrice.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	switch r.Type {
	case OrderTypeLimit, OrderTypeStopLimit:
		if !r.Price.IsPositive() {
			return fmt.Errorf("%s order requires a price", r.Type)
		}
	}
	switch r.Type {
	case OrderTypeStop, OrderTypeStopLimit:
		if !r.StopPrice.IsPositive() {
			return fmt.Errorf("%s order requires a stop price", r.Type)
		}
	}
	if r.IcebergQty.IsNegative() || r.TWAPDuration < 0 {
		return fmt.Errorf("algorithm parameters must not be negative")
	}
	return nil
}

// Execution is what a venue reports back for one placed child request.
type Execution struct {
	VenueOrderID string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Commission   decimal.Decimal
}
