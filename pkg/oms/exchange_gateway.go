package oms

import (
	"context"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// ExchangeGateway is the venue the OMS dispatches child requests to.
// PlaceOrder reports whatever executed synchronously; a zero quantity
// means the request rests at the venue and fills arrive later through
// OMS.ReportExecution.
type ExchangeGateway interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Execution, error)
	CancelOrder(ctx context.Context, venueOrderID string) error
}

// MarketDataFeed is optional. It feeds VWAP volume profiles and stands in
// for a missing execution price.
type MarketDataFeed interface {
	LastPrice(symbol string) (decimal.Decimal, bool)
	VolumeProfile(symbol string) []decimal.Decimal
}

type OrderUpdateFunc func(order model.Order)

type FillFunc func(order model.Order, qty, price decimal.Decimal)

// PurgeFunc is called once a terminal order leaves history for good.
type PurgeFunc func(orderID string)
