package oms

import (
	"context"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// IOMS is what caller surfaces (FIX, HTTP) depend on.
type IOMS interface {
	Submit(ctx context.Context, req model.OrderRequest) *model.Order
	SubmitWithResult(ctx context.Context, req model.OrderRequest) (*model.Order, model.RiskCheckResult)
	Cancel(ctx context.Context, orderID string) bool
	Modify(ctx context.Context, orderID string, newQty, newPrice *decimal.Decimal) bool
	ReportExecution(ctx context.Context, clientOrderID string, exec model.Execution) error

	GetOrder(orderID string) *model.Order
	GetOrderByClientOrderID(clientOrderID string) *model.Order
	GetActiveOrders(symbol string) []model.Order
	GetHistory() []model.Order
	GetStatistics() model.Statistics

	OnOrderUpdate(cb OrderUpdateFunc)
	OnFill(cb FillFunc)
	OnOrderPurged(cb PurgeFunc)
}

var _ IOMS = (*OMS)(nil)
