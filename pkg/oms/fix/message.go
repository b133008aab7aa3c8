package fixgateway

import (
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/fix44/ordercancelreject"
	"github.com/shopspring/decimal"
)

const (
	qtyScale = 8
	// OrderID (37) on reports for requests that never became an order
	noOrderID = "NONE"
)

var (
	OrderTypeMapping = map[enum.OrdType]model.OrderType{
		enum.OrdType_MARKET:     model.OrderTypeMarket,
		enum.OrdType_LIMIT:      model.OrderTypeLimit,
		enum.OrdType_STOP:       model.OrderTypeStop,
		enum.OrdType_STOP_LIMIT: model.OrderTypeStopLimit,
	}

	TimeInForceMapping = map[enum.TimeInForce]model.OrderTimeInForce{
		enum.TimeInForce_DAY:                 model.OrderTimeInForceDAY,
		enum.TimeInForce_FILL_OR_KILL:        model.OrderTimeInForceFOK,
		enum.TimeInForce_GOOD_TILL_CANCEL:    model.OrderTimeInForceGTC,
		enum.TimeInForce_IMMEDIATE_OR_CANCEL: model.OrderTimeInForceIOC,
	}

	SideMapping = map[enum.Side]model.OrderSide{
		enum.Side_BUY:  model.OrderSideBuy,
		enum.Side_SELL: model.OrderSideSell,
	}

	OrderStatusMapping = map[model.OrderStatus]enum.OrdStatus{
		model.OrderStatusPending:         enum.OrdStatus_PENDING_NEW,
		model.OrderStatusSubmitted:       enum.OrdStatus_NEW,
		model.OrderStatusPartiallyFilled: enum.OrdStatus_PARTIALLY_FILLED,
		model.OrderStatusFilled:          enum.OrdStatus_FILLED,
		model.OrderStatusCancelled:       enum.OrdStatus_CANCELED,
		model.OrderStatusRejected:        enum.OrdStatus_REJECTED,
		model.OrderStatusExpired:         enum.OrdStatus_EXPIRED,
		model.OrderStatusFailed:          enum.OrdStatus_REJECTED,
	}
)

// toOrderRequest maps a NewOrderSingle onto an OMS request. MaxFloor turns
// the order into an iceberg; TargetStrategy selects the scheduled algos.
func toOrderRequest(m *NewOrderSingle) model.OrderRequest {
	req := model.OrderRequest{
		ClientOrderID: m.ClOrdID,
		StrategyID:    m.Account,
		Symbol:        m.Symbol,
		Side:          SideMapping[m.Side],
		Type:          OrderTypeMapping[m.OrdType],
		Quantity:      m.OrderQty,
		Price:         m.Price,
		StopPrice:     m.StopPx,
		TimeInForce:   TimeInForceMapping[m.TimeInForce],
	}
	switch {
	case m.MaxFloor.IsPositive():
		req.Type = model.OrderTypeIceberg
		req.IcebergQty = m.MaxFloor
	case m.TargetStrategy == targetStrategyVWAP:
		req.Type = model.OrderTypeVWAP
	case m.TargetStrategy == targetStrategyTWAP:
		req.Type = model.OrderTypeTWAP
		req.TWAPDuration = m.TWAPDuration
	}
	return req
}

func ordStatus(order *model.Order) enum.OrdStatus {
	if order.Status == model.OrderStatusSubmitted && order.FilledQuantity.IsPositive() {
		return enum.OrdStatus_PARTIALLY_FILLED
	}
	return OrderStatusMapping[order.Status]
}

// execType picks ExecType (150) for a snapshot. newFill is set when the
// snapshot carries a fill not yet reported.
func execType(order *model.Order, newFill bool) enum.ExecType {
	if newFill {
		return enum.ExecType_TRADE
	}
	switch order.Status {
	case model.OrderStatusPending:
		return enum.ExecType_PENDING_NEW
	case model.OrderStatusSubmitted:
		if order.FilledQuantity.IsPositive() {
			return enum.ExecType_ORDER_STATUS
		}
		return enum.ExecType_NEW
	case model.OrderStatusCancelled:
		return enum.ExecType_CANCELED
	case model.OrderStatusExpired:
		return enum.ExecType_EXPIRED
	case model.OrderStatusRejected, model.OrderStatusFailed:
		return enum.ExecType_REJECTED
	}
	return enum.ExecType_TRADE
}

func leavesQty(order *model.Order) decimal.Decimal {
	if order.IsTerminal() {
		return decimal.Zero
	}
	return order.RemainingQuantity()
}

// newExecutionReport renders an order snapshot. ExecID is the event id so
// a resent report for the same revision is recognisable downstream.
func newExecutionReport(order *model.Order, et enum.ExecType, clOrdID, origClOrdID string) executionreport.ExecutionReport {
	orderID, execID := order.OrderID, model.NewEventID(order.OrderID, order.Revision)
	if orderID == "" {
		orderID, execID = noOrderID, model.NewEventID(clOrdID, order.Revision)
	}
	report := executionreport.New(
		field.NewOrderID(orderID),
		field.NewExecID(execID),
		field.NewExecType(et),
		field.NewOrdStatus(ordStatus(order)),
		field.NewSide(enumSide(order.Side)),
		field.NewLeavesQty(leavesQty(order), qtyScale),
		field.NewCumQty(order.FilledQuantity, qtyScale),
		field.NewAvgPx(order.AvgFillPrice, qtyScale),
	)
	report.SetClOrdID(clOrdID)
	if origClOrdID != "" {
		report.SetOrigClOrdID(origClOrdID)
	}
	report.SetSymbol(order.Symbol)
	report.SetOrderQty(order.Quantity, qtyScale)
	if order.Price.IsPositive() {
		report.SetPrice(order.Price, qtyScale)
	}
	if order.StrategyID != "" {
		report.SetAccount(order.StrategyID)
	}
	if et == enum.ExecType_TRADE && len(order.Fills) > 0 {
		last := order.Fills[len(order.Fills)-1]
		report.SetLastQty(last.Quantity, qtyScale)
		report.SetLastPx(last.Price, qtyScale)
	}
	if order.Reason != "" {
		report.SetText(order.Reason)
	}
	report.SetTransactTime(order.UpdatedTime)
	return report
}

func newCancelReject(orderID, clOrdID, origClOrdID string, status enum.OrdStatus, to enum.CxlRejResponseTo, reason enum.CxlRejReason, text string) ordercancelreject.OrderCancelReject {
	if orderID == "" {
		orderID = noOrderID
	}
	reject := ordercancelreject.New(
		field.NewOrderID(orderID),
		field.NewClOrdID(clOrdID),
		field.NewOrigClOrdID(origClOrdID),
		field.NewOrdStatus(status),
		field.NewCxlRejResponseTo(to),
	)
	reject.SetCxlRejReason(reason)
	if text != "" {
		reject.SetText(text)
	}
	return reject
}

func enumSide(s model.OrderSide) enum.Side {
	if s == model.OrderSideSell {
		return enum.Side_SELL
	}
	return enum.Side_BUY
}
