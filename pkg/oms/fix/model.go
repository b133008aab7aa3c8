package fixgateway

import (
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/fix44/ordercancelreplacerequest"
	"github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
)

// TargetStrategy (847) values accepted on NewOrderSingle. 1 is the
// standard VWAP code, 1001 is bilateral.
const (
	targetStrategyVWAP = 1
	targetStrategyTWAP = 1001

	// bilateral tag carrying the TWAP horizon in seconds
	tagTWAPDurationSeconds quickfix.Tag = 20001
)

type NewOrderSingle struct {
	SessionID quickfix.SessionID

	Account        string
	ClOrdID        string
	Symbol         string
	OrdType        enum.OrdType
	Price          decimal.Decimal
	StopPx         decimal.Decimal
	TimeInForce    enum.TimeInForce
	Side           enum.Side
	TransactTime   time.Time
	OrderQty       decimal.Decimal
	MaxFloor       decimal.Decimal
	TargetStrategy int
	TWAPDuration   time.Duration
}

type OrderCancelRequest struct {
	SessionID quickfix.SessionID

	OrigClOrdID string
	ClOrdID     string
	OrderID     string
	Symbol      string
	Side        enum.Side
}

type OrderCancelReplaceRequest struct {
	SessionID quickfix.SessionID

	OrigClOrdID string
	ClOrdID     string
	OrderID     string
	Symbol      string
	Side        enum.Side
	OrderQty    decimal.Decimal
	Price       decimal.Decimal
}

// Missing optional fields are left zero; required ones are enforced by
// the session layer and the OMS validation.
func parseNewOrderSingle(msg newordersingle.NewOrderSingle, sessionID quickfix.SessionID) *NewOrderSingle {
	m := &NewOrderSingle{SessionID: sessionID}
	m.Account, _ = msg.GetAccount()
	m.ClOrdID, _ = msg.GetClOrdID()
	m.Symbol, _ = msg.GetSymbol()
	m.OrdType, _ = msg.GetOrdType()
	m.Price, _ = msg.GetPrice()
	m.StopPx, _ = msg.GetStopPx()
	m.TimeInForce, _ = msg.GetTimeInForce()
	m.Side, _ = msg.GetSide()
	m.TransactTime, _ = msg.GetTransactTime()
	m.OrderQty, _ = msg.GetOrderQty()
	m.MaxFloor, _ = msg.GetMaxFloor()
	m.TargetStrategy, _ = msg.Body.GetInt(tag.TargetStrategy)
	if secs, err := msg.Body.GetInt(tagTWAPDurationSeconds); err == nil && secs > 0 {
		m.TWAPDuration = time.Duration(secs) * time.Second
	}
	return m
}

func parseOrderCancelRequest(msg ordercancelrequest.OrderCancelRequest, sessionID quickfix.SessionID) *OrderCancelRequest {
	m := &OrderCancelRequest{SessionID: sessionID}
	m.OrigClOrdID, _ = msg.GetOrigClOrdID()
	m.ClOrdID, _ = msg.GetClOrdID()
	m.OrderID, _ = msg.GetOrderID()
	m.Symbol, _ = msg.GetSymbol()
	m.Side, _ = msg.GetSide()
	return m
}

func parseOrderCancelReplaceRequest(msg ordercancelreplacerequest.OrderCancelReplaceRequest, sessionID quickfix.SessionID) *OrderCancelReplaceRequest {
	m := &OrderCancelReplaceRequest{SessionID: sessionID}
	m.OrigClOrdID, _ = msg.GetOrigClOrdID()
	m.ClOrdID, _ = msg.GetClOrdID()
	m.OrderID, _ = msg.GetOrderID()
	m.Symbol, _ = msg.GetSymbol()
	m.Side, _ = msg.GetSide()
	m.OrderQty, _ = msg.GetOrderQty()
	m.Price, _ = msg.GetPrice()
	return m
}
