package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/executionreport"
	fix44nos "github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/fix44/ordercancelreject"
	"github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type orderFlags struct {
	symbol      string
	side        string
	qty         string
	price       string
	maxFloor    string
	account     string
	cancelAfter time.Duration
}

// InitiatorApp sends one order on logon and logs what comes back.
type InitiatorApp struct {
	*quickfix.MessageRouter
	flags  orderFlags
	logger *logging.Logger
}

func newInitiatorApp(f orderFlags, logger *logging.Logger) *InitiatorApp {
	a := &InitiatorApp{MessageRouter: quickfix.NewMessageRouter(), flags: f, logger: logger}
	a.AddRoute(executionreport.Route(a.onExecutionReport))
	a.AddRoute(ordercancelreject.Route(a.onOrderCancelReject))
	return a
}

func (a *InitiatorApp) OnCreate(sessionID quickfix.SessionID) {}

func (a *InitiatorApp) OnLogon(sessionID quickfix.SessionID) {
	a.logger.Info(context.Background(), "logon", zap.String("session", sessionID.String()))
	clOrdID := a.sendNewOrder(sessionID)
	if clOrdID != "" && a.flags.cancelAfter > 0 {
		time.AfterFunc(a.flags.cancelAfter, func() { a.sendCancel(sessionID, clOrdID) })
	}
}

func (a *InitiatorApp) OnLogout(sessionID quickfix.SessionID)                       {}
func (a *InitiatorApp) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}
func (a *InitiatorApp) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}
func (a *InitiatorApp) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}
func (a *InitiatorApp) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return a.Route(msg, sessionID)
}

func (a *InitiatorApp) sendNewOrder(sessionID quickfix.SessionID) string {
	ctx := context.Background()
	qty, err := decimal.NewFromString(a.flags.qty)
	if err != nil {
		a.logger.Error(ctx, "bad quantity", zap.Error(err))
		return ""
	}

	side := enum.Side_BUY
	if a.flags.side == "sell" {
		side = enum.Side_SELL
	}
	ordType := enum.OrdType_MARKET
	if a.flags.price != "" {
		ordType = enum.OrdType_LIMIT
	}

	clOrdID := uuid.NewString()
	order := fix44nos.New(
		field.NewClOrdID(clOrdID),
		field.NewSide(side),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(ordType))
	order.SetSymbol(a.flags.symbol)
	order.SetAccount(a.flags.account)
	order.SetOrderQty(qty, 8)
	order.SetTimeInForce(enum.TimeInForce_GOOD_TILL_CANCEL)
	if a.flags.price != "" {
		price, err := decimal.NewFromString(a.flags.price)
		if err != nil {
			a.logger.Error(ctx, "bad price", zap.Error(err))
			return ""
		}
		order.SetPrice(price, 8)
	}
	if a.flags.maxFloor != "" {
		floor, err := decimal.NewFromString(a.flags.maxFloor)
		if err != nil {
			a.logger.Error(ctx, "bad max floor", zap.Error(err))
			return ""
		}
		order.SetMaxFloor(floor, 8)
	}

	if err := quickfix.SendToTarget(order, sessionID); err != nil {
		a.logger.Error(ctx, "send order", zap.Error(err))
		return ""
	}
	a.logger.Info(ctx, "order sent", zap.String("cl_ord_id", clOrdID))
	return clOrdID
}

func (a *InitiatorApp) sendCancel(sessionID quickfix.SessionID, origClOrdID string) {
	side := enum.Side_BUY
	if a.flags.side == "sell" {
		side = enum.Side_SELL
	}
	cancel := ordercancelrequest.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(uuid.NewString()),
		field.NewSide(side),
		field.NewTransactTime(time.Now()))
	cancel.SetSymbol(a.flags.symbol)
	if err := quickfix.SendToTarget(cancel, sessionID); err != nil {
		a.logger.Error(context.Background(), "send cancel", zap.Error(err))
	}
}

func (a *InitiatorApp) onExecutionReport(msg executionreport.ExecutionReport, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	orderID, _ := msg.GetOrderID()
	clOrdID, _ := msg.GetClOrdID()
	execType, _ := msg.GetExecType()
	ordStatus, _ := msg.GetOrdStatus()
	cumQty, _ := msg.GetCumQty()
	leavesQty, _ := msg.GetLeavesQty()
	avgPx, _ := msg.GetAvgPx()
	text, _ := msg.GetText()

	a.logger.Info(context.Background(), "execution report",
		zap.String("order_id", orderID),
		zap.String("cl_ord_id", clOrdID),
		zap.String("exec_type", string(execType)),
		zap.String("ord_status", string(ordStatus)),
		zap.String("cum_qty", cumQty.String()),
		zap.String("leaves_qty", leavesQty.String()),
		zap.String("avg_px", avgPx.String()),
		zap.String("text", text))
	return nil
}

func (a *InitiatorApp) onOrderCancelReject(msg ordercancelreject.OrderCancelReject, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, _ := msg.GetClOrdID()
	reason, _ := msg.GetCxlRejReason()
	text, _ := msg.GetText()
	a.logger.Warn(context.Background(), "cancel rejected",
		zap.String("cl_ord_id", clOrdID),
		zap.String("reason", string(reason)),
		zap.String("text", text))
	return nil
}

func main() {
	var cfgPath string
	var f orderFlags
	flag.StringVar(&cfgPath, "config-file", "./config/fixclient.cfg", "quickfix initiator settings")
	flag.StringVar(&f.symbol, "symbol", "BTCUSDT", "symbol")
	flag.StringVar(&f.side, "side", "buy", "buy or sell")
	flag.StringVar(&f.qty, "qty", "1", "order quantity")
	flag.StringVar(&f.price, "price", "", "limit price, market order when empty")
	flag.StringVar(&f.maxFloor, "max-floor", "", "iceberg display quantity")
	flag.StringVar(&f.account, "account", "momentum", "account, used as strategy id")
	flag.DurationVar(&f.cancelAfter, "cancel-after", 0, "cancel the order after this delay")
	flag.Parse()

	logger := logging.NewLogger(logging.INFO).With(zap.String("service", "fixclient"))
	ctx := context.Background()

	cfg, err := os.Open(cfgPath)
	if err != nil {
		logger.Fatal(ctx, "open config", zap.Error(err))
	}
	defer cfg.Close() // nolint

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		logger.Fatal(ctx, "parse config", zap.Error(err))
	}

	storeFactory := quickfix.NewMemoryStoreFactory()
	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		logger.Fatal(ctx, "log factory", zap.Error(err))
	}
	initiator, err := quickfix.NewInitiator(newInitiatorApp(f, logger), storeFactory, settings, logFactory)
	if err != nil {
		logger.Fatal(ctx, "create initiator", zap.Error(err))
	}
	if err := initiator.Start(); err != nil {
		logger.Fatal(ctx, "start initiator", zap.Error(err))
	}
	defer initiator.Stop()
	logger.Info(ctx, "initiator started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
