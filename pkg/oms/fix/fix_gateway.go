package fixgateway

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FixGateway accepts FIX 4.4 order flow and drives the OMS with it.
// Order updates come back as ExecutionReports on the session that sent
// the NewOrderSingle.
type FixGateway struct {
	cfg         *FixGatewayConfig
	app         *Application
	acceptor    *quickfix.Acceptor
	omsInstance oms.IOMS
	logger      *logging.Logger
	send        func(m quickfix.Messagable, sessionID quickfix.SessionID) error

	// sessionMapping and clOrdIDMapping entries live until the OMS purges
	// the order from history.
	requestMapping sync.Map // ClOrdID -> quickfix.SessionID, until the first update
	sessionMapping sync.Map // OrderID -> *orderSession
	clOrdIDMapping sync.Map // ClOrdID -> OrderID
	pendingMapping sync.Map // OrderID -> *pendingRequest
}

type FixGatewayConfig struct {
	ConfigFilepath   string
	EnableQueue      bool
	EnableShardQueue bool
	Shards           int
	QueueSize        int
}

type Option func(*FixGateway)

func WithLogger(l *logging.Logger) Option {
	return func(s *FixGateway) { s.logger = l }
}

// WithSender replaces quickfix.SendToTarget, e.g. to capture reports.
func WithSender(send func(m quickfix.Messagable, sessionID quickfix.SessionID) error) Option {
	return func(s *FixGateway) { s.send = send }
}

func NewFixGateway(cfg *FixGatewayConfig, opts ...Option) *FixGateway {
	s := &FixGateway{
		cfg:    cfg,
		logger: logging.NewNop(),
		send:   quickfix.SendToTarget,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.app = newApplication(cfg, s, s.logger)
	return s
}

// AddOmsInstance binds the OMS and subscribes to its order updates and
// history purges.
func (s *FixGateway) AddOmsInstance(o oms.IOMS) {
	s.omsInstance = o
	o.OnOrderUpdate(s.OnOrderUpdate)
	o.OnOrderPurged(s.OnOrderPurged)
}

// Start opens the acceptor described by the quickfix settings file.
func (s *FixGateway) Start(ctx context.Context) error {
	cfg, err := os.Open(s.cfg.ConfigFilepath)
	if err != nil {
		return fmt.Errorf("error opening %v, %w", s.cfg.ConfigFilepath, err)
	}
	defer cfg.Close() // nolint

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		return fmt.Errorf("error reading cfg: %w", err)
	}
	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		return fmt.Errorf("unable to create log factory: %w", err)
	}
	acceptor, err := quickfix.NewAcceptor(s.app, quickfix.NewMemoryStoreFactory(), settings, logFactory)
	if err != nil {
		return fmt.Errorf("unable to create acceptor: %w", err)
	}
	if err := acceptor.Start(); err != nil {
		return fmt.Errorf("unable to start FIX acceptor: %w", err)
	}
	s.acceptor = acceptor
	s.logger.Info(ctx, "fix acceptor started", zap.String("config", s.cfg.ConfigFilepath))
	return nil
}

func (s *FixGateway) Stop() {
	if s.acceptor != nil {
		s.acceptor.Stop()
	}
	s.app.stop()
}

func (s *FixGateway) AddOrder(ctx context.Context, newOrderSingle *NewOrderSingle) {
	s.AddRequestToMap(newOrderSingle.ClOrdID, newOrderSingle.SessionID)
	s.omsInstance.Submit(ctx, toOrderRequest(newOrderSingle))
}

func (s *FixGateway) CancelOrder(ctx context.Context, req *OrderCancelRequest) {
	orderID := s.resolveOrderID(req.OrigClOrdID, req.OrderID)
	if orderID == "" {
		s.reject(ctx, req.SessionID, newCancelReject("", req.ClOrdID, req.OrigClOrdID,
			enum.OrdStatus_REJECTED, enum.CxlRejResponseTo_ORDER_CANCEL_REQUEST,
			enum.CxlRejReason_UNKNOWN_ORDER, "unknown order"))
		return
	}
	s.ensureSession(orderID, req.SessionID, req.OrigClOrdID)

	s.pendingMapping.Store(orderID, &pendingRequest{kind: requestCancel, clOrdID: req.ClOrdID, origClOrdID: req.OrigClOrdID})
	if s.omsInstance.Cancel(ctx, orderID) {
		return
	}
	s.pendingMapping.Delete(orderID)
	s.reject(ctx, req.SessionID, newCancelReject(orderID, req.ClOrdID, req.OrigClOrdID,
		s.currentStatus(orderID), enum.CxlRejResponseTo_ORDER_CANCEL_REQUEST,
		enum.CxlRejReason_TOO_LATE_TO_CANCEL, "order is already closed"))
}

// ModifyOrder amends quantity and/or price in place. A zero OrderQty or
// Price on the request leaves that attribute unchanged.
func (s *FixGateway) ModifyOrder(ctx context.Context, req *OrderCancelReplaceRequest) {
	orderID := s.resolveOrderID(req.OrigClOrdID, req.OrderID)
	if orderID == "" {
		s.reject(ctx, req.SessionID, newCancelReject("", req.ClOrdID, req.OrigClOrdID,
			enum.OrdStatus_REJECTED, enum.CxlRejResponseTo_ORDER_CANCEL_REPLACE_REQUEST,
			enum.CxlRejReason_UNKNOWN_ORDER, "unknown order"))
		return
	}
	s.ensureSession(orderID, req.SessionID, req.OrigClOrdID)

	var newQty, newPrice *decimal.Decimal
	if req.OrderQty.IsPositive() {
		newQty = &req.OrderQty
	}
	if req.Price.IsPositive() {
		newPrice = &req.Price
	}

	s.pendingMapping.Store(orderID, &pendingRequest{kind: requestReplace, clOrdID: req.ClOrdID, origClOrdID: req.OrigClOrdID})
	if s.omsInstance.Modify(ctx, orderID, newQty, newPrice) {
		return
	}
	s.pendingMapping.Delete(orderID)
	s.reject(ctx, req.SessionID, newCancelReject(orderID, req.ClOrdID, req.OrigClOrdID,
		s.currentStatus(orderID), enum.CxlRejResponseTo_ORDER_CANCEL_REPLACE_REQUEST,
		enum.CxlRejReason_OTHER, "order cannot be modified"))
}

// OnOrderUpdate renders every update of a FIX-owned order as an
// ExecutionReport. Stale revisions are dropped.
func (s *FixGateway) OnOrderUpdate(order model.Order) {
	if order.OrderID == "" {
		v, ok := s.requestMapping.LoadAndDelete(order.ClientOrderID)
		if !ok {
			return
		}
		report := newExecutionReport(&order, enum.ExecType_REJECTED, order.ClientOrderID, "")
		s.deliver(order.ClientOrderID, report, v.(quickfix.SessionID))
		return
	}

	sess := s.session(&order)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if order.Revision <= sess.revision {
		return
	}
	sess.revision = order.Revision
	newFill := len(order.Fills) > sess.fills
	sess.fills = len(order.Fills)

	et := execType(&order, newFill)
	clOrdID, origClOrdID := sess.clOrdID, ""
	if p := s.takePending(&order); p != nil {
		clOrdID, origClOrdID = p.clOrdID, p.origClOrdID
		sess.clOrdID = p.clOrdID
		sess.clOrdIDs = append(sess.clOrdIDs, p.clOrdID)
		s.clOrdIDMapping.Store(p.clOrdID, order.OrderID)
		if p.kind == requestReplace {
			et = enum.ExecType_REPLACED
		}
	}

	// sent under the session lock so reports leave in revision order
	s.deliver(order.OrderID, newExecutionReport(&order, et, clOrdID, origClOrdID), sess.sessionID)
}

func (s *FixGateway) ensureSession(orderID string, sessionID quickfix.SessionID, origClOrdID string) {
	if _, ok := s.sessionMapping.Load(orderID); !ok {
		s.adopt(orderID, sessionID, origClOrdID)
	}
}

func (s *FixGateway) currentStatus(orderID string) enum.OrdStatus {
	if order := s.omsInstance.GetOrder(orderID); order != nil {
		return ordStatus(order)
	}
	return enum.OrdStatus_REJECTED
}

func (s *FixGateway) reject(ctx context.Context, sessionID quickfix.SessionID, msg quickfix.Messagable) {
	if err := s.send(msg, sessionID); err != nil {
		s.logger.Error(ctx, "send cancel reject", zap.String("session", sessionID.String()), zap.Error(err))
	}
}

func (s *FixGateway) deliver(id string, msg quickfix.Messagable, sessionID quickfix.SessionID) {
	if err := s.send(msg, sessionID); err != nil {
		s.logger.Error(context.Background(), "send execution report",
			zap.String("id", id), zap.String("session", sessionID.String()), zap.Error(err))
	}
}
