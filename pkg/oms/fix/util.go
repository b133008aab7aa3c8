package fixgateway

import (
	"sync"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/quickfixgo/quickfix"
)

type requestKind int

const (
	requestCancel requestKind = iota
	requestReplace
)

// pendingRequest is a cancel or replace waiting for the order update that
// acknowledges it.
type pendingRequest struct {
	kind        requestKind
	clOrdID     string
	origClOrdID string
}

// orderSession ties an OMS order to the FIX session that owns it.
type orderSession struct {
	mu        sync.Mutex
	sessionID quickfix.SessionID
	root      string // ClOrdID of the NewOrderSingle
	clOrdID   string // latest ClOrdID in the replace chain
	clOrdIDs  []string
	revision  int
	fills     int
}

func (s *FixGateway) AddRequestToMap(clOrdID string, sessionID quickfix.SessionID) {
	s.requestMapping.Store(clOrdID, sessionID)
}

// session returns the owner of the order, claiming a waiting
// NewOrderSingle on the first update.
func (s *FixGateway) session(order *model.Order) *orderSession {
	if v, ok := s.sessionMapping.Load(order.OrderID); ok {
		return v.(*orderSession)
	}
	v, ok := s.requestMapping.LoadAndDelete(order.ClientOrderID)
	if !ok {
		return nil
	}
	return s.adopt(order.OrderID, v.(quickfix.SessionID), order.ClientOrderID)
}

func (s *FixGateway) adopt(orderID string, sessionID quickfix.SessionID, clOrdID string) *orderSession {
	sess := &orderSession{sessionID: sessionID, root: clOrdID, clOrdID: clOrdID, clOrdIDs: []string{clOrdID}, revision: -1}
	actual, _ := s.sessionMapping.LoadOrStore(orderID, sess)
	s.clOrdIDMapping.Store(clOrdID, orderID)
	return actual.(*orderSession)
}

// OnOrderPurged forgets an order the OMS no longer keeps.
func (s *FixGateway) OnOrderPurged(orderID string) {
	s.pendingMapping.Delete(orderID)
	v, ok := s.sessionMapping.LoadAndDelete(orderID)
	if !ok {
		return
	}
	sess := v.(*orderSession)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, id := range sess.clOrdIDs {
		s.clOrdIDMapping.CompareAndDelete(id, orderID)
	}
}

// resolveOrderID finds the order a cancel or replace refers to: by
// OrderID (37) when given, else through the ClOrdID chain.
func (s *FixGateway) resolveOrderID(origClOrdID, orderID string) string {
	if orderID != "" && s.omsInstance.GetOrder(orderID) != nil {
		return orderID
	}
	if v, ok := s.clOrdIDMapping.Load(origClOrdID); ok {
		return v.(string)
	}
	if order := s.omsInstance.GetOrderByClientOrderID(origClOrdID); order != nil {
		return order.OrderID
	}
	return ""
}

// rootClOrdID maps any ClOrdID of a replace chain to its first one.
func (s *FixGateway) rootClOrdID(clOrdID string) string {
	v, ok := s.clOrdIDMapping.Load(clOrdID)
	if !ok {
		return clOrdID
	}
	if sess, ok := s.sessionMapping.Load(v.(string)); ok {
		return sess.(*orderSession).root
	}
	return clOrdID
}

func (s *FixGateway) takePending(order *model.Order) *pendingRequest {
	v, ok := s.pendingMapping.Load(order.OrderID)
	if !ok {
		return nil
	}
	p := v.(*pendingRequest)
	switch p.kind {
	case requestCancel:
		if order.Status != model.OrderStatusCancelled {
			return nil
		}
	case requestReplace:
		// a successful replace is always acknowledged by an unfilled snapshot
		if order.IsTerminal() || order.FilledQuantity.IsPositive() {
			return nil
		}
	}
	if !s.pendingMapping.CompareAndDelete(order.OrderID, v) {
		return nil
	}
	return p
}
