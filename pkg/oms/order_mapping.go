package oms

import (
	"context"
	"sort"
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"go.uber.org/zap"
)

func (s *OMS) getState(orderID string) *orderState {
	if orderID == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.active[orderID]; ok {
		return st
	}
	return s.history[orderID]
}

// archive moves a terminal order from the active registry to history.
func (s *OMS) archive(st *orderState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, st.order.OrderID)
	s.history[st.order.OrderID] = st
	st.archivedAt = s.now()
}

func (st *orderState) snapshot() model.Order {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.order.Snapshot()
}

// GetOrder looks in the active registry first, then history.
func (s *OMS) GetOrder(orderID string) *model.Order {
	st := s.getState(orderID)
	if st == nil {
		return nil
	}
	snap := st.snapshot()
	return &snap
}

// GetOrderByClientOrderID resolves a parent, slice or replacement client
// order id.
func (s *OMS) GetOrderByClientOrderID(clientOrderID string) *model.Order {
	return s.GetOrder(s.eventstore.GetOrderID(clientOrderID))
}

// GetActiveOrders returns working orders, optionally for one symbol,
// oldest first.
func (s *OMS) GetActiveOrders(symbol string) []model.Order {
	s.mu.RLock()
	states := make([]*orderState, 0, len(s.active))
	for _, st := range s.active {
		states = append(states, st)
	}
	s.mu.RUnlock()

	orders := make([]model.Order, 0, len(states))
	for _, st := range states {
		o := st.snapshot()
		if o.IsTerminal() || (symbol != "" && o.Symbol != symbol) {
			continue
		}
		orders = append(orders, o)
	}
	sortByCreated(orders)
	return orders
}

// GetHistory returns terminal orders, oldest first.
func (s *OMS) GetHistory() []model.Order {
	s.mu.RLock()
	states := make([]*orderState, 0, len(s.history))
	for _, st := range s.history {
		states = append(states, st)
	}
	s.mu.RUnlock()

	orders := make([]model.Order, 0, len(states))
	for _, st := range states {
		orders = append(orders, st.snapshot())
	}
	sortByCreated(orders)
	return orders
}

func (s *OMS) allOrders() []model.Order {
	s.mu.RLock()
	states := make([]*orderState, 0, len(s.active)+len(s.history))
	for _, st := range s.active {
		states = append(states, st)
	}
	for _, st := range s.history {
		states = append(states, st)
	}
	s.mu.RUnlock()

	orders := make([]model.Order, 0, len(states))
	for _, st := range states {
		orders = append(orders, st.snapshot())
	}
	return orders
}

func sortByCreated(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedTime.Equal(orders[j].CreatedTime) {
			return orders[i].OrderID < orders[j].OrderID
		}
		return orders[i].CreatedTime.Before(orders[j].CreatedTime)
	})
}

func (s *OMS) startCleaner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// cleanup drops history entries older than the retention window together
// with their client order id chains.
func (s *OMS) cleanup(ctx context.Context) {
	cutoff := s.now().Add(-s.historyRetention)

	s.mu.Lock()
	var purged []string
	for id, st := range s.history {
		if st.archivedAt.Before(cutoff) {
			delete(s.history, id)
			purged = append(purged, id)
		}
	}
	s.mu.Unlock()

	s.cbMu.RLock()
	cbs := append([]PurgeFunc(nil), s.purgeCallbacks...)
	s.cbMu.RUnlock()

	for _, id := range purged {
		s.eventstore.DeleteChainByOrderID(id)
		for _, cb := range cbs {
			s.safeCall(ctx, "purge", id, func() { cb(id) })
		}
	}
	if len(purged) > 0 {
		s.logger.Debug(ctx, "history purged", zap.Int("orders", len(purged)))
	}
}
