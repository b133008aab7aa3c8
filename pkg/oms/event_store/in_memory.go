package eventstore

import (
	"fmt"
	"sync"

	"github.com/joripage/oms-core/pkg/oms/model"
)

type InMemoryEventStore struct {
	mu                  sync.RWMutex
	orders              map[string][]*model.OrderEvent
	latestClientOrderID map[string]string   // OrderID -> current ClientOrderID
	clientOrderChain    map[string]string   // ClientOrderID -> OrigClientOrderID
	orderIDs            map[string]string   // ClientOrderID -> OrderID
	clientOrderIDs      map[string][]string // OrderID -> every ClientOrderID seen
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		orders:              make(map[string][]*model.OrderEvent),
		latestClientOrderID: make(map[string]string),
		clientOrderChain:    make(map[string]string),
		orderIDs:            make(map[string]string),
		clientOrderIDs:      make(map[string][]string),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.OrderEvent) {
	if ev.OrderID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[ev.OrderID] = append(s.orders[ev.OrderID], ev)
	if _, ok := s.latestClientOrderID[ev.OrderID]; !ok {
		s.trackClientOrderChain(ev.OrderID, ev.ClientOrderID, "")
	}
}

func (s *InMemoryEventStore) Events(orderID string) []*model.OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*model.OrderEvent(nil), s.orders[orderID]...)
}

// ClaimOrder indexes a new order's client id and the ids of its planned
// slices in one step. Nothing is indexed when any id already belongs to
// another order.
func (s *InMemoryEventStore) ClaimOrder(orderID, clientOrderID string, childClientOrderIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFree(orderID, append([]string{clientOrderID}, childClientOrderIDs...)); err != nil {
		return err
	}
	s.trackClientOrderChain(orderID, clientOrderID, "")
	for _, id := range childClientOrderIDs {
		s.index(orderID, id)
	}
	return nil
}

// TrackClientOrderChain records clientOrderID as the newest id for orderID,
// chained to origClientOrderID when it replaces one.
func (s *InMemoryEventStore) TrackClientOrderChain(orderID, clientOrderID, origClientOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFree(orderID, []string{clientOrderID}); err != nil {
		return err
	}
	s.trackClientOrderChain(orderID, clientOrderID, origClientOrderID)
	return nil
}

func (s *InMemoryEventStore) trackClientOrderChain(orderID, clientOrderID, origClientOrderID string) {
	if clientOrderID == "" || !s.index(orderID, clientOrderID) {
		return
	}
	s.latestClientOrderID[orderID] = clientOrderID

	if origClientOrderID != "" {
		s.clientOrderChain[clientOrderID] = origClientOrderID
	}
}

// TrackChildOrders indexes slice ids under their parent order without
// touching the parent's latest client order id. Either every id is
// indexed or, on a conflict, none.
func (s *InMemoryEventStore) TrackChildOrders(orderID string, childClientOrderIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFree(orderID, childClientOrderIDs); err != nil {
		return err
	}
	for _, id := range childClientOrderIDs {
		s.index(orderID, id)
	}
	return nil
}

func (s *InMemoryEventStore) checkFree(orderID string, clientOrderIDs []string) error {
	for _, id := range clientOrderIDs {
		if owner, ok := s.orderIDs[id]; ok && owner != orderID {
			return fmt.Errorf("%w: %s", ErrClientOrderIDInUse, id)
		}
	}
	return nil
}

// index reports false when clientOrderID already belongs to another order.
func (s *InMemoryEventStore) index(orderID, clientOrderID string) bool {
	if clientOrderID == "" {
		return false
	}
	if owner, ok := s.orderIDs[clientOrderID]; ok {
		return owner == orderID
	}
	s.orderIDs[clientOrderID] = orderID
	s.clientOrderIDs[orderID] = append(s.clientOrderIDs[orderID], clientOrderID)
	return true
}

func (s *InMemoryEventStore) GetLatestClientOrderID(orderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestClientOrderID[orderID]
}

// GetOrigClientOrderID returns the immediate OrigClientOrderID for a given ClientOrderID
func (s *InMemoryEventStore) GetOrigClientOrderID(clientOrderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clientOrderChain[clientOrderID]
}

func (s *InMemoryEventStore) GetOrderID(clientOrderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.orderIDs[clientOrderID]
}

// ReconstructChain walks backward to get full chain of ClientOrderIDs
func (s *InMemoryEventStore) ReconstructChain(clientOrderID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []string
	seen := make(map[string]bool)
	curr := clientOrderID
	for curr != "" && !seen[curr] {
		seen[curr] = true
		chain = append(chain, curr)
		curr = s.clientOrderChain[curr]
	}
	return chain
}

func (s *InMemoryEventStore) DeleteChainByOrderID(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.clientOrderIDs[orderID] {
		delete(s.orderIDs, id)
		delete(s.clientOrderChain, id)
	}
	delete(s.clientOrderIDs, orderID)
	delete(s.latestClientOrderID, orderID)
	delete(s.orders, orderID)
}
