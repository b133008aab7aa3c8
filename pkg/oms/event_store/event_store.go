package eventstore

import (
	"errors"

	"github.com/joripage/oms-core/pkg/oms/model"
)

var ErrClientOrderIDInUse = errors.New("duplicate client order id")

// EventStore keeps the per-order event log and the client order id index:
// which order a client id (parent, child slice or replacement) belongs to.
type EventStore interface {
	AddEvent(ev *model.OrderEvent)
	Events(orderID string) []*model.OrderEvent
	ClaimOrder(orderID, clientOrderID string, childClientOrderIDs []string) error
	TrackClientOrderChain(orderID, clientOrderID, origClientOrderID string) error
	TrackChildOrders(orderID string, childClientOrderIDs []string) error
	GetLatestClientOrderID(orderID string) string
	GetOrigClientOrderID(clientOrderID string) string
	GetOrderID(clientOrderID string) string
	ReconstructChain(clientOrderID string) []string
	DeleteChainByOrderID(orderID string)
}
