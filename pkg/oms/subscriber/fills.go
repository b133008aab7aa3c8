package subscriber

import (
	"context"
	"time"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultFillTopic = "oms.fills"

// FillMessage is the payload of the fill notification topic.
type FillMessage struct {
	OrderID       string            `json:"order_id"`
	ClientOrderID string            `json:"client_order_id"`
	StrategyID    string            `json:"strategy_id"`
	Symbol        string            `json:"symbol"`
	Side          model.OrderSide   `json:"side"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Price         decimal.Decimal   `json:"price"`
	FilledQty     decimal.Decimal   `json:"filled_qty"`
	AvgFillPrice  decimal.Decimal   `json:"avg_fill_price"`
	Status        model.OrderStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

// FillPublisher forwards fills to Kafka, keyed by order id so a parent's
// fills stay ordered within a partition.
type FillPublisher struct {
	producer jsonPublisher
	topic    string
	logger   *logging.Logger
}

func NewFillPublisher(producer jsonPublisher, topic string, logger *logging.Logger) *FillPublisher {
	if topic == "" {
		topic = DefaultFillTopic
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FillPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *FillPublisher) OnFill(order model.Order, qty, price decimal.Decimal) {
	msg := FillMessage{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		StrategyID:    order.StrategyID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      qty,
		Price:         price,
		FilledQty:     order.FilledQuantity,
		AvgFillPrice:  order.AvgFillPrice,
		Status:        order.Status,
		Timestamp:     order.UpdatedTime,
	}
	headers := map[string]string{"event_id": model.NewEventID(order.OrderID, order.Revision)}

	ctx := context.Background()
	if err := p.producer.PublishJSON(ctx, p.topic, order.OrderID, msg, headers); err != nil {
		p.logger.Error(ctx, "publish fill",
			zap.String("order_id", order.OrderID),
			zap.String("quantity", qty.String()),
			zap.Error(err))
	}
}
