package subscriber

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	DefaultStream  = "ORDERS"
	DefaultSubject = "ORDERS.events"

	ackTimeout = 5 * time.Second
)

// asyncPublisher is the part of nats.JetStreamContext used here.
type asyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// EnsureStream creates the order event stream if it does not exist yet.
func EnsureStream(js nats.JetStreamContext, name string, subjects []string) error {
	if _, err := js.StreamInfo(name); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	return err
}

// EventPublisher streams every order update to JetStream for the
// persistence worker. Events are deduplicated on EventID.
type EventPublisher struct {
	js      asyncPublisher
	subject string
	logger  *logging.Logger
}

func NewEventPublisher(js asyncPublisher, subject string, logger *logging.Logger) *EventPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventPublisher{js: js, subject: subject, logger: logger}
}

// OnOrderUpdate never blocks on the broker; acks are checked in the
// background.
func (p *EventPublisher) OnOrderUpdate(order model.Order) {
	ev := model.NewOrderEvent(order)
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error(context.Background(), "marshal order event", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}

	future, err := p.js.PublishAsync(p.subject, data, nats.MsgId(ev.EventID))
	if err != nil {
		p.logger.Error(context.Background(), "publish order event", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}
	go p.awaitAck(ev.EventID, future)
}

func (p *EventPublisher) awaitAck(eventID string, future nats.PubAckFuture) {
	select {
	case <-future.Ok():
	case err := <-future.Err():
		p.logger.Warn(context.Background(), "order event not acked", zap.String("event_id", eventID), zap.Error(err))
	case <-time.After(ackTimeout):
		p.logger.Warn(context.Background(), "order event ack timeout", zap.String("event_id", eventID))
	}
}
