// file: pkg/oms/worker/worker.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/joripage/oms-core/pkg/oms/repo"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 10
	defaultMaxWait   = time.Second
)

// Worker persists order events consumed from JetStream: the event log
// row and the latest order snapshot.
type Worker struct {
	order      repo.IOrder
	orderEvent repo.IOrderEvent
	logger     *logging.Logger

	BatchSize int
	MaxWait   time.Duration
}

func NewWorker(r repo.IRepo, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		order:      r.Order(),
		orderEvent: r.OrderEvent(),
		logger:     logger,
		BatchSize:  defaultBatchSize,
		MaxWait:    defaultMaxWait,
	}
}

// StartConsumer pulls from a durable consumer until ctx is done. Messages
// that fail to persist are left unacked for redelivery.
func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	w.logger.Info(ctx, "worker consuming", zap.String("subject", subject), zap.String("durable", durable))
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(w.BatchSize, nats.MaxWait(w.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Warn(ctx, "fetch failed", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := w.HandleMessage(ctx, msg.Data); err != nil {
				w.logger.Error(ctx, "persist event failed", zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

// HandleMessage persists one encoded event. Undecodable payloads are
// logged and dropped so they do not block the stream.
func (w *Worker) HandleMessage(ctx context.Context, data []byte) error {
	var ev model.OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		w.logger.Warn(ctx, "drop undecodable event", zap.Error(err))
		return nil
	}
	return w.handleEvent(ctx, &ev)
}

func (w *Worker) handleEvent(ctx context.Context, ev *model.OrderEvent) error {
	if _, err := w.orderEvent.Create(ctx, ev); err != nil {
		return err
	}
	// rejected requests have no order row
	if ev.OrderID == "" {
		return nil
	}
	return w.order.Upsert(ctx, model.NewOrderRecord(ev))
}
