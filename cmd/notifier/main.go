package main

import (
	"context"
	"encoding/json"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/oms-core/config"
	kafkawrapper "github.com/joripage/oms-core/pkg/kafka_wrapper"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/subscriber"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level)).With(zap.String("service", "fill-notifier"))
	undo := zap.ReplaceGlobals(logger.Zap())
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cg, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.GroupID,
		Topic:    cfg.Kafka.FillTopic,
		DLQTopic: cfg.Kafka.DLQTopic,
	})
	if err != nil {
		logger.Fatal(ctx, "init consumer group failed", zap.Error(err))
	}
	defer cg.Close() // nolint

	err = cg.Run(ctx, func(ctx context.Context, msgs []kafkawrapper.Message) error {
		for _, m := range msgs {
			var fill subscriber.FillMessage
			if err := json.Unmarshal(m.Value, &fill); err != nil {
				logger.Warn(ctx, "drop undecodable fill", zap.Int64("offset", m.Offset), zap.Error(err))
				continue
			}
			logger.Info(ctx, "fill",
				zap.String("event_id", m.Headers["event_id"]),
				zap.String("order_id", fill.OrderID),
				zap.String("symbol", fill.Symbol),
				zap.String("side", string(fill.Side)),
				zap.String("quantity", fill.Quantity.String()),
				zap.String("price", fill.Price.String()),
				zap.String("filled", fill.FilledQty.String()),
				zap.String("status", string(fill.Status)))
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error(ctx, "consumer stopped", zap.Error(err))
	}
}
