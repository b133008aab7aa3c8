package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/oms-core/config"
	"github.com/joripage/oms-core/pkg/httpapi"
	redis_wrapper "github.com/joripage/oms-core/pkg/infra/redis"
	kafkawrapper "github.com/joripage/oms-core/pkg/kafka_wrapper"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/marketdata"
	"github.com/joripage/oms-core/pkg/oms"
	fixgateway "github.com/joripage/oms-core/pkg/oms/fix"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/joripage/oms-core/pkg/oms/subscriber"
	"github.com/joripage/oms-core/pkg/venue"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	feedTimeout     = 200 * time.Millisecond
)

type priceFeed interface {
	oms.MarketDataFeed
	venue.PriceSource
}

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level)).With(zap.String("service", cfg.ServiceName))
	undo := zap.ReplaceGlobals(logger.Zap())
	defer undo()
	defer logger.Sync() // nolint

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal(ctx, "oms exited", zap.Error(err))
	}
	logger.Info(ctx, "exited cleanly")
}

func run(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger) error {
	var rdb *redis.Client
	if cfg.Redis != nil && cfg.Redis.ConnectionURL != "" {
		client, err := redis_wrapper.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer client.Close() // nolint
		rdb = client
	}

	feed, err := newFeed(cfg, rdb)
	if err != nil {
		return err
	}

	risk := riskrule.NewEngine(cfg.Risk)
	sim := venue.NewSimulated(cfg.VenueConfig(), feed, logger.With(zap.String("component", "venue")))
	o := oms.NewOMS(sim, risk,
		oms.WithMarketData(feed),
		oms.WithLogger(logger.With(zap.String("component", "oms"))),
		oms.WithSliceInterval(cfg.Execution.SliceInterval),
		oms.WithDefaults(cfg.AlgoConfig()),
		oms.WithHistoryRetention(cfg.Execution.HistoryRetention, time.Minute),
	)
	sim.SetReporter(o.ReportExecution)

	closeSubscribers, err := wireSubscribers(ctx, cfg, o, rdb, logger)
	if err != nil {
		return err
	}
	defer closeSubscribers()

	g, gctx := errgroup.WithContext(ctx)
	o.Start(gctx)
	defer o.Stop()

	g.Go(func() error {
		sim.Run(gctx, cfg.Execution.SweepInterval)
		return nil
	})
	g.Go(func() error {
		runDailyRollover(gctx, risk, logger)
		return nil
	})

	if cfg.Fix.Enabled {
		gw := fixgateway.NewFixGateway(&fixgateway.FixGatewayConfig{
			ConfigFilepath:   cfg.Fix.ConfigFile,
			EnableQueue:      !cfg.Fix.EnableShardQueue,
			EnableShardQueue: cfg.Fix.EnableShardQueue,
			Shards:           cfg.Fix.Shards,
			QueueSize:        cfg.Fix.QueueSize,
		}, fixgateway.WithLogger(logger.With(zap.String("component", "fix"))))
		gw.AddOmsInstance(o)
		if err := gw.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			gw.Stop()
			return nil
		})
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(httpapi.NewOrderHandler(o, risk, logger.With(zap.String("component", "http")))),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info(gctx, "http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info(ctx, "oms started")
	return g.Wait()
}

func newFeed(cfg *config.AppConfig, rdb *redis.Client) (priceFeed, error) {
	switch cfg.MarketData.Source {
	case "redis":
		if rdb == nil {
			return nil, errors.New("market_data.source is redis but redis is not configured")
		}
		return marketdata.NewRedisFeed(rdb, feedTimeout), nil
	case "static":
		feed := marketdata.NewStatic()
		for symbol, price := range cfg.MarketData.LastPrices {
			feed.SetLastPrice(symbol, price)
		}
		return feed, nil
	}
	return nil, fmt.Errorf("unknown market_data.source %q", cfg.MarketData.Source)
}

// wireSubscribers registers the outbound order streams. The returned func
// flushes and closes them.
func wireSubscribers(ctx context.Context, cfg *config.AppConfig, o *oms.OMS, rdb *redis.Client, logger *logging.Logger) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if rdb != nil {
		cache := subscriber.NewOrderCache(rdb, subscriber.DefaultTerminalTTL, logger)
		o.OnOrderUpdate(cache.OnOrderUpdate)
	}

	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	closers = append(closers, func() { _ = nc.Drain() })
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(4096))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := subscriber.EnsureStream(js, cfg.Nats.Stream, []string{cfg.Nats.Stream + ".*"}); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Nats.Stream, err)
	}
	events := subscriber.NewEventPublisher(js, cfg.Nats.Subject, logger)
	o.OnOrderUpdate(events.OnOrderUpdate)

	if brokers := nonEmpty(cfg.Kafka.Brokers); len(brokers) > 0 {
		producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{Brokers: brokers})
		closers = append(closers, func() { _ = producer.Close(context.Background()) })
		fills := subscriber.NewFillPublisher(producer, cfg.Kafka.FillTopic, logger)
		o.OnFill(fills.OnFill)
	} else {
		logger.Warn(ctx, "kafka brokers not configured, fill notifications disabled")
	}

	return closeAll, nil
}

// runDailyRollover resets daily PnL and order counts at each UTC midnight.
func runDailyRollover(ctx context.Context, risk *riskrule.Engine, logger *logging.Logger) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			risk.ResetDaily()
			logger.Info(ctx, "risk daily counters reset")
		}
	}
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
