package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joripage/oms-core/config"
	"github.com/joripage/oms-core/pkg/infra"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/repo"
	"github.com/joripage/oms-core/pkg/oms/subscriber"
	"github.com/joripage/oms-core/pkg/oms/worker"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	var configFile, migrationSource string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&migrationSource, "migration-source", "file://migration/sql", "Migration source URL")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level)).With(zap.String("service", "order-worker"))
	undo := zap.ReplaceGlobals(logger.Zap())
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OmsDB == nil {
		logger.Fatal(ctx, "oms_db is not configured")
	}

	// init db, schema first
	db, err := infra.GetMigrateTool().ConnectAndMigrate(cfg.OmsDB, migrationSource)
	if err != nil {
		logger.Fatal(ctx, "init db failed", zap.Error(err))
	}

	// NATS
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name("order-worker"))
	if err != nil {
		logger.Fatal(ctx, "connect nats failed", zap.Error(err))
	}
	defer nc.Drain() // nolint

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal(ctx, "jetstream failed", zap.Error(err))
	}
	if err := subscriber.EnsureStream(js, cfg.Nats.Stream, []string{cfg.Nats.Stream + ".*"}); err != nil {
		logger.Fatal(ctx, "ensure stream failed", zap.Error(err))
	}

	w := worker.NewWorker(repo.NewRepo(db), logger)
	if err := w.StartConsumer(ctx, js, cfg.Nats.Subject, cfg.Nats.Durable); err != nil {
		logger.Error(ctx, "worker stopped", zap.Error(err))
	}
}
