package main

import (
	"flag"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joripage/oms-core/config"
	"github.com/joripage/oms-core/pkg/infra"
	"github.com/joripage/oms-core/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "file://migration/sql", "Migration source URL")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level))
	undo := zap.ReplaceGlobals(logger.Zap())
	defer undo()

	if cfg.OmsDB == nil || cfg.OmsDB.MigrationConnURL == "" {
		zap.S().Fatal("oms_db.migration_conn_url is required")
	}

	mgTool := infra.GetMigrateTool()
	if err := mgTool.Migrate(source, cfg.OmsDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate failed: %v", err)
	}
}
