package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	postgres_wrapper "github.com/joripage/oms-core/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/oms-core/pkg/infra/redis"
	"github.com/joripage/oms-core/pkg/oms/algo"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/joripage/oms-core/pkg/venue"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	Log         LogConfig                        `yaml:"log"`
	Risk        riskrule.Config                  `yaml:"risk"`
	Execution   ExecutionConfig                  `yaml:"execution"`
	MarketData  MarketDataConfig                 `yaml:"market_data"`
	OmsDB       *postgres_wrapper.PostgresConfig `yaml:"oms_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig                      `yaml:"kafka"`
	Nats        NatsConfig                       `yaml:"nats"`
	Fix         FixConfig                        `yaml:"fix"`
	HTTP        HTTPConfig                       `yaml:"http"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ExecutionConfig struct {
	// SliceInterval is the wall-clock spacing of TWAP/VWAP slices.
	SliceInterval       time.Duration   `yaml:"slice_interval"`
	DefaultTWAPDuration time.Duration   `yaml:"default_twap_duration"`
	DefaultIcebergRatio decimal.Decimal `yaml:"default_iceberg_ratio"`
	CommissionRate      decimal.Decimal `yaml:"commission_rate"`
	SimulatedPrice      decimal.Decimal `yaml:"simulated_price"`
	RestLimitOrders     bool            `yaml:"rest_limit_orders"`
	SweepInterval       time.Duration   `yaml:"sweep_interval"`
	HistoryRetention    time.Duration   `yaml:"history_retention"`
}

type MarketDataConfig struct {
	// Source is "redis" or "static".
	Source     string                     `yaml:"source"`
	LastPrices map[string]decimal.Decimal `yaml:"last_prices"`
}

type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	FillTopic string   `yaml:"fill_topic"`
	GroupID   string   `yaml:"group_id"`
	DLQTopic  string   `yaml:"dlq_topic"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

type FixConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ConfigFile       string `yaml:"config_file"`
	EnableShardQueue bool   `yaml:"enable_shard_queue"`
	Shards           int    `yaml:"shards"`
	QueueSize        int    `yaml:"queue_size"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ApplyDefaults fills every zero value the services rely on.
func (c *AppConfig) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "oms"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Risk.ConcentrationCeiling.IsZero() {
		c.Risk.ConcentrationCeiling = decimal.RequireFromString(riskrule.DefaultConcentrationCeiling)
	}
	if c.Risk.MaxOrdersPerDay <= 0 {
		c.Risk.MaxOrdersPerDay = riskrule.DefaultMaxOrdersPerDay
	}

	e := &c.Execution
	if e.SliceInterval <= 0 {
		e.SliceInterval = algo.SliceUnit
	}
	if e.DefaultTWAPDuration <= 0 {
		e.DefaultTWAPDuration = algo.DefaultTWAPDuration
	}
	if !e.DefaultIcebergRatio.IsPositive() {
		e.DefaultIcebergRatio = decimal.RequireFromString(algo.DefaultIcebergRatio)
	}
	if !e.CommissionRate.IsPositive() {
		e.CommissionRate = decimal.RequireFromString(venue.DefaultCommissionRate)
	}
	if !e.SimulatedPrice.IsPositive() {
		e.SimulatedPrice = decimal.RequireFromString(venue.DefaultFallbackPrice)
	}
	if e.SweepInterval <= 0 {
		e.SweepInterval = time.Second
	}

	if c.MarketData.Source == "" {
		c.MarketData.Source = "static"
	}
	if c.Kafka.FillTopic == "" {
		c.Kafka.FillTopic = "oms.fills"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "oms-notifier"
	}
	if c.Nats.URL == "" {
		c.Nats.URL = "nats://127.0.0.1:4222"
	}
	if c.Nats.Stream == "" {
		c.Nats.Stream = "ORDERS"
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = "ORDERS.events"
	}
	if c.Nats.Durable == "" {
		c.Nats.Durable = "order_worker"
	}
	if c.Fix.ConfigFile == "" {
		c.Fix.ConfigFile = "./config/fixserver.cfg"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// AlgoConfig is the fallback set for algorithm parameters.
func (c *AppConfig) AlgoConfig() algo.Config {
	return algo.Config{
		TWAPDuration: c.Execution.DefaultTWAPDuration,
		IcebergRatio: c.Execution.DefaultIcebergRatio,
	}
}

func (c *AppConfig) VenueConfig() venue.Config {
	return venue.Config{
		CommissionRate:  c.Execution.CommissionRate,
		FallbackPrice:   c.Execution.SimulatedPrice,
		RestLimitOrders: c.Execution.RestLimitOrders,
	}
}

// Load load config from file and environment variables. A .env file in
// the working directory, if any, is loaded first so the YAML can
// reference its variables.
func Load(filePath string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}
	cfg.ApplyDefaults()

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
