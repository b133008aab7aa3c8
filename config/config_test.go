package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://broker:4222")
	path := writeConfig(t, `
risk:
  position_limits:
    BTCUSDT: "10"
  daily_loss_limits:
    momentum: 1000
  price_bands:
    BTCUSDT:
      floor: "10000"
      ceil: "200000"
execution:
  slice_interval: 50ms
  rest_limit_orders: true
nats:
  url: ${TEST_NATS_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Risk.PositionLimits["BTCUSDT"].Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.Risk.DailyLossLimits["momentum"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.Risk.PriceBands["BTCUSDT"].Ceil.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 50*time.Millisecond, cfg.Execution.SliceInterval)
	assert.True(t, cfg.Execution.RestLimitOrders)
	assert.Equal(t, "nats://broker:4222", cfg.Nats.URL)

	// defaults
	assert.Equal(t, "oms", cfg.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Risk.ConcentrationCeiling.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 100, cfg.Risk.MaxOrdersPerDay)
	assert.Equal(t, 300*time.Second, cfg.Execution.DefaultTWAPDuration)
	assert.True(t, cfg.Execution.DefaultIcebergRatio.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.Execution.CommissionRate.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, cfg.Execution.SimulatedPrice.Equal(decimal.NewFromInt(45000)))
	assert.Equal(t, "static", cfg.MarketData.Source)
	assert.Equal(t, "oms.fills", cfg.Kafka.FillTopic)
	assert.Equal(t, "ORDERS.events", cfg.Nats.Subject)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	algoCfg := cfg.AlgoConfig()
	assert.Equal(t, cfg.Execution.DefaultTWAPDuration, algoCfg.TWAPDuration)

	venueCfg := cfg.VenueConfig()
	assert.True(t, venueCfg.RestLimitOrders)
	assert.True(t, venueCfg.FallbackPrice.Equal(cfg.Execution.SimulatedPrice))
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "service_name: oms-test\n")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "oms-test", cfg.ServiceName)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "risk: [unclosed"))
	assert.Error(t, err)
}
