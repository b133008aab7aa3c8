package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	orderKeyPrefix  = "oms:order:"
	activeKeyPrefix = "oms:active:"

	DefaultTerminalTTL = 24 * time.Hour
)

var ErrNotCached = errors.New("order not cached")

func orderKey(orderID string) string { return orderKeyPrefix + orderID }

func activeKey(symbol string) string { return activeKeyPrefix + symbol }

// KEYS[1] order hash, KEYS[2] active set of the symbol
// ARGV[1] revision, ARGV[2] snapshot, ARGV[3] "1" if terminal,
// ARGV[4] order id, ARGV[5] ttl seconds
var storeSnapshot = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "revision")
if cur and tonumber(cur) >= tonumber(ARGV[1]) then return 0 end
redis.call("HSET", KEYS[1], "revision", ARGV[1], "data", ARGV[2])
if ARGV[3] == "1" then
	redis.call("SREM", KEYS[2], ARGV[4])
	redis.call("EXPIRE", KEYS[1], ARGV[5])
else
	redis.call("SADD", KEYS[2], ARGV[4])
end
return 1
`)

// OrderCache mirrors order snapshots into Redis for readers outside the
// OMS process. Out-of-order updates are dropped by revision.
type OrderCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
}

func NewOrderCache(rdb redis.Cmdable, terminalTTL time.Duration, logger *logging.Logger) *OrderCache {
	if terminalTTL <= 0 {
		terminalTTL = DefaultTerminalTTL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OrderCache{rdb: rdb, ttl: terminalTTL, logger: logger}
}

func (c *OrderCache) OnOrderUpdate(order model.Order) {
	// rejected requests are not orders
	if order.OrderID == "" {
		return
	}
	ctx := context.Background()
	if err := c.Store(ctx, order); err != nil {
		c.logger.Warn(ctx, "cache order", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

func (c *OrderCache) Store(ctx context.Context, order model.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	terminal := "0"
	if order.IsTerminal() {
		terminal = "1"
	}
	return storeSnapshot.Run(ctx, c.rdb,
		[]string{orderKey(order.OrderID), activeKey(order.Symbol)},
		order.Revision, string(data), terminal, order.OrderID, int64(c.ttl/time.Second),
	).Err()
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (*model.Order, error) {
	data, err := c.rdb.HGet(ctx, orderKey(orderID), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, err
	}
	var order model.Order
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *OrderCache) ActiveOrderIDs(ctx context.Context, symbol string) ([]string, error) {
	return c.rdb.SMembers(ctx, activeKey(symbol)).Result()
}
