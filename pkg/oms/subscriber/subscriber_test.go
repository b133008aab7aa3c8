package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOrder(rev int, status model.OrderStatus) model.Order {
	return model.Order{
		OrderID:        "O1",
		ClientOrderID:  "C1",
		Symbol:         "BTC",
		Side:           model.OrderSideBuy,
		Type:           model.OrderTypeLimit,
		Quantity:       d("2"),
		Price:          d("100"),
		Status:         status,
		FilledQuantity: d("1"),
		AvgFillPrice:   d("100"),
		Revision:       rev,
		UpdatedTime:    time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
}

type ackFuture struct {
	ok  chan *nats.PubAck
	err chan error
}

func (f ackFuture) Ok() <-chan *nats.PubAck { return f.ok }
func (f ackFuture) Err() <-chan error       { return f.err }
func (f ackFuture) Msg() *nats.Msg          { return nil }

type fakeJetStream struct {
	mu        sync.Mutex
	published map[string][]byte
	fail      error
}

func (js *fakeJetStream) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if js.fail != nil {
		return nil, js.fail
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	js.published[subj] = data
	f := ackFuture{ok: make(chan *nats.PubAck, 1), err: make(chan error, 1)}
	f.ok <- &nats.PubAck{Stream: DefaultStream, Sequence: 1}
	return f, nil
}

func TestEventPublisher(t *testing.T) {
	js := &fakeJetStream{published: map[string][]byte{}}
	p := NewEventPublisher(js, "", nil)

	p.OnOrderUpdate(testOrder(4, model.OrderStatusPartiallyFilled))

	js.mu.Lock()
	data := js.published[DefaultSubject]
	js.mu.Unlock()
	require.NotNil(t, data)

	var ev model.OrderEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "O1-4", ev.EventID)
	assert.Equal(t, model.OrderStatusPartiallyFilled, ev.Status)
	assert.True(t, ev.FilledQty.Equal(d("1")))

	// broker errors are logged, never surfaced to the OMS
	js.fail = errors.New("no responders")
	assert.NotPanics(t, func() { p.OnOrderUpdate(testOrder(5, model.OrderStatusFilled)) })
}

type fakeProducer struct {
	topic string
	key   string
	value any
	hdrs  map[string]string
}

func (f *fakeProducer) PublishJSON(_ context.Context, topic, key string, v any, headers map[string]string) error {
	f.topic, f.key, f.value, f.hdrs = topic, key, v, headers
	return nil
}

func TestFillPublisher(t *testing.T) {
	prod := &fakeProducer{}
	p := NewFillPublisher(prod, "", nil)

	p.OnFill(testOrder(3, model.OrderStatusPartiallyFilled), d("1"), d("100"))

	assert.Equal(t, DefaultFillTopic, prod.topic)
	assert.Equal(t, "O1", prod.key)
	assert.Equal(t, "O1-3", prod.hdrs["event_id"])
	msg, ok := prod.value.(FillMessage)
	require.True(t, ok)
	assert.True(t, msg.Quantity.Equal(d("1")))
	assert.Equal(t, model.OrderStatusPartiallyFilled, msg.Status)
}

func TestOrderCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewOrderCache(rdb, time.Hour, nil)
	ctx := context.Background()

	c.OnOrderUpdate(testOrder(1, model.OrderStatusPending))
	c.OnOrderUpdate(testOrder(3, model.OrderStatusPartiallyFilled))
	c.OnOrderUpdate(testOrder(2, model.OrderStatusSubmitted))

	got, err := c.Get(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Revision)
	assert.Equal(t, model.OrderStatusPartiallyFilled, got.Status)

	ids, err := c.ActiveOrderIDs(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"O1"}, ids)

	c.OnOrderUpdate(testOrder(4, model.OrderStatusCancelled))
	ids, err = c.ActiveOrderIDs(ctx, "BTC")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, time.Hour, mr.TTL(orderKey("O1")))

	rejected := testOrder(1, model.OrderStatusRejected)
	rejected.OrderID = ""
	c.OnOrderUpdate(rejected)
	_, err = c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrNotCached)
}
