package kafkawrapper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafka.Message{Topic: "fills", Offset: int64(i), Key: []byte(v), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestPublishJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w}

	err := p.PublishJSON(context.Background(), "fills", "O1", map[string]string{"qty": "1.5"}, map[string]string{"source": "oms"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "fills", w.msgs[0].Topic)
	assert.Equal(t, []byte("O1"), w.msgs[0].Key)
	assert.JSONEq(t, `{"qty":"1.5"}`, string(w.msgs[0].Value))
	assert.Equal(t, "oms", headersToMap(w.msgs[0].Headers)["source"])

	var nilProducer *Producer
	assert.ErrorIs(t, nilProducer.Publish(context.Background(), "t", nil, nil, nil), ErrNotInitialized)
}

func newTestGroup(r reader, cfg ConsumerConfig) *ConsumerGroup {
	cfg.applyDefaults()
	return &ConsumerGroup{r: r, cfg: cfg}
}

func TestConsumerGroupBatchesAndRetries(t *testing.T) {
	r := newFakeReader("a", "b", "c", "d", "e")
	cg := newTestGroup(r, ConsumerConfig{
		Topic:        "fills",
		WorkerCount:  1,
		MaxRetries:   2,
		BackoffMin:   time.Millisecond,
		BackoffMax:   time.Millisecond,
		BatchSize:    2,
		BatchTimeout: 20 * time.Millisecond,
	})

	var mu sync.Mutex
	var sizes []int
	failed := false
	handler := func(_ context.Context, batch []Message) error {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			return errors.New("transient")
		}
		sizes = append(sizes, len(batch))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cg.Run(ctx, handler) }()

	assert.Eventually(t, func() bool { return r.commits() == 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, n := range sizes {
		assert.LessOrEqual(t, n, 2)
		total += n
	}
	assert.Equal(t, 5, total)
}

func TestConsumerGroupDeadLetters(t *testing.T) {
	r := newFakeReader("poison")
	dlq := &fakeWriter{}
	cg := newTestGroup(r, ConsumerConfig{
		Topic:       "fills",
		WorkerCount: 1,
		MaxRetries:  1,
		BackoffMin:  time.Millisecond,
		BackoffMax:  time.Millisecond,
		BatchSize:   1,
		DLQTopic:    "fills.dlq",
	})
	cg.prodForDLQ = &Producer{w: dlq}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = cg.Run(ctx, func(context.Context, []Message) error { return errors.New("poison") })
	}()

	assert.Eventually(t, func() bool { return r.commits() == 1 && dlq.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "fills.dlq", dlq.msgs[0].Topic)
}

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, HashKey("BTC"), HashKey("BTC"))
	assert.NotEqual(t, HashKey("BTC"), HashKey("ETH"))
	assert.Len(t, HashKey("x"), 8)
}
