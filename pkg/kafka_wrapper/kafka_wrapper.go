// Package kafkawrapper publishes messages to Kafka and runs a pool of
// workers consuming a topic in batches.
package kafkawrapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrNotInitialized = errors.New("kafka client not initialized")

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
	Raw       kafka.Message
}

type ProducerConfig struct {
	Brokers      []string
	Balancer     kafka.Balancer
	BatchSize    int
	BatchBytes   int64
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
	// Sync makes Publish wait for the broker; async writes report errors
	// through the logger only.
	Sync bool
}

// writer is the part of kafka.Writer the producer uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w writer
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               cfg.Balancer,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           cfg.RequiredAcks,
		Async:                  !cfg.Sync,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				zap.S().Warnf("kafka async write of %d messages failed: %v", len(msgs), err)
			}
		},
	}
	return &Producer{w: wr}
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return ErrNotInitialized
	}
	var kh []kafka.Header
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kh,
		Time:    time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), b, headers)
}

func (p *Producer) Close(ctx context.Context) error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	WorkerCount int
	MaxRetries  int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	// batching
	BatchSize    int
	BatchTimeout time.Duration
}

func (c *ConsumerConfig) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffMin == 0 {
		c.BackoffMin = 100 * time.Millisecond
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 200 * time.Millisecond
	}
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerGroup struct {
	r          reader
	cfg        ConsumerConfig
	prodForDLQ *Producer
}

func NewConsumerGroup(cfg ConsumerConfig) (*ConsumerGroup, error) {
	if cfg.Topic == "" || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("consumer group: brokers and topic are required")
	}
	cfg.applyDefaults()

	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var prod *Producer
	if cfg.DLQTopic != "" {
		prod = NewProducer(ProducerConfig{Brokers: cfg.Brokers, Sync: true})
	}

	return &ConsumerGroup{r: rd, cfg: cfg, prodForDLQ: prod}, nil
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.prodForDLQ != nil {
		_ = cg.prodForDLQ.Close(context.Background())
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run delivers batches to handler until ctx is done. A batch whose
// handler keeps failing after MaxRetries goes to the DLQ topic, if any,
// and is committed either way.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, []Message) error) error {
	if cg == nil || cg.r == nil {
		return ErrNotInitialized
	}

	batches := make(chan []kafka.Message, cg.cfg.WorkerCount)
	go cg.collect(ctx, batches)

	var wg sync.WaitGroup
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ms := range batches {
				cg.process(ctx, ms, handler)
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// collect fetches messages and cuts a batch when it is full or when
// BatchTimeout passes since its first message.
func (cg *ConsumerGroup) collect(ctx context.Context, batches chan<- []kafka.Message) {
	defer close(batches)

	fetched := make(chan kafka.Message)
	go func() {
		defer close(fetched)
		for {
			m, err := cg.r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.S().Warnf("kafka fetch from %s failed: %v", cg.cfg.Topic, err)
				select {
				case <-time.After(200 * time.Millisecond):
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case fetched <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		buf     []kafka.Message
		timer   *time.Timer
		timeout <-chan time.Time
	)
	flush := func() {
		if len(buf) > 0 {
			select {
			case batches <- buf:
			case <-ctx.Done():
			}
			buf = nil
		}
		if timer != nil {
			timer.Stop()
		}
		timeout = nil
	}

	for {
		select {
		case m, ok := <-fetched:
			if !ok {
				return
			}
			buf = append(buf, m)
			if len(buf) == 1 {
				timer = time.NewTimer(cg.cfg.BatchTimeout)
				timeout = timer.C
			}
			if len(buf) >= cg.cfg.BatchSize {
				flush()
			}
		case <-timeout:
			flush()
		case <-ctx.Done():
			return
		}
	}
}

func (cg *ConsumerGroup) process(ctx context.Context, ms []kafka.Message, handler func(context.Context, []Message) error) {
	wrapped := make([]Message, len(ms))
	for i, m := range ms {
		wrapped[i] = wrapMessage(m)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cg.cfg.BackoffMin
	b.MaxInterval = cg.cfg.BackoffMax
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cg.cfg.MaxRetries)), ctx)

	err := backoff.Retry(func() error { return handler(ctx, wrapped) }, policy)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		zap.S().Errorf("kafka batch from %s failed after retries: %v", cg.cfg.Topic, err)
		if cg.prodForDLQ != nil {
			for _, m := range ms {
				if dlqErr := cg.prodForDLQ.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, headersToMap(m.Headers)); dlqErr != nil {
					zap.S().Errorf("kafka dlq publish failed: %v", dlqErr)
				}
			}
		}
	}
	if err := cg.r.CommitMessages(ctx, ms...); err != nil {
		zap.S().Warnf("kafka commit failed: %v", err)
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headersToMap(m.Headers),
		Raw:       m,
	}
}

func headersToMap(hs []kafka.Header) map[string]string {
	out := map[string]string{}
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

func HashKey(s string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return b
}
