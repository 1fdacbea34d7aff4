package redpanda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig holds configuration for the Redpanda consumer
type ConsumerConfig struct {
	// Brokers is a list of broker addresses
	Brokers []string
	// GroupID is the consumer group ID
	GroupID string
	// Topics is the list of topics to consume
	Topics []string
	// SessionTimeoutMS is the session timeout
	SessionTimeoutMS int64
	// HeartbeatIntervalMS is the heartbeat interval
	HeartbeatIntervalMS int64
	// MaxPollRecords is the maximum records per poll
	MaxPollRecords int
	// FetchMaxBytes is the maximum fetch size
	FetchMaxBytes int32
	// StartOffset is the initial offset (earliest or latest)
	StartOffset string
	// OnConsumed is called after each record is handled successfully
	OnConsumed func(topic string)
}

// DefaultConsumerConfig returns defaults for the conversion worker.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:             []string{"localhost:9092"},
		GroupID:             "hl7-conversion-worker",
		SessionTimeoutMS:    30000,
		HeartbeatIntervalMS: 3000,
		MaxPollRecords:      500,
		FetchMaxBytes:       52428800,
		StartOffset:         "earliest",
	}
}

// MessageHandler is called for each consumed message
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// ConsumedMessage represents a consumed Kafka message
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the value of header key, or "".
func (m *ConsumedMessage) Header(key string) string {
	return m.Headers[key]
}

// offsetMarker is the part of *kgo.Client that tracks consumed positions.
type offsetMarker interface {
	MarkCommitRecords(rs ...*kgo.Record)
	SetOffsets(setOffsets map[string]map[int32]kgo.EpochOffset)
}

// Consumer reads records in a consumer group. Partitions of one poll are
// handled concurrently, records within a partition in order, and offsets are
// committed once the whole poll has been handled. A record whose handler
// fails is never marked: the rest of its partition's batch is skipped and
// the partition is rewound so the record is fetched again.
type Consumer struct {
	client  *kgo.Client
	marks   offsetMarker
	config  ConsumerConfig
	logger  *zap.Logger
	tracer  trace.Tracer
	handler MessageHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.RWMutex
	messagesRead   int64
	bytesRead      int64
	errorCount     int64
	lastCommitTime time.Time
}

// NewConsumer creates a new Redpanda consumer
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if cfg.GroupID == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("consumer group and topics are required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.AutoCommitMarks(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info("partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
			logger.Info("partitions revoked", zap.Any("partitions", revoked))
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				logger.Warn("commit on revoke failed", zap.Error(err))
			}
		}),
	}
	if cfg.SessionTimeoutMS > 0 {
		opts = append(opts, kgo.SessionTimeout(time.Duration(cfg.SessionTimeoutMS)*time.Millisecond))
	}
	if cfg.HeartbeatIntervalMS > 0 {
		opts = append(opts, kgo.HeartbeatInterval(time.Duration(cfg.HeartbeatIntervalMS)*time.Millisecond))
	}
	if cfg.FetchMaxBytes > 0 {
		opts = append(opts, kgo.FetchMaxBytes(cfg.FetchMaxBytes))
	}

	switch cfg.StartOffset {
	case "latest":
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:  client,
		marks:   client,
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer("redpanda-consumer"),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins consuming messages
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consumeLoop()
	c.logger.Info("consumer started",
		zap.String("group", c.config.GroupID),
		zap.Strings("topics", c.config.Topics))
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		c.logger.Warn("error committing offsets on stop", zap.Error(err))
	}

	c.client.Close()
	return nil
}

// Ping checks broker connectivity.
func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		fetches := c.client.PollRecords(c.ctx, c.config.MaxPollRecords)
		if fetches.IsClientClosed() || c.ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
			c.incrementErrorCount()
		})

		var wg sync.WaitGroup
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.handlePartition(p.Records)
			}()
		})
		wg.Wait()

		if err := c.client.CommitMarkedOffsets(c.ctx); err != nil {
			if c.ctx.Err() == nil {
				c.logger.Error("failed to commit offsets", zap.Error(err))
			}
			continue
		}
		c.mu.Lock()
		c.lastCommitTime = time.Now()
		c.mu.Unlock()
	}
}

// handlePartition processes records of one partition in order, stopping at
// the first failure.
func (c *Consumer) handlePartition(records []*kgo.Record) {
	for _, record := range records {
		if c.ctx.Err() != nil {
			return
		}
		if err := c.processRecord(record); err != nil {
			c.rewind(record)
			return
		}
	}
}

// rewind moves the fetch position of record's partition back to record.
// During shutdown nothing is rewound; the unmarked offset is simply not
// committed.
func (c *Consumer) rewind(record *kgo.Record) {
	if c.ctx.Err() != nil {
		return
	}
	c.marks.SetOffsets(map[string]map[int32]kgo.EpochOffset{
		record.Topic: {record.Partition: {Epoch: record.LeaderEpoch, Offset: record.Offset}},
	})
}

// processRecord handles one record and marks it for commit only when the
// handler succeeds.
func (c *Consumer) processRecord(record *kgo.Record) error {
	ctx := ExtractTrace(c.ctx, record)
	ctx, span := c.tracer.Start(ctx, "process_message",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("topic", record.Topic),
			attribute.Int64("partition", int64(record.Partition)),
			attribute.Int64("offset", record.Offset),
		))
	defer span.End()

	msg := &ConsumedMessage{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   HeaderMap(record),
		Timestamp: record.Timestamp,
	}

	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("message handler failed",
			zap.String("topic", record.Topic),
			zap.Int32("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err))
		span.RecordError(err)
		c.incrementErrorCount()
		return err
	}

	c.incrementMetrics(len(record.Value))
	if c.config.OnConsumed != nil {
		c.config.OnConsumed(record.Topic)
	}
	c.marks.MarkCommitRecords(record)
	return nil
}

// ConsumerStats holds consumer statistics
type ConsumerStats struct {
	MessagesRead   int64
	BytesRead      int64
	ErrorCount     int64
	LastCommitTime time.Time
}

// Stats returns current consumer statistics
func (c *Consumer) Stats() ConsumerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConsumerStats{
		MessagesRead:   c.messagesRead,
		BytesRead:      c.bytesRead,
		ErrorCount:     c.errorCount,
		LastCommitTime: c.lastCommitTime,
	}
}

func (c *Consumer) incrementMetrics(bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesRead++
	c.bytesRead += int64(bytes)
}

func (c *Consumer) incrementErrorCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}
