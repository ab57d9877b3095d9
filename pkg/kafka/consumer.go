package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-search/pkg/logger"
)

const (
	tracerName = "github.com/utafrali/catalog-search/pkg/kafka"

	// maxHandlerRetries bounds handler attempts before a message is
	// committed and skipped.
	maxHandlerRetries = 3
	defaultRetryBase  = 100 * time.Millisecond
	fetchErrorBackoff = time.Second
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	MinBytes int
	MaxBytes int
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithMetrics records consumer activity in m.
func WithMetrics(m *ConsumerMetrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithReader replaces the kafka-go reader, mainly for tests.
func WithReader(r MessageReader) ConsumerOption {
	return func(c *Consumer) { c.reader = r }
}

// WithRetryBase sets the linear backoff step between handler attempts.
func WithRetryBase(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.retryBase = d }
}

// Consumer reads events from a consumer group and dispatches them to a
// handler, committing each message once it has been handled or skipped.
type Consumer struct {
	reader    MessageReader
	groupID   string
	handler   Handler
	logger    *slog.Logger
	metrics   *ConsumerMetrics
	retryBase time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a consumer subscribed to cfg.Topics as cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, l *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		groupID:   cfg.GroupID,
		handler:   handler,
		logger:    l,
		retryBase: defaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reader == nil {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			GroupTopics: cfg.Topics,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
		})
	}
	return c
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("group", c.groupID))
	defer func() {
		if err := c.Close(); err != nil {
			c.logger.Warn("failed to close consumer", slog.String("error", err.Error()))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("group", c.groupID))
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			if !sleepCtx(ctx, fetchErrorBackoff) {
				return nil
			}
			continue
		}
		if c.metrics != nil {
			c.metrics.received.WithLabelValues(msg.Topic, c.groupID).Inc()
		}

		if !c.process(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process handles one message with retries. It returns false only when ctx
// ended mid-retry, in which case the message must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("skipping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.countFailed(msg.Topic)
		return true
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.kafka.consumer.group", c.groupID),
			attribute.String("event.type", event.EventType),
		),
	)
	defer span.End()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		lastErr = c.handler(ctx, event)
		if lastErr == nil || errors.Is(lastErr, ErrDuplicateEvent) {
			break
		}
		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < maxHandlerRetries && !sleepCtx(ctx, time.Duration(attempt)*c.retryBase) {
			return false
		}
	}
	if c.metrics != nil {
		c.metrics.duration.WithLabelValues(msg.Topic, c.groupID).Observe(time.Since(start).Seconds())
	}

	switch {
	case lastErr == nil:
		if c.metrics != nil {
			c.metrics.processed.WithLabelValues(msg.Topic, c.groupID).Inc()
		}
	case errors.Is(lastErr, ErrDuplicateEvent):
		if c.metrics != nil {
			c.metrics.duplicate.WithLabelValues(msg.Topic, c.groupID).Inc()
		}
	default:
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		c.logger.ErrorContext(ctx, "handler failed after all retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", lastErr.Error()),
		)
		c.countFailed(msg.Topic)
	}
	return true
}

func (c *Consumer) countFailed(topic string) {
	if c.metrics != nil {
		c.metrics.failed.WithLabelValues(topic, c.groupID).Inc()
	}
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// PingBrokers returns nil if at least one broker answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", lastErr)
}
