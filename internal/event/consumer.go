package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/repository/memory"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// Kafka topic constants for product domain events consumed by the search service.
const (
	TopicProductCreated = pkgkafka.TopicPrefix + ".product.created"
	TopicProductUpdated = pkgkafka.TopicPrefix + ".product.updated"
	TopicProductDeleted = pkgkafka.TopicPrefix + ".product.deleted"
)

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID int64 `json:"id"`
}

// CacheFlusher empties the search cache.
type CacheFlusher interface {
	FlushCache(ctx context.Context) error
}

// CatalogSync receives product changes when search runs over an in-process
// catalog.
type CatalogSync interface {
	UpsertProduct(p memory.Product)
	DeleteProduct(id int64)
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithCatalogSync applies product payloads to catalog before the cache is
// flushed.
func WithCatalogSync(catalog CatalogSync) Option {
	return func(c *Consumer) { c.catalog = catalog }
}

// Consumer flushes the search cache whenever the product catalog changes.
type Consumer struct {
	flusher CacheFlusher
	catalog CatalogSync
	logger  *slog.Logger
}

// NewConsumer creates a new product event consumer.
func NewConsumer(flusher CacheFlusher, logger *slog.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		flusher: flusher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var err error
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		err = c.handleProductChanged(event)
	case TopicProductDeleted:
		err = c.handleProductDeleted(event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.flusher.FlushCache(ctx); err != nil {
		return fmt.Errorf("flush cache after %s: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "search cache invalidated by product event",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)
	return nil
}

func (c *Consumer) handleProductChanged(event *pkgkafka.Event) error {
	if c.catalog == nil {
		return nil
	}

	var p memory.Product
	if err := event.UnmarshalData(&p); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	if p.ID <= 0 {
		return fmt.Errorf("%s event %s: missing product id", event.EventType, event.EventID)
	}

	c.catalog.UpsertProduct(p)
	return nil
}

func (c *Consumer) handleProductDeleted(event *pkgkafka.Event) error {
	if c.catalog == nil {
		return nil
	}

	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	c.catalog.DeleteProduct(data.ID)
	return nil
}
