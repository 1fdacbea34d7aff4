package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/pkg/circuitbreaker"
)

// breakerPublisher guards each destination topic with its own breaker, so a
// broken topic stops draining without holding back the others.
type breakerPublisher struct {
	next     postgres.Publisher
	breakers *circuitbreaker.Manager
}

func (b *breakerPublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	return b.breakers.Run(ctx, topic, func(ctx context.Context) error {
		return b.next.Publish(ctx, topic, key, value, headers)
	})
}

type publishedMarker interface {
	MarkPublished(ctx context.Context, id, topic string) error
}

// markPublished records delivery of converted messages on their conversion.
func markPublished(svc publishedMarker, logger *zap.Logger) postgres.PublishedFunc {
	return func(ctx context.Context, entry *postgres.OutboxEntry) {
		if entry.EventType != string(conversion.EventMessageConverted) {
			return
		}
		if err := svc.MarkPublished(ctx, entry.AggregateID, entry.KafkaTopic); err != nil {
			logger.Warn("failed to mark conversion published",
				zap.String("conversion_id", entry.AggregateID),
				zap.String("topic", entry.KafkaTopic),
				zap.Error(err))
		}
	}
}
