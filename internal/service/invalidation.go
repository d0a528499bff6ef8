package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/ml"
)

// InvalidationChannel carries "<origin>:<prop line id>" for every forced regeneration
const InvalidationChannel = "propcast:predictions:invalidate"

// CacheInvalidator tells other processes that a stored prediction was replaced
type CacheInvalidator interface {
	Invalidate(ctx context.Context, propLineID int64) error
}

// RedisCacheInvalidation fans prediction cache deletes out to every replica
// over Redis pub/sub. Delivery is at most once: a replica that is
// disconnected when a message is sent keeps its entry until the cache TTL.
type RedisCacheInvalidation struct {
	client *redis.Client
	cache  *ml.PredictionCache
	origin string
	logger *logrus.Logger
}

// NewRedisCacheInvalidation creates an invalidator for cache
func NewRedisCacheInvalidation(client *redis.Client, cache *ml.PredictionCache, logger *logrus.Logger) *RedisCacheInvalidation {
	return &RedisCacheInvalidation{
		client: client,
		cache:  cache,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Invalidate publishes a delete for propLineID
func (r *RedisCacheInvalidation) Invalidate(ctx context.Context, propLineID int64) error {
	msg := r.origin + ":" + strconv.FormatInt(propLineID, 10)
	if err := r.client.Publish(ctx, InvalidationChannel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish cache invalidation for prop line %d: %w", propLineID, err)
	}
	return nil
}

// Run applies deletes published by other processes until ctx ends
func (r *RedisCacheInvalidation) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", InvalidationChannel, err)
	}
	r.logger.WithField("channel", InvalidationChannel).Info("Listening for prediction cache invalidations")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.apply(msg.Payload)
		}
	}
}

// apply deletes the entry named by payload unless this process sent it
func (r *RedisCacheInvalidation) apply(payload string) {
	origin, id, ok := strings.Cut(payload, ":")
	if !ok {
		r.logger.WithField("payload", payload).Warn("Ignoring malformed cache invalidation")
		return
	}
	if origin == r.origin {
		return
	}
	propLineID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		r.logger.WithField("payload", payload).Warn("Ignoring malformed cache invalidation")
		return
	}
	r.cache.Delete(propLineID)
	r.logger.WithField("prop_line_id", propLineID).Debug("Dropped cached prediction replaced elsewhere")
}
