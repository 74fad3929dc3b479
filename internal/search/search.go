// Package search feeds the offer reindexing pipeline. Booking volume changes
// an offer's ranking, so bookings and cancellations enqueue the offer here.
package search

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "search:offers:reindex"

// RedisQueue pushes offer IDs onto a Redis list drained by the indexer
// worker. Duplicates are fine, reindexing is idempotent.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) EnqueueOffer(ctx context.Context, offerID string) error {
	if err := q.client.LPush(ctx, q.key, offerID).Err(); err != nil {
		return fmt.Errorf("enqueue offer %s: %w", offerID, err)
	}
	return nil
}
