package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// RedisQueue keeps receipts in a Redis list (RPUSH / LPOP), so they survive
// an API restart and can be drained by a separate worker process.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, r model.Receipt) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*model.Receipt, error) {
	b, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lpop %s: %w", q.key, err)
	}
	return decode(b)
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

// Close leaves the shared client open; its owner closes it.
func (q *RedisQueue) Close() error { return nil }

var _ ReceiptQueue = (*RedisQueue)(nil)
