package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/crm-campaign-service/internal/config"
)

// New builds the receipt queue selected by reconciler.queue_driver.
// rdb is only used by the redis driver.
func New(cfg *config.Config, rdb redis.Cmdable) (ReceiptQueue, error) {
	switch cfg.Reconciler.QueueDriver {
	case "memory":
		return NewInMemoryQueue(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue driver needs a redis client")
		}
		return NewRedisQueue(rdb, cfg.Reconciler.QueueKey), nil
	case "amqp":
		return NewAMQPQueue(cfg.AMQP.URL, cfg.AMQP.Queue)
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Reconciler.QueueDriver)
}
