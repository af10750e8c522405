package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries connection settings for the Redis-backed transport.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the queue keys, e.g. "charchat".
	Prefix string
}

// RedisConnector opens Redis connections. Queues map onto Redis lists:
// Publish is an RPUSH, Get is an LPOP, so delivery stays FIFO. Lists need no
// declaration; Declare verifies connectivity so a misconfigured address fails
// at the same point as an unreachable AMQP broker.
type RedisConnector struct {
	cfg RedisConfig
}

func NewRedisConnector(cfg RedisConfig) *RedisConnector {
	return &RedisConnector{cfg: cfg}
}

func (c *RedisConnector) Connect(ctx context.Context) (Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Addr,
		Password: c.cfg.Password,
		DB:       c.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.cfg.Addr, err)
	}
	return &redisBroker{client: client, prefix: c.cfg.Prefix}, nil
}

type redisBroker struct {
	client *redis.Client
	prefix string
}

func (b *redisBroker) key(queue string) string {
	if b.prefix == "" {
		return queue
	}
	return b.prefix + ":" + queue
}

func (b *redisBroker) Declare(ctx context.Context, name string) error {
	// Lists are created implicitly on first push; repeat declaration is
	// trivially idempotent.
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis declare %q: %w", name, err)
	}
	return nil
}

func (b *redisBroker) Publish(ctx context.Context, queue string, body []byte) error {
	if err := b.client.RPush(ctx, b.key(queue), body).Err(); err != nil {
		return fmt.Errorf("redis publish to %q: %w", queue, err)
	}
	return nil
}

func (b *redisBroker) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	body, err := b.client.LPop(ctx, b.key(queue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get from %q: %w", queue, err)
	}
	return body, true, nil
}

func (b *redisBroker) Close() error {
	return b.client.Close()
}
