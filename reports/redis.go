package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/logs"
)

// RedisPublisher stores the latest aggregate under a key and publishes it on a channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	key     string
	logger  logs.Logger
}

func NewRedisPublisher(opts *redis.Options, config Config, logger logs.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:     redis.NewClient(opts),
		channel: config.Channel,
		key:     config.Key,
		logger:  logger,
	}
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Publish writes one aggregate snapshot.
func (p *RedisPublisher) Publish(ctx context.Context, source Source) error {
	bs, err := frames.Encode(GlobalState(source))
	if err != nil {
		return fmt.Errorf("encode global state: %w", err)
	}
	if err := p.rdb.Set(ctx, p.key, bs, 0).Err(); err != nil {
		return fmt.Errorf("write global state: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, bs).Err(); err != nil {
		return fmt.Errorf("publish global state: %w", err)
	}
	return nil
}

// Run publishes every interval until ctx is done. Failures are logged and retried on the next interval.
func (p *RedisPublisher) Run(ctx context.Context, source Source, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := p.Publish(ctx, source); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WarnContext(ctx, "redis report", "error", err)
		}
	}
}
