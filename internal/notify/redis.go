package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
)

// RedisNotifier publishes notices as JSON on a Redis pub/sub channel for a
// mail worker to pick up.
type RedisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisNotifier connects to redisURL and verifies the connection.
func NewRedisNotifier(ctx context.Context, log *logger.Logger, redisURL, channel string) (*RedisNotifier, error) {
	if channel == "" {
		return nil, fmt.Errorf("notification channel required")
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisNotifier{
		log:     log.With("service", "RedisNotifier"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, notice PickupNotice) error {
	raw, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish pickup notice: %w", err)
	}
	n.log.Debug("pickup notice published", "channel", n.channel, "student_id", notice.StudentID)
	return nil
}

// Subscribe delivers every notice published on the channel to onNotice until
// ctx is cancelled. Malformed payloads are logged and skipped.
func (n *RedisNotifier) Subscribe(ctx context.Context, onNotice func(PickupNotice)) error {
	if onNotice == nil {
		return fmt.Errorf("onNotice callback required")
	}
	sub := n.rdb.Subscribe(ctx, n.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var notice PickupNotice
				if err := json.Unmarshal([]byte(m.Payload), &notice); err != nil {
					n.log.Warn("bad pickup notice payload", "error", err)
					continue
				}
				onNotice(notice)
			}
		}
	}()
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
