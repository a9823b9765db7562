// Package redisstore implements database.Store on Redis.
//
// Records are hashes, sets are sorted sets scored by an insertion counter and
// listings are sorted sets scored by creation time in microseconds, so members
// with equal scores fall back to lexicographic id order. Uniqueness of guardian
// image paths and student names is claimed with SETNX on a dedicated key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

func init() {
	database.RegisterBackend(func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(ctx, cfg)
	}, "redis", "rediss")
}

const defaultPrefix = "safekids:"

// Store implements database.Store on a Redis client.
type Store struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

var _ database.Store = (*Store)(nil)

// Open connects to the Redis URL in cfg and verifies the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		opts.PoolSize = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		opts.MaxIdleConns = cfg.MaxIdleConns
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return New(rdb, defaultPrefix), nil
}

// New wraps an existing client. All keys are prefixed with prefix.
func New(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// nextSeq returns a store-wide increasing counter used to order set members.
func (s *Store) nextSeq(ctx context.Context) (float64, error) {
	n, err := s.rdb.Incr(ctx, s.key("seq")).Result()
	if err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return float64(n), nil
}

// reserveSeq reserves n consecutive counter values and returns the first.
func (s *Store) reserveSeq(ctx context.Context, n int) (float64, error) {
	if n == 0 {
		return 0, nil
	}
	last, err := s.rdb.IncrBy(ctx, s.key("seq"), int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve sequence: %w", err)
	}
	return float64(last - int64(n) + 1), nil
}

// queueMembers queues ZADD NX of members at key, scored from first upwards.
func queueMembers(ctx context.Context, pipe goredis.Pipeliner, key string, first float64, members []string) {
	for i, m := range members {
		pipe.ZAddNX(ctx, key, goredis.Z{Score: first + float64(i), Member: m})
	}
}

// appendUnique adds member to the ordered set at key unless already present.
func (s *Store) appendUnique(ctx context.Context, key, member string) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	if err := s.rdb.ZAddNX(ctx, key, goredis.Z{Score: seq, Member: member}).Err(); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

// requireExists returns ErrNotFound when key is absent.
func (s *Store) requireExists(ctx context.Context, key, kind, id string) error {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, database.ErrNotFound)
	}
	return nil
}

// claim takes ownership of a uniqueness key for id. Returns ErrConflict when
// another record already owns it.
func (s *Store) claim(ctx context.Context, key, id string) error {
	ok, err := s.rdb.SetNX(ctx, key, id, 0).Result()
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return database.ErrConflict
	}
	return nil
}

// release drops a uniqueness claim after a failed insert so a retry can take
// it. It runs even when ctx is already cancelled.
func (s *Store) release(ctx context.Context, key string) {
	_ = s.rdb.Del(context.WithoutCancel(ctx), key).Err()
}

func timeScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// encodeEmbedding stores float32 values as JSON; the shortest float32
// representation round-trips exactly. Empty embeddings are stored as "".
func encodeEmbedding(embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(embedding)
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(raw), nil
}

func decodeEmbedding(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return out, nil
}

func isNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}
