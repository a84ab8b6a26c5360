// internal/writer/redis.go
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a client. It does not dial.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisSink keeps the latest record per source.
//
//	<prefix>:latest            hash, field <kind>:<source> -> record JSON
//	<prefix>:<kind>:<source>   string, record JSON, optional TTL
type redisSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSink(rdb *redis.Client, prefix string, ttl time.Duration) Writer {
	return &redisSink{rdb: rdb, prefix: prefix, ttl: ttl}
}

// LatestKey is the hash holding every source's last record.
func LatestKey(prefix string) string { return prefix + ":latest" }

// RecordKey is the per-source key.
func RecordKey(prefix string, rec Record) string {
	return fmt.Sprintf("%s:%s:%s", prefix, rec.Kind, rec.Source)
}

func (s *redisSink) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: encode: %w", err)
	}

	field := string(rec.Kind) + ":" + rec.Source

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, LatestKey(s.prefix), field, payload)
	pipe.Set(ctx, RecordKey(s.prefix, rec), payload, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: write %s: %w", field, err)
	}
	return nil
}
