package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var opDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bastion_ttl_store_op_duration_ms",
	Help:    "Latency of TTL store operations in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
}, []string{"op"})

// RedisStore is the Redis-backed TTLStore. This is the production
// implementation for distributed deployments where lockout state must be
// shared across instances; the external store is the single source of truth,
// so a process restart neither loses nor invents lockouts.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed TTL store. The client lifecycle is
// managed by the caller.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	defer observe("get", time.Now())

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	defer observe("set", time.Now())

	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	defer observe("del", time.Now())

	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

// TTL passes the negative Redis sentinels (-2 missing, -1 no expiry) through
// unchanged.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	defer observe("ttl", time.Now())

	return s.client.TTL(ctx, key).Result()
}

func observe(op string, start time.Time) {
	opDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
