package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const snapshotField = "cart"

// RedisSnapshotStore keeps the cart snapshot in a Redis hash keyed by cart id,
// serialized as JSON.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
	log    logrus.FieldLogger
}

// NewRedisSnapshotStore accepts a Redis connection string ("hostname:port" or
// a redis:// URL) and the cart id whose snapshot this store owns.
func NewRedisSnapshotStore(redisAddr, cartID string, log logrus.FieldLogger) *RedisSnapshotStore {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a redis:// URL, treat it as a bare address.
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   30,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisSnapshotStore{
		client: client,
		key:    "jsfashion-cart:" + cartID,
		log:    log,
	}
}

// Initialize verifies the Redis connection, retrying with capped exponential
// backoff so the service can come up before Redis does.
func (r *RedisSnapshotStore) Initialize(ctx context.Context) error {
	for i := 0; i < 30; i++ {
		if r.Ping(ctx) {
			r.log.Infof("RedisSnapshotStore: connected on attempt %d", i+1)
			return nil
		}

		backoff := time.Duration(1000*(1<<uint(i))) * time.Millisecond
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		r.log.Infof("RedisSnapshotStore: ping failed, retrying in %v", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed to connect to Redis after 30 attempts")
}

// Load reads the stored snapshot, returning ErrNoSnapshot when none exists.
func (r *RedisSnapshotStore) Load(ctx context.Context) (Snapshot, error) {
	val, err := r.client.HGet(ctx, r.key, snapshotField).Result()
	if err == redis.Nil {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "redis HGet")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "parsing cart snapshot")
	}
	return snap, nil
}

// Save writes the snapshot synchronously.
func (r *RedisSnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding cart snapshot")
	}
	if err := r.client.HSet(ctx, r.key, snapshotField, data).Err(); err != nil {
		return errors.Wrap(err, "redis HSet")
	}
	return nil
}

// Clear deletes the stored snapshot.
func (r *RedisSnapshotStore) Clear(ctx context.Context) error {
	if err := r.client.HDel(ctx, r.key, snapshotField).Err(); err != nil {
		return errors.Wrap(err, "redis HDel")
	}
	return nil
}

// Ping checks whether Redis is reachable.
func (r *RedisSnapshotStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.client.Ping(pingCtx).Result(); err != nil {
		r.log.WithError(err).Debug("RedisSnapshotStore: ping failed")
		return false
	}
	return true
}
