package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"emt-madrid/internal/config"
	"emt-madrid/internal/sensor"
)

// DefaultRedisRetention is how long past snapshots stay in Redis.
const DefaultRedisRetention = 24 * time.Hour

// RedisStorage keeps the last fetched readings in Redis, plus a short rolling history.
type RedisStorage struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

type redisSnapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Readings  []sensor.Reading `json:"readings"`
}

// ConnectRedis opens a client from cfg and checks the server answers.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStorage(client, cfg.Prefix), nil
}

// NewRedisStorage wraps an existing client.
func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{
		client:    client,
		prefix:    prefix,
		retention: DefaultRedisRetention,
		now:       time.Now,
	}
}

func (r *RedisStorage) latestKey() string { return r.prefix + "latest" }
func (r *RedisStorage) indexKey() string  { return r.prefix + "snapshots" }

func (r *RedisStorage) snapshotKey(ts time.Time) string {
	return r.prefix + "snapshot:" + strconv.FormatInt(ts.Unix(), 10)
}

// WriteReadings stores readings as the latest value and indexes them by time.
// Snapshots older than the retention are dropped from the index.
func (r *RedisStorage) WriteReadings(ctx context.Context, readings []sensor.Reading) (string, error) {
	timestamp := r.now().UTC().Truncate(time.Second)
	payload, err := json.Marshal(redisSnapshot{Timestamp: timestamp, Readings: readings})
	if err != nil {
		return "", fmt.Errorf("failed to encode readings: %w", err)
	}

	key := r.snapshotKey(timestamp)
	cutoff := timestamp.Add(-r.retention).Unix()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.latestKey(), payload, 0)
		pipe.Set(ctx, key, payload, r.retention)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(timestamp.Unix()), Member: key})
		pipe.ZRemRangeByScore(ctx, r.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write readings to redis: %w", err)
	}

	return key, nil
}

// ReadLatest returns the last written readings.
func (r *RedisStorage) ReadLatest(ctx context.Context) ([]sensor.Reading, time.Time, error) {
	return r.readSnapshot(ctx, r.latestKey())
}

// ListAvailableTimestamps returns the indexed snapshot times, newest first.
func (r *RedisStorage) ListAvailableTimestamps(ctx context.Context) ([]time.Time, error) {
	entries, err := r.client.ZRevRangeWithScores(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	timestamps := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		timestamps = append(timestamps, time.Unix(int64(entry.Score), 0).UTC())
	}
	return timestamps, nil
}

// GetSnapshotByTimestamp returns the indexed snapshot closest to target.
func (r *RedisStorage) GetSnapshotByTimestamp(ctx context.Context, target time.Time) ([]sensor.Reading, time.Time, error) {
	entries, err := r.client.ZRangeWithScores(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(entries) == 0 {
		return nil, time.Time{}, ErrNoSnapshots
	}

	closest := entries[0]
	closestDiff := absDuration(time.Unix(int64(closest.Score), 0).Sub(target))
	for _, entry := range entries[1:] {
		diff := absDuration(time.Unix(int64(entry.Score), 0).Sub(target))
		if diff < closestDiff {
			closest, closestDiff = entry, diff
		}
	}

	key, _ := closest.Member.(string)
	return r.readSnapshot(ctx, key)
}

func (r *RedisStorage) readSnapshot(ctx context.Context, key string) ([]sensor.Reading, time.Time, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, ErrNoSnapshots
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var snapshot redisSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return snapshot.Readings, snapshot.Timestamp, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
