package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dnakit/internal/config"
	"dnakit/internal/logging"
	"dnakit/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const snapshotKeyPrefix = "dnakit:snapshot:"

type RedisSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{
		client: client,
		ttl:    ttl,
		logger: logging.Component(logger, "snapshot_redis"),
	}
}

func snapshotKey(userID string) string {
	return snapshotKeyPrefix + userID
}

func (r *RedisSnapshotRepository) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, snapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	snap, err := decodeSnapshot(val, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable snapshot")
		if delErr := r.client.Del(ctx, snapshotKey(userID)).Err(); delErr != nil {
			r.logger.Debug().Err(delErr).Msg("failed to delete unreadable snapshot")
		}
		return nil, nil
	}
	return snap, nil
}

func (r *RedisSnapshotRepository) SetSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, snapshotKey(snap.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepository) ClearSnapshot(ctx context.Context, userID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
