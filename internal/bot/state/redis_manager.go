package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladimiradmaev/pill-reminder/internal/config"
)

// stateTTL lets abandoned dialogs expire.
const stateTTL = 24 * time.Hour

// RedisManager manages user states using Redis so dialogs survive restarts
type RedisManager struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisManager connects to Redis and checks the connection
func NewRedisManager(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisManager{
		client: client,
		logger: logger,
	}, nil
}

func stateKey(userID int64) string {
	return fmt.Sprintf("user:%d:state", userID)
}

func tempKey(userID int64) string {
	return fmt.Sprintf("user:%d:temp", userID)
}

// SetUserState sets the state for a user with TTL
func (m *RedisManager) SetUserState(ctx context.Context, userID int64, state string) error {
	return m.client.Set(ctx, stateKey(userID), state, stateTTL).Err()
}

// GetUserState gets the state for a user, None when unset or Redis is unreachable
func (m *RedisManager) GetUserState(ctx context.Context, userID int64) string {
	val, err := m.client.Get(ctx, stateKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return None
	}
	if err != nil {
		m.logger.Warn("Failed to read dialog state", "user_id", userID, "error", err)
		return None
	}
	return val
}

// SetTempData stores one field of the user's temp hash and refreshes its TTL
func (m *RedisManager) SetTempData(ctx context.Context, userID int64, key, value string) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tempKey(userID), key, value)
		pipe.Expire(ctx, tempKey(userID), stateTTL)
		return nil
	})
	return err
}

// GetTempData gets temporary data for a user
func (m *RedisManager) GetTempData(ctx context.Context, userID int64, key string) (string, bool) {
	val, err := m.client.HGet(ctx, tempKey(userID), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("Failed to read dialog data", "user_id", userID, "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (m *RedisManager) Reset(ctx context.Context, userID int64) error {
	return m.client.Del(ctx, stateKey(userID), tempKey(userID)).Err()
}

// Close closes the Redis connection
func (m *RedisManager) Close() error {
	return m.client.Close()
}
