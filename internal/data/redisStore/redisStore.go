package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// Connect opens a client for one logical database and pings it. A nil store
// and an error mean Redis is offline; callers fall back to in-memory stores.
func Connect(ctx context.Context, settings config.Settings, dbType int) (*Store, error) {
	logger := logger_i.NewLogger(fmt.Sprintf("redis_store_db%d", dbType))
	client := redis.NewClient(&redis.Options{
		Addr:                  settings.RedisAddr,
		Password:              settings.RedisPassword,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error("redis_offline", "addr", settings.RedisAddr, "error", err)
		return nil, fmt.Errorf("redis %s db %d: %w", settings.RedisAddr, dbType, err)
	}

	logger.Info("redis_store_connected", "addr", settings.RedisAddr)
	return &Store{client: client, Type: dbType, logger: logger}, nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("redis_close_failed", "error", err)
		return err
	}
	s.logger.Info("redis_store_closed")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("redis_store_test"),
	}
}
