package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/truxe-io/heimdall/internal/config"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// ErrCacheMiss is returned when a key is absent. Callers fall through to the
// backing store; a miss is never an infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// Service provides distributed caching backed by Redis. When caching is
// disabled it degrades to a no-op client so callers need no branching.
type Service struct {
	client clientInterface
	logger *slog.Logger
	prefix string
}

// clientInterface abstracts the Redis operations we actually use
type clientInterface interface {
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	get(ctx context.Context, key string) ([]byte, error)
	del(ctx context.Context, key string) error
	ping(ctx context.Context) error
	close() error
}

func NewService(cfg config.Cache, logger *slog.Logger) *Service {
	if !cfg.Enabled {
		return &Service{
			client: &noOpClient{},
			logger: logger,
			prefix: "heimdall:",
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})

	return &Service{
		client: &redisClient{rdb: rdb},
		logger: logger,
		prefix: "heimdall:",
	}
}

func (s *Service) key(key string) string {
	return s.prefix + key
}

// Set stores a JSON-serialized value with a TTL.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.CacheError(fmt.Sprintf("failed to marshal cache value for key %s", key), err)
	}

	if err := s.client.set(ctx, s.key(key), data, ttl); err != nil {
		return apperrors.CacheError(fmt.Sprintf("failed to set cache key %s", key), err)
	}
	return nil
}

// Get loads a JSON-serialized value into dest. Returns ErrCacheMiss when the
// key is absent.
func (s *Service) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.get(ctx, s.key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return apperrors.CacheError(fmt.Sprintf("failed to get cache key %s", key), err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return apperrors.CacheError(fmt.Sprintf("failed to unmarshal cache value for key %s", key), err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.del(ctx, s.key(key)); err != nil {
		return apperrors.CacheError(fmt.Sprintf("failed to delete cache key %s", key), err)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.client.ping(ctx)
}

func (s *Service) Close() error {
	return s.client.close()
}

type redisClient struct {
	rdb *redis.Client
}

func (c *redisClient) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *redisClient) del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *redisClient) ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *redisClient) close() error {
	return c.rdb.Close()
}

// noOpClient is used when caching is disabled
type noOpClient struct{}

func (c *noOpClient) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (c *noOpClient) get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (c *noOpClient) del(ctx context.Context, key string) error {
	return nil
}

func (c *noOpClient) ping(ctx context.Context) error {
	return nil
}

func (c *noOpClient) close() error {
	return nil
}
