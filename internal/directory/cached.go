package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/truxe-io/heimdall/internal/cache"
)

// CachedClientStore layers a pod-local memory cache (L1) and Redis (L2) in
// front of a backing ClientStore. Redis is consulted first after a memory
// miss so scaled-out pods stay consistent; the memory TTL is kept short for
// the same reason. Negative results are never cached: a not-found client
// must become visible the moment registration completes.
type CachedClientStore struct {
	inner  ClientStore
	redis  *cache.Service
	memory *cache.Memory
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedClientStore(inner ClientStore, redis *cache.Service, memory *cache.Memory, ttl time.Duration, logger *slog.Logger) *CachedClientStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedClientStore{
		inner:  inner,
		redis:  redis,
		memory: memory,
		ttl:    ttl,
		logger: logger,
	}
}

func clientCacheKey(clientID string) string {
	return fmt.Sprintf("directory:client:%s", clientID)
}

func (s *CachedClientStore) GetClient(ctx context.Context, clientID string) (Client, error) {
	key := clientCacheKey(clientID)

	if cached, ok := s.memory.Get(key); ok {
		if client, ok := cached.(Client); ok {
			return client, nil
		}
	}

	var client Client
	err := s.redis.Get(ctx, key, &client)
	if err == nil {
		s.memory.Set(key, client)
		return client, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// A broken cache must not take down token issuance; fall through to
		// the backing store.
		s.logger.WarnContext(ctx, "client cache read failed", "client_id", clientID, "error", err)
	}

	client, err = s.inner.GetClient(ctx, clientID)
	if err != nil {
		return Client{}, err
	}

	if err := s.redis.Set(ctx, key, client, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "client cache write failed", "client_id", clientID, "error", err)
	}
	s.memory.Set(key, client)

	return client, nil
}

// Invalidate drops a client from both cache layers. The registration
// subsystem calls this on status or redirect URI changes.
func (s *CachedClientStore) Invalidate(ctx context.Context, clientID string) {
	key := clientCacheKey(clientID)
	s.memory.Delete(key)
	if err := s.redis.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "client cache invalidation failed", "client_id", clientID, "error", err)
	}
}
