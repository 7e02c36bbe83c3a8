package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/truxe-io/heimdall/internal/web/response"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	// Allow reports whether a request is within the limit for the key.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Remaining returns the number of requests left in the current window.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// tokenBucket refills continuously over its window.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   int
	capacity int
	refillAt time.Time
	window   time.Duration
}

func newTokenBucket(capacity int, window time.Duration) *tokenBucket {
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		refillAt: time.Now(),
		window:   window,
	}
}

func (tb *tokenBucket) take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	return tb.tokens
}

func (tb *tokenBucket) refill(now time.Time) {
	if now.After(tb.refillAt.Add(tb.window)) {
		tb.tokens = tb.capacity
		tb.refillAt = now
		return
	}

	elapsed := now.Sub(tb.refillAt)
	added := int(elapsed.Nanoseconds() * int64(tb.capacity) / tb.window.Nanoseconds())
	if added > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+added)
		tb.refillAt = now
	}
}

// InMemoryRateLimiter implements RateLimiter with per-key token buckets and
// a janitor goroutine that drops idle buckets.
type InMemoryRateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	done    chan struct{}
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		buckets: make(map[string]*tokenBucket),
		done:    make(chan struct{}),
	}

	go rl.janitor(5 * time.Minute)

	return rl
}

func (rl *InMemoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return rl.bucket(key, limit, window).take(), nil
}

func (rl *InMemoryRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	rl.mu.RLock()
	bucket, ok := rl.buckets[bucketKey(key, limit, window)]
	rl.mu.RUnlock()

	if !ok {
		return limit, nil
	}
	return bucket.remaining(), nil
}

func (rl *InMemoryRateLimiter) bucket(key string, limit int, window time.Duration) *tokenBucket {
	bk := bucketKey(key, limit, window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[bk]
	if !ok {
		bucket = newTokenBucket(limit, window)
		rl.buckets[bk] = bucket
	}
	return bucket
}

func bucketKey(key string, limit int, window time.Duration) string {
	return fmt.Sprintf("%s:%d:%s", key, limit, window)
}

// Close stops the janitor goroutine.
func (rl *InMemoryRateLimiter) Close() error {
	close(rl.done)
	return nil
}

func (rl *InMemoryRateLimiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *InMemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.refillAt) > bucket.window*2
		bucket.mu.Unlock()

		if idle {
			delete(rl.buckets, key)
		}
	}
}

// RateLimit configures a limit applied by RateLimitMiddleware.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// KeyByIP keys rate limits on the client IP, ignoring the port.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects over-limit requests with 429 and an RFC 6749
// style body so OAuth clients can parse it.
func RateLimitMiddleware(limiter RateLimiter, limit RateLimit) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limit.KeyFunc(r)

			allowed, err := limiter.Allow(r.Context(), key, limit.Requests, limit.Window)
			if err != nil {
				// Fail open: a broken limiter must not take the server down.
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limit.Window.Seconds())))
				response.JSONResponse(w, http.StatusTooManyRequests, response.OAuthErrorBody{
					Error:            apperrors.OAuthInvalidRequest,
					ErrorDescription: "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
