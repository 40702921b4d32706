package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	cfg     RateLimitConfig
	idleTTL time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*limiterEntry),
		cfg:     cfg,
		idleTTL: 15 * time.Minute,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := time.Now()

	m.mu.Lock()
	ent, ok := m.entries[key]
	if !ok {
		ent = &limiterEntry{lim: rate.NewLimiter(rate.Limit(m.cfg.RequestsPerSecond), m.cfg.BurstSize)}
		m.entries[key] = ent
	}
	ent.lastSeen = now
	m.mu.Unlock()

	d := Decision{Limit: m.cfg.BurstSize}
	if ent.lim.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = int(math.Max(0, math.Floor(ent.lim.TokensAt(now))))
		return d, nil
	}

	d.RetryAfter = time.Second
	if m.cfg.RequestsPerSecond > 0 {
		missing := 1 - ent.lim.TokensAt(now)
		d.RetryAfter = time.Duration(missing / m.cfg.RequestsPerSecond * float64(time.Second))
	}
	return d, nil
}

// Cleanup drops buckets that have not been used for the idle TTL.
func (m *MemoryLimiter) Cleanup() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, ent := range m.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(m.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is cancelled.
func (m *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}

// RedisLimiter allows BurstSize requests per key in each one-second window,
// shared by every replica pointed at the same Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		prefix: "curakidney:ratelimit",
		limit:  cfg.BurstSize,
		window: time.Second,
		now:    time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	slot := now.UnixNano() / int64(r.window)
	windowKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, slot)

	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, 2*r.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Limit: r.limit, Remaining: r.limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count <= r.limit {
		d.Allowed = true
		return d, nil
	}
	windowEnd := time.Unix(0, (slot+1)*int64(r.window))
	d.RetryAfter = windowEnd.Sub(now)
	return d, nil
}

// RateLimit rejects clients that exceed the limiter with 429. A limiter that
// errors lets the request through and logs the failure.
func RateLimit(limiter Limiter, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()

			d, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				rid, _ := c.Get("request_id").(string)
				logger.Warn().Err(err).Str("request_id", rid).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
