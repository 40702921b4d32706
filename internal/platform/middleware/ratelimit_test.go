package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func rateLimitedHandler(limiter Limiter) echo.HandlerFunc {
	return RateLimit(limiter, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func doRequest(t *testing.T, h echo.HandlerFunc, remoteAddr string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patient-treatments", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := rateLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}))

	for i := 0; i < 5; i++ {
		rec, err := doRequest(t, h, "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("request %d: expected X-RateLimit-Limit '5', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := rateLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}))

	for i := 0; i < 2; i++ {
		if _, err := doRequest(t, h, ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := doRequest(t, h, "")
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	h := rateLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}))

	if _, err := doRequest(t, h, "10.0.0.1:5000"); err != nil {
		t.Fatalf("client a first request: %v", err)
	}
	if _, err := doRequest(t, h, "10.0.0.1:5001"); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}
	if _, err := doRequest(t, h, "10.0.0.2:5000"); err != nil {
		t.Fatalf("client b first request: %v", err)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rec, err := doRequest(t, rateLimitedHandler(failingLimiter{}), "")
	if err != nil {
		t.Fatalf("expected request to pass when limiter fails, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	m := NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	m.idleTTL = time.Millisecond

	if _, err := m.Allow(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	m.Cleanup()

	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle entries to be removed, %d remain", n)
	}
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	l := NewRedisLimiter(rdb, RateLimitConfig{BurstSize: 2})
	l.prefix = "curakidney:test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "client")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i+1, d, err)
		}
	}
	d, err := l.Allow(ctx, "client")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Remaining != 0 || d.RetryAfter <= 0 {
		t.Errorf("expected third request denied, got %+v", d)
	}
}
