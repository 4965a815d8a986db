package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/ratelimit"
	"github.com/altavia-air/altavia-api/pkg/config"
)

type denialCounter struct {
	mu    sync.Mutex
	tiers []string
}

func (d *denialCounter) ObserveRateLimitDenied(tier string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tiers = append(d.tiers, tier)
}

func rateLimitRouter(t *testing.T, capacity int) (*gin.Engine, *denialCounter, *memorySink) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter := ratelimit.New(config.RateLimitConfig{
		Public:       config.TierConfig{Capacity: capacity, RefillPerMinute: capacity},
		Auth:         config.TierConfig{Capacity: capacity, RefillPerMinute: capacity},
		BookingWrite: config.TierConfig{Capacity: capacity, RefillPerMinute: capacity},
		Payment:      config.TierConfig{Capacity: capacity, RefillPerMinute: capacity},
		IdleEviction: time.Hour,
	})
	t.Cleanup(func() { limiter.Close() })

	sink := &memorySink{}
	auditor := audit.NewLogger(64, sink)
	t.Cleanup(auditor.Close)

	counter := &denialCounter{}
	r := gin.New()
	r.Use(RateLimit(limiter, ratelimit.TierPublic, auditor, counter))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, counter, sink
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	r, counter, _ := rateLimitRouter(t, 5)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.Empty(t, counter.tiers)
}

func TestRateLimitDeniesOverBudget(t *testing.T) {
	r, counter, sink := rateLimitRouter(t, 3)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		r.ServeHTTP(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)

	retryAfter, err := strconv.Atoi(last.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)

	assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
	assert.Contains(t, last.Body.String(), `"limit":3`)

	counter.mu.Lock()
	tiers := append([]string(nil), counter.tiers...)
	counter.mu.Unlock()
	assert.Equal(t, []string{string(ratelimit.TierPublic)}, tiers)

	time.Sleep(50 * time.Millisecond)
	var denials int
	for _, e := range sink.all() {
		if e.EventType == audit.EventRateLimit && e.Outcome == audit.OutcomeDenied {
			denials++
		}
	}
	assert.Equal(t, 1, denials)
}

func TestRateLimitSeparatesClients(t *testing.T) {
	r, _, _ := rateLimitRouter(t, 2)

	for _, addr := range []string{"203.0.113.7:5000", "198.51.100.9:5000"} {
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.RemoteAddr = addr
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code, addr)
		}
	}
}
