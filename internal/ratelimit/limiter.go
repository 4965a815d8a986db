// Package ratelimit implements tiered token-bucket accounting keyed by
// (identity, tier). Refill is lazy, computed at the moment of consumption, so
// no per-bucket timers exist; the only background work is idle eviction.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/altavia-air/altavia-api/pkg/config"
)

// Tier selects which bucket parameters apply to a request.
type Tier string

const (
	TierPublic       Tier = "public"
	TierAuth         Tier = "auth"
	TierBookingWrite Tier = "booking_write"
	TierPayment      Tier = "payment"
)

// Decision is the outcome of a consumption attempt. RetryAfter is rounded up
// and is always at least one second on a deny.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	ResetAt    time.Time
}

type bucketKey struct {
	identity string
	tier     Tier
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per (identity, tier). The map mutex guards
// only bucket lookup; consumption is linearized per bucket by the bucket's
// own lock, so traffic on different identities never contends.
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	tiers   map[Tier]config.TierConfig
	idle    time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a limiter from the configured tiers. Buckets idle longer than
// cfg.IdleEviction are evicted to bound memory.
func New(cfg config.RateLimitConfig) *Limiter {
	idle := cfg.IdleEviction
	if idle <= 0 {
		idle = time.Hour
	}

	l := &Limiter{
		buckets: make(map[bucketKey]*bucket),
		tiers: map[Tier]config.TierConfig{
			TierPublic:       cfg.Public,
			TierAuth:         cfg.Auth,
			TierBookingWrite: cfg.BookingWrite,
			TierPayment:      cfg.Payment,
		},
		idle: idle,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go l.janitor()
	return l
}

func (l *Limiter) janitor() {
	interval := l.idle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) tierConfig(tier Tier) config.TierConfig {
	tc, ok := l.tiers[tier]
	if !ok || tc.Capacity <= 0 {
		tc = l.tiers[TierPublic]
	}
	if tc.Capacity <= 0 {
		tc = config.TierConfig{Capacity: 100, RefillPerMinute: 100}
	}
	if tc.RefillPerMinute <= 0 {
		tc.RefillPerMinute = tc.Capacity
	}
	return tc
}

func (l *Limiter) getBucket(identity string, tier Tier) (*bucket, config.TierConfig) {
	key := bucketKey{identity: identity, tier: tier}
	tc := l.tierConfig(tier)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(tc.RefillPerMinute)/60.0), tc.Capacity)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b, tc
}

// TryConsume attempts to take cost tokens from the bucket. A denied decision
// carries the time until the tokens will be available, never zero.
func (l *Limiter) TryConsume(identity string, tier Tier, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}

	b, tc := l.getBucket(identity, tier)
	now := l.now()

	res := b.lim.ReserveN(now, cost)
	if !res.OK() {
		// cost exceeds capacity; this identity can never satisfy it.
		retry := time.Duration(math.Ceil(float64(cost)/ratePerSecond(tc))) * time.Second
		return Decision{Allowed: false, RetryAfter: retry, Limit: tc.Capacity, ResetAt: now.Add(retry)}
	}

	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		retry := ceilSeconds(delay)
		return Decision{Allowed: false, RetryAfter: retry, Limit: tc.Capacity, ResetAt: now.Add(retry)}
	}

	return Decision{Allowed: true, Limit: tc.Capacity, ResetAt: now}
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the eviction janitor.
func (l *Limiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	return nil
}

func ratePerSecond(tc config.TierConfig) float64 {
	return float64(tc.RefillPerMinute) / 60.0
}

func ceilSeconds(d time.Duration) time.Duration {
	secs := math.Ceil(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Identity picks the bucket key for a request: the authenticated subject when
// present (NAT-friendly, per-account throttling), the source address otherwise.
func Identity(subjectID, clientIP string) string {
	if subjectID != "" {
		return "sub:" + subjectID
	}
	if clientIP == "" {
		clientIP = "unknown"
	}
	return "ip:" + clientIP
}
