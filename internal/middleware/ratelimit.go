// Package middleware provides the HTTP middleware that makes up the gateway
// decision path: request identification, rate limiting, authorization gating
// and CORS.
package middleware

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"

	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
)

// Fixed-window parameters. These are deploy-time constants: the window is
// shared, the cap differs by path class so that credential-facing endpoints
// absorb less of a credential-stuffing burst.
const (
	// Window is the fixed window length
	Window = 60 * time.Second
	// AuthCap is the per-window cap for authentication-sensitive paths
	AuthCap = 40
	// GeneralCap is the per-window cap for everything else
	GeneralCap = 120

	// defaultMaxKeys bounds the rate limit table; least-recently-used
	// client keys are evicted once it fills.
	defaultMaxKeys = 65536

	// sweepSchedule controls the periodic eviction of stale entries
	sweepSchedule = "@every 1m"
)

// ClientKey identifies one rate limit bucket: a client network identity
// combined with the path class it is hitting.
type ClientKey struct {
	IP    string
	Class string
}

// windowEntry is the per-key counter state
type windowEntry struct {
	count         int
	windowResetAt time.Time
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// Clock supplies the current time; injectable so tests can advance it
type Clock func() time.Time

// RateLimiterConfig configures a RateLimiter
type RateLimiterConfig struct {
	Window  time.Duration
	Caps    map[string]int
	MaxKeys int
	Clock   Clock
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// RateLimiter is a fixed-window admission controller. All state lives in a
// bounded in-process table; distribution across gateway instances is out of
// scope and a shared store can be substituted behind this type.
type RateLimiter struct {
	mu      sync.Mutex
	entries *lru.Cache[ClientKey, *windowEntry]

	window  time.Duration
	caps    map[string]int
	clock   Clock
	logger  *logging.Logger
	metrics *metrics.Metrics
	sweeper *cron.Cron
}

// NewRateLimiter creates a rate limiter. Zero-value config fields fall back
// to the deploy-time constants.
func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	if cfg.Window <= 0 {
		cfg.Window = Window
	}
	if cfg.Caps == nil {
		cfg.Caps = map[string]int{"auth": AuthCap, "general": GeneralCap}
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	entries, err := lru.New[ClientKey, *windowEntry](cfg.MaxKeys)
	if err != nil {
		return nil, err
	}

	return &RateLimiter{
		entries: entries,
		window:  cfg.Window,
		caps:    cfg.Caps,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Admit runs the fixed-window admission check for a key. The read-modify-
// write on the key's entry is serialized under the limiter mutex, so the
// count can never exceed the cap under concurrent requests for the same key.
func (l *RateLimiter) Admit(key ClientKey) Decision {
	limit, ok := l.caps[key.Class]
	if !ok {
		limit = GeneralCap
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries.Get(key)
	if !exists || now.After(entry.windowResetAt) {
		l.entries.Add(key, &windowEntry{count: 1, windowResetAt: now.Add(l.window)})
		return Decision{Allowed: true}
	}

	if entry.count < limit {
		entry.count++
		return Decision{Allowed: true}
	}

	retryAfter := int(math.Ceil(entry.windowResetAt.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	if l.metrics != nil {
		l.metrics.RecordRateLimitReject(key.Class)
	}

	return Decision{Allowed: false, RetryAfterSeconds: retryAfter}
}

// Len returns the number of tracked keys
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Len()
}

// Sweep evicts entries whose window reset lies more than one full window in
// the past. The LRU bound already caps memory; the sweep keeps the table
// from carrying long-gone clients between evictions.
func (l *RateLimiter) Sweep() int {
	now := l.clock()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for _, key := range l.entries.Keys() {
		entry, ok := l.entries.Peek(key)
		if !ok {
			continue
		}
		if entry.windowResetAt.Before(cutoff) {
			l.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// StartSweeper schedules the periodic sweep
func (l *RateLimiter) StartSweeper() error {
	if l.sweeper != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, func() {
		removed := l.Sweep()
		if removed > 0 && l.logger != nil {
			l.logger.WithField("removed", removed).Debug("Swept stale rate limit entries")
		}
	}); err != nil {
		return err
	}
	c.Start()
	l.sweeper = c
	return nil
}

// StopSweeper stops the periodic sweep
func (l *RateLimiter) StopSweeper() {
	if l.sweeper != nil {
		l.sweeper.Stop()
		l.sweeper = nil
	}
}
