// Package admission provides the token-bucket admission limiter shared by
// every Ingress Adapter and the admin HTTP surface, so a slow Queue Store
// cannot be driven into unbounded in-memory queuing from any source.
package admission

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier int = 2
	thresholdMultiplier         = 0.8
	thresholdPercentage     int = 80

	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = 1 * time.Hour
)

// Limiter checks whether a mention from the given source should be
// admitted. Implementations may be in-memory (single harness instance) or
// backed by a shared store for multi-instance deployments.
type Limiter interface {
	// Allow reports whether a mention should be admitted. sourceID is the
	// chat platform's identifier for the mention's origin (channel, relay
	// partition, etc); empty string means unauthenticated/unknown source.
	Allow(sourceID string) bool
}

// Config tunes a TokenBucketLimiter's three tiers.
type Config struct {
	GlobalRPS       int
	GlobalBurst     int
	PerSourceRPS    int
	PerSourceBurst  int
	UnAuthRPS       int
	UnAuthBurst     int
	MaxSources      int
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
}

// TokenBucketLimiter implements Limiter with three tiers: a global bucket,
// a per-source bucket lazily created on first sight, and an unauthenticated
// bucket for mentions with no identifiable source. Idle per-source buckets
// are reclaimed periodically so the map does not grow without bound.
type TokenBucketLimiter struct {
	global          *rate.Limiter
	perSource       map[string]*sourceLimiter
	unauthenticated *rate.Limiter
	mu              sync.RWMutex
	cleanupTicker   *time.Ticker
	done            chan struct{}

	sourceRPS       int
	sourceBurst     int
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	maxSources      int
}

type sourceLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// NewTokenBucketLimiter builds a three-tier limiter and starts its
// background cleanup goroutine. Callers must call Close when done.
func NewTokenBucketLimiter(cfg Config) *TokenBucketLimiter {
	globalBurst := computeBurst(cfg.GlobalRPS, cfg.GlobalBurst)
	sourceBurst := computeBurst(cfg.PerSourceRPS, cfg.PerSourceBurst)
	unauthBurst := computeBurst(cfg.UnAuthRPS, cfg.UnAuthBurst)

	l := &TokenBucketLimiter{
		global:          rate.NewLimiter(rate.Limit(cfg.GlobalRPS), globalBurst),
		perSource:       make(map[string]*sourceLimiter),
		unauthenticated: rate.NewLimiter(rate.Limit(cfg.UnAuthRPS), unauthBurst),
		done:            make(chan struct{}),
		sourceRPS:       cfg.PerSourceRPS,
		sourceBurst:     sourceBurst,
		cleanupInterval: cfg.CleanupInterval,
		idleTimeout:     cfg.IdleTimeout,
		maxSources:      cfg.MaxSources,
	}

	l.startCleanup()

	return l
}

func computeBurst(rps, override int) int {
	if override > 0 {
		return override
	}

	return rps * burstCapacityMultiplier
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(sourceID string) bool {
	if !l.global.Allow() {
		return false
	}

	if sourceID == "" {
		return l.unauthenticated.Allow()
	}

	l.mu.RLock()
	src, ok := l.perSource[sourceID]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()

		if src, ok = l.perSource[sourceID]; !ok {
			src = &sourceLimiter{
				limiter:    rate.NewLimiter(rate.Limit(l.sourceRPS), l.sourceBurst),
				lastAccess: time.Now(),
			}
			l.perSource[sourceID] = src

			current := len(l.perSource)
			threshold := int(float64(l.maxSources) * thresholdMultiplier)

			if l.maxSources > 0 && current >= threshold {
				slog.Warn("admission limiter approaching max sources",
					slog.Int("current_sources", current),
					slog.Int("max_sources", l.maxSources),
					slog.Int("threshold_percent", thresholdPercentage))
			}
		}

		l.mu.Unlock()
	}

	src.mu.Lock()
	src.lastAccess = time.Now()
	src.mu.Unlock()

	return src.limiter.Allow()
}

// Close stops the cleanup goroutine.
func (l *TokenBucketLimiter) Close() {
	if l.cleanupTicker != nil {
		l.cleanupTicker.Stop()
	}

	close(l.done)
}

func (l *TokenBucketLimiter) startCleanup() {
	interval := l.cleanupInterval
	if interval == 0 {
		interval = defaultCleanupInterval
	}

	l.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-l.cleanupTicker.C:
				l.cleanup()
			case <-l.done:
				return
			}
		}
	}()
}

func (l *TokenBucketLimiter) cleanup() {
	idleTimeout := l.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = defaultIdleTimeout
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for sourceID, src := range l.perSource {
		src.mu.Lock()
		lastAccess := src.lastAccess
		src.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(l.perSource, sourceID)
		}
	}
}
