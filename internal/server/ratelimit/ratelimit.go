// Package ratelimit throttles API clients with per-client token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleExpiry is how long a client bucket may go unused before cleanup drops it.
const idleExpiry = time.Hour

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages rate limiting for multiple clients. Each client gets one
// bucket per matched endpoint rule, so /items/1/accept and /items/2/accept
// share a budget.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	config   *Config
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    600,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanup(config.CleanupInterval)
	}
	return l
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	key := "default"
	if ec == nil {
		ec = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	} else {
		key = ec.key()
	}
	if ec.Limit <= 0 || ec.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	lim := l.limiterFor(clientID+"|"+key, ec, now)

	info := Info{Limit: ec.Limit}
	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
		res.CancelAt(now)
		info.RetryAfter = delay
	} else {
		info.Allowed = true
	}

	tokens := lim.TokensAt(now)
	info.Remaining = int(math.Max(0, math.Floor(tokens)))
	missing := float64(lim.Burst()) - tokens
	if missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / float64(lim.Limit()) * float64(time.Second)))
	} else {
		info.ResetTime = now
	}
	return info.Allowed, info
}

func (l *Limiter) limiterFor(key string, ec *EndpointConfig, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		burst := ec.Burst
		if burst <= 0 {
			burst = ec.Limit
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(ec.Limit)/ec.Window.Seconds()), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupBuckets()
		case <-l.stop:
			return
		}
	}
}

// cleanupBuckets drops buckets idle for longer than idleExpiry.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-idleExpiry)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
