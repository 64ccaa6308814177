package server

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dataveil/rgpd-gateway/internal/config"
)

// tenantLimiter keeps one token bucket per tenant. Settings may change
// at runtime through update, so every read goes through the mutex.
type tenantLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	enabled  bool
}

func newTenantLimiter(cfg config.RateLimitConfig) *tenantLimiter {
	return &tenantLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(cfg.RPS),
		burst:    cfg.Burst,
		enabled:  cfg.Enabled,
	}
}

// Allow reports whether the tenant may proceed.
func (l *tenantLimiter) Allow(key string) bool {
	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return true
	}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// update applies new settings; existing buckets are discarded so every
// tenant picks up the new rate on its next request.
func (l *tenantLimiter) update(cfg config.RateLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = cfg.Enabled
	l.rps = rate.Limit(cfg.RPS)
	l.burst = cfg.Burst
	l.limiters = make(map[string]*rate.Limiter)
}
