package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// RateLimiter is a per-key token bucket. A bucket refills limit tokens per
// window and allows bursts of up to limit.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	every := rate.Every(window / time.Duration(limit))

	rl.mu.Lock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(every, limit)
		rl.limiters[key] = l
	} else if l.Limit() != every || l.Burst() != limit {
		l.SetLimit(every)
		l.SetBurst(limit)
	}
	rl.mu.Unlock()

	return l.Allow(), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
