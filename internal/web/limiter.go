package web

import (
	"sync"

	"golang.org/x/time/rate"
)

// actionLimiter throttles power actions per host so a retrying client cannot
// hammer a BMC.
type actionLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newActionLimiter(perSecond float64, burst int) *actionLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &actionLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether an action on key may run now.
func (l *actionLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
