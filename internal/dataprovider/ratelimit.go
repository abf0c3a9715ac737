package dataprovider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter is a per-host token-bucket limiter used on both the live
// data polling and venue routing paths, so a backoff against one
// upstream host never throttles calls to another.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[host] = lim
	}
	return lim
}

// Wait blocks until a request to host is permitted or ctx is cancelled.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.get(host).Wait(ctx)
}

// UsageFraction reports how much of host's burst capacity is currently
// consumed, in [0,1], for the health surface.
func (l *HostLimiter) UsageFraction(host string) float64 {
	lim := l.get(host)
	if l.burst == 0 {
		return 0
	}
	available := lim.Tokens()
	used := float64(l.burst) - available
	if used < 0 {
		used = 0
	}
	if used > float64(l.burst) {
		used = float64(l.burst)
	}
	return used / float64(l.burst)
}
