package dataprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/health"
)

// staleAfter is how long a live provider can go without a successful poll
// before the health surface reports it degraded rather than healthy.
const staleAfter = 5 * time.Minute

// LiveProvider implements Provider over a LiveSource, rate-limited per
// upstream host so a restart-loop or a dense-cadence mode cannot exceed a
// venue's request budget; live mode may block briefly to stay within it.
type LiveProvider struct {
	log        zerolog.Logger
	source     LiveSource
	limiter    *HostLimiter
	host       string
	categories []DataCategory
	timeout    time.Duration

	mu          sync.Mutex
	lastSuccess time.Time
}

func NewLiveProvider(source LiveSource, limiter *HostLimiter, host string, categories []DataCategory, timeout time.Duration, log zerolog.Logger) *LiveProvider {
	return &LiveProvider{
		log:        log.With().Str("component", "dataprovider.LiveProvider").Logger(),
		source:     source,
		limiter:    limiter,
		host:       host,
		categories: categories,
		timeout:    timeout,
	}
}

func (p *LiveProvider) GetData(ctx context.Context, at time.Time) (Snapshot, error) {
	if err := p.limiter.Wait(ctx, p.host); err != nil {
		return Snapshot{}, fmt.Errorf("%w: rate limit wait: %v", errs.DataMissing, err)
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := p.source.Poll(pollCtx, p.categories, at)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: live poll failed: %v", errs.DataMissing, err)
	}

	p.mu.Lock()
	p.lastSuccess = time.Now()
	p.mu.Unlock()
	return snap, nil
}

// CheckHealth reports degraded once the provider has gone longer than
// staleAfter without a successful poll, and folds in the host's rate
// limiter usage as operational detail.
func (p *LiveProvider) CheckHealth(ctx context.Context) health.ComponentHealth {
	p.mu.Lock()
	last := p.lastSuccess
	p.mu.Unlock()

	status := health.StatusHealthy
	if last.IsZero() || time.Since(last) > staleAfter {
		status = health.StatusDegraded
	}

	return health.ComponentHealth{
		Component:   "dataprovider.LiveProvider:" + p.host,
		Status:      status,
		LastChecked: time.Now(),
		Detail: map[string]string{
			"host":           p.host,
			"last_poll_age":  time.Since(last).String(),
			"limiter_usage":  fmt.Sprintf("%.2f", p.limiter.UsageFraction(p.host)),
		},
	}
}
