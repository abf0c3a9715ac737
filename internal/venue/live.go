package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/health"
	"github.com/sawpanic/basisengine/internal/strategy"
)

// RESTRouter places one order against a real venue and reports its
// result. A concrete implementation per venue (CEX REST client, DeFi
// contract caller) is wired in at construction; this package only owns
// the resilience wrapper around it.
type RESTRouter interface {
	PlaceOrder(ctx context.Context, order strategy.Order) (Handshake, error)
}

// Live wraps a RESTRouter with per-venue rate limiting, a circuit
// breaker, and a call timeout, and maintains a mark-price cache fed by a
// background websocket subscription.
type Live struct {
	log     zerolog.Logger
	router  RESTRouter
	limiter *dataprovider.HostLimiter
	breaker *cb.CircuitBreaker
	timeout time.Duration

	mu         sync.RWMutex
	markPrices map[string]decimal.Decimal
}

func NewLive(router RESTRouter, limiter *dataprovider.HostLimiter, timeout time.Duration, log zerolog.Logger) *Live {
	st := cb.Settings{Name: "venue.Live"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 10 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.3
	}

	return &Live{
		log:        log.With().Str("component", "venue.Live").Logger(),
		router:     router,
		limiter:    limiter,
		breaker:    cb.NewCircuitBreaker(st),
		timeout:    timeout,
		markPrices: make(map[string]decimal.Decimal),
	}
}

func (v *Live) Route(order strategy.Order, timestamp time.Time) Handshake {
	if err := v.limiter.Wait(context.Background(), order.Venue); err != nil {
		return failedHandshake(order)
	}

	t0 := time.Now()
	result, err := v.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()
		return v.router.PlaceOrder(ctx, order)
	})
	if err != nil {
		v.log.Warn().Err(err).Str("order_id", order.OrderID).Str("venue", order.Venue).Msg("venue route failed")
		return failedHandshake(order)
	}

	h, ok := result.(Handshake)
	if !ok {
		return failedHandshake(order)
	}
	h.DurationMS = time.Since(t0).Milliseconds()
	return h
}

// RouteGroup submits an atomic group sequentially but never reports
// success unless every leg filled; a venue whose underlying transport
// cannot guarantee atomicity (no bundled multi-call submitted here) must
// instead stop after the first failure and report the remainder failed,
// since there is no way to undo already-routed legs from this layer.
func (v *Live) RouteGroup(orders []strategy.Order, timestamp time.Time) []Handshake {
	handshakes := make([]Handshake, len(orders))
	for i, o := range orders {
		h := v.Route(o, timestamp)
		handshakes[i] = h
		if h.Status != StatusFilled {
			for j := i + 1; j < len(orders); j++ {
				handshakes[j] = failedHandshake(orders[j])
			}
			return handshakes
		}
	}
	return handshakes
}

// BreakerState reports the circuit breaker's current state name, for the
// health surface.
func (v *Live) BreakerState() string {
	return v.breaker.State().String()
}

// CheckHealth reports down while the circuit breaker is open and
// degraded while it is half-open; an open breaker means routing calls are
// currently short-circuited rather than reaching the venue at all.
func (v *Live) CheckHealth(ctx context.Context) health.ComponentHealth {
	state := v.BreakerState()
	status := health.StatusHealthy
	switch state {
	case "open":
		status = health.StatusDown
	case "half-open":
		status = health.StatusDegraded
	}
	return health.ComponentHealth{
		Component:   "venue.Live",
		Status:      status,
		LastChecked: time.Now(),
		Detail:      map[string]string{"breaker_state": state},
	}
}

// MarkPrice returns the most recent streamed price for symbol.
func (v *Live) MarkPrice(symbol string) (decimal.Decimal, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.markPrices[symbol]
	return p, ok
}

type markPriceMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// StreamMarkPrices subscribes to a venue's mark-price feed and keeps the
// cache current until ctx is cancelled or the connection drops.
func (v *Live) StreamMarkPrices(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial mark price feed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg markPriceMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mark price feed read: %w", err)
		}
		v.mu.Lock()
		v.markPrices[msg.Symbol] = decimal.NewFromFloat(msg.Price)
		v.mu.Unlock()
	}
}
