package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/model"
)

// BreakerConfig tunes the circuit breaker around a gateway.
type BreakerConfig struct {
	Enabled bool `json:"enabled"`
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `json:"open_timeout"`
}

type breakerGateway struct {
	inner action.Gateway
	cb    *gobreaker.CircuitBreaker
}

type breakerRefresher struct {
	*breakerGateway
	action.Refresher
}

// WithBreaker wraps gw so that repeated transport failures stop hitting the
// vendor. Vendor error codes do not count as failures. Refresh support of gw
// is preserved.
func WithBreaker(gw action.Gateway, cfg BreakerConfig) action.Gateway {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}
	st := gobreaker.Settings{
		Name:    "gateway-" + gw.Group(),
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	b := &breakerGateway{inner: gw, cb: gobreaker.NewCircuitBreaker(st)}
	if r, ok := gw.(action.Refresher); ok {
		return breakerRefresher{breakerGateway: b, Refresher: r}
	}
	return b
}

func (b *breakerGateway) Group() string { return b.inner.Group() }

// State exposes the breaker state for diagnostics.
func (b *breakerGateway) State() gobreaker.State { return b.cb.State() }

func (b *breakerGateway) SetRelayState(ctx context.Context, group model.ActionGroup, deviceID string, state int) action.Result {
	var res action.Result
	_, err := b.cb.Execute(func() (any, error) {
		res = b.inner.SetRelayState(ctx, group, deviceID, state)
		if !res.TransportOK() {
			return nil, fmt.Errorf("gateway %s: %s", b.inner.Group(), res)
		}
		return nil, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return action.Result{Err: fmt.Errorf("gateway %s: %w", b.inner.Group(), err)}
	}
	return res
}
