// Package throttle paces outbound broadcast deliveries.
package throttle

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
)

const pollInterval = 20 * time.Millisecond

// BroadcastCfg configuration for Broadcast
type BroadcastCfg struct {
	NPerSec, Burst int
}

// Broadcast is a token-bucket limiter that spaces out per-recipient
// sends so the transport's flood limits are respected.
type Broadcast struct {
	cfg      *BroadcastCfg
	throttle *gutils.RateLimiter
}

// NewBroadcast create new Broadcast
func NewBroadcast(ctx context.Context, cfg *BroadcastCfg) (*Broadcast, error) {
	if cfg.NPerSec <= 0 {
		return nil, errors.Errorf("NPerSec must bigger than 0")
	}
	if cfg.Burst < cfg.NPerSec {
		return nil, errors.Errorf("burst must bigger than NPerSec")
	}

	tt, err := gutils.NewThrottleWithCtx(ctx, gutils.RateLimiterArgs{
		Max:     cfg.Burst,
		NPerSec: cfg.NPerSec,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create throttle")
	}

	return &Broadcast{
		cfg:      cfg,
		throttle: tt,
	}, nil
}

// Allow reports whether one more delivery may go out right now.
func (b *Broadcast) Allow() bool {
	return b.throttle.Allow()
}

// Wait blocks until a delivery slot is available or ctx is done.
func (b *Broadcast) Wait(ctx context.Context) error {
	for {
		if b.throttle.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait broadcast slot")
		case <-time.After(pollInterval):
		}
	}
}
