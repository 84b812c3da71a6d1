// Package reliable turns a best-effort transport into an ordered,
// acknowledged and deduplicated stream per connection.
package reliable

import (
	"math"
	"time"
)

// Policy controls retransmission. The first retransmit happens AckTimeout
// after the original send; each further wait is multiplied by
// BackoffFactor, capped at MaxBackoff. After MaxAttempts transmissions
// without an ack the peer is declared unreachable.
type Policy struct {
	AckTimeout    time.Duration
	MaxAttempts   int
	BackoffFactor float64
	MaxBackoff    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AckTimeout:    500 * time.Millisecond,
		MaxAttempts:   5,
		BackoffFactor: 2,
		MaxBackoff:    8 * time.Second,
	}
}

// Wait returns how long to wait for an ack after the given transmission
// (1 for the original send).
func (p Policy) Wait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(p.AckTimeout) * math.Pow(factor, float64(attempt-1)))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
