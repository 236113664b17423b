package transport

import (
	"math/rand/v2"
	"time"
)

// DelayFunc returns how long to wait before reconnect attempt n (1-based).
type DelayFunc func(attempt int) time.Duration

// ReconnectPolicy bounds reconnection. The attempt counter itself lives in
// the transport and is reset on every successful open.
type ReconnectPolicy struct {
	MaxAttempts int
	Delay       DelayFunc
}

const (
	DefaultMaxAttempts    = 5
	DefaultReconnectDelay = 3 * time.Second
)

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       FixedDelay(DefaultReconnectDelay),
	}
}

// FixedDelay waits the same duration before every attempt.
func FixedDelay(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// ExponentialDelay doubles base per attempt up to max, with up to 20% jitter
// subtracted so that clients dropped together do not reconnect in lockstep.
func ExponentialDelay(base, max time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		if jitter := int64(d) / 5; jitter > 0 {
			d -= time.Duration(rand.Int64N(jitter))
		}
		return d
	}
}

func (p ReconnectPolicy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return DefaultReconnectDelay
	}
	if d := p.Delay(attempt); d > 0 {
		return d
	}
	return 0
}
