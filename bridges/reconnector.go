package bridges

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnector yields reconnect delays of min(base * 2^attempt, cap), without jitter.
type Reconnector struct {
	backoff *backoff.ExponentialBackOff
	attempt int
}

func NewReconnector(base, cap time.Duration) *Reconnector {
	return &Reconnector{
		backoff: backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(base),
			backoff.WithRandomizationFactor(0),
			backoff.WithMultiplier(2),
			backoff.WithMaxInterval(cap),
			backoff.WithMaxElapsedTime(0),
		),
	}
}

// Next returns the delay before the next attempt and counts a failure.
func (r *Reconnector) Next() time.Duration {
	d := r.backoff.NextBackOff()
	r.attempt++
	return d
}

func (r *Reconnector) Reset() {
	r.backoff.Reset()
	r.attempt = 0
}

// Attempt is the number of consecutive failures since the last Reset.
func (r *Reconnector) Attempt() int {
	return r.attempt
}

func Delay(base, cap time.Duration, attempt int) time.Duration {
	d := base
	for range attempt {
		if d >= cap {
			break
		}
		d *= 2
	}
	return min(d, cap)
}
