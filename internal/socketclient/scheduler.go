package socketclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Timer is a pending scheduled call
type Timer interface {
	// Stop cancels the call. It returns false if the call already ran or was stopped.
	Stop() bool
}

// Scheduler runs f once after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type runtimeScheduler struct{}

func (runtimeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// newRetryPolicy returns a backoff yielding min(base*2^n, maxDelay) for the n-th
// call and backoff.Stop once maxRetries delays were handed out.
func newRetryPolicy(base, maxDelay time.Duration, maxRetries int) backoff.BackOff {
	if base > maxDelay {
		base = maxDelay
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(maxRetries))
}
