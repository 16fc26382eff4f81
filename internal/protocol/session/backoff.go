package session

import (
	"github.com/cenkalti/backoff/v5"
)

// NewBackOff builds the exponential reconnect policy described by cfg.
func (cfg BackoffConfig) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	if b.Multiplier < 1.0 {
		b.Multiplier = 1.0
	}
	if !cfg.Jitter {
		b.RandomizationFactor = 0
	}
	b.Reset()
	return b
}
