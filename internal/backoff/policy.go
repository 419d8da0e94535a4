// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package backoff computes capped exponential retry delays with jitter.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultBase      = 500 * time.Millisecond
	DefaultCap       = 8 * time.Second
	DefaultMaxJitter = 250 * time.Millisecond
)

// Policy maps an attempt number to a wait duration:
// min(cap, min(cap, base*2^(attempt-1)) + jitter), jitter in [0, MaxJitter).
type Policy struct {
	Base      time.Duration
	Cap       time.Duration
	MaxJitter time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

// WithRand injects the jitter source. Tests pass a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(p *Policy) { p.rnd = r }
}

// New returns a policy with non-positive values replaced by defaults.
// A negative maxJitter disables jitter.
func New(base, limit, maxJitter time.Duration, opts ...Option) *Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if limit <= 0 {
		limit = DefaultCap
	}
	if limit < base {
		limit = base
	}
	if maxJitter == 0 {
		maxJitter = DefaultMaxJitter
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	p := &Policy{
		Base:      base,
		Cap:       limit,
		MaxJitter: maxJitter,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delay returns the wait before retrying after the given attempt failed.
// Attempts below 1 are treated as 1.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.Cap
	// Beyond 2^30 the shift overflows; the cap has long been reached by then.
	if shift := attempt - 1; shift < 31 {
		if d := p.Base << uint(shift); d > 0 && d < p.Cap {
			wait = d
		}
	}
	wait += p.jitter()
	if wait > p.Cap {
		wait = p.Cap
	}
	return wait
}

func (p *Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rnd.Int63n(int64(p.MaxJitter)))
}
