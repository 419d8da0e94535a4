// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe confirms a manifest is reachable before an engine is built.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ManuGH/streamguard/internal/fetch"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrExhausted matches every *ExhaustedError.
var ErrExhausted = errors.New("manifest unreachable")

// ExhaustedError is returned once maxTries fetches have failed.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("manifest unreachable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Fetcher performs one bounded fetch.
type Fetcher interface {
	Once(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Delayer yields the wait after a failed attempt.
type Delayer interface {
	Delay(attempt int) time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Prober runs the readiness loop. Concurrent probes of the same URL share
// one loop.
type Prober struct {
	fetcher Fetcher
	policy  Delayer
	timeout time.Duration
	sleep   SleepFunc
	logger  zerolog.Logger
	sf      singleflight.Group
}

// Option configures a Prober.
type Option func(*Prober)

// WithSleep replaces the backoff wait. Tests record delays instead of sleeping.
func WithSleep(fn SleepFunc) Option {
	return func(p *Prober) { p.sleep = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// New creates a Prober issuing fetches bounded by timeout.
func New(f Fetcher, policy Delayer, timeout time.Duration, opts ...Option) *Prober {
	p := &Prober{
		fetcher: f,
		policy:  policy,
		timeout: timeout,
		sleep:   sleepWithContext,
		logger:  xglog.WithComponent("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type outcome struct {
	attempts int
}

// EnsureReachable fetches rawURL until it succeeds or maxTries fetches have
// failed. The body is discarded; only reachability matters. It returns the
// number of fetches issued. Exhaustion returns an *ExhaustedError carrying
// the last fetch error; cancellation of ctx returns ctx.Err().
func (p *Prober) EnsureReachable(ctx context.Context, rawURL string, maxTries int) (int, error) {
	if maxTries < 1 {
		maxTries = 1
	}
	key := rawURL + "#" + strconv.Itoa(maxTries)

	for {
		ch := p.sf.DoChan(key, func() (interface{}, error) {
			n, err := p.loop(ctx, rawURL, maxTries)
			return outcome{attempts: n}, err
		})

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case res := <-ch:
			n := res.Val.(outcome).attempts
			if isBareContextErr(res.Err) && ctx.Err() == nil {
				// Joined a flight whose owner went away; start our own.
				continue
			}
			return n, res.Err
		}
	}
}

func (p *Prober) loop(ctx context.Context, rawURL string, maxTries int) (int, error) {
	logger := xglog.WithContext(ctx, p.logger).With().Str(xglog.FieldURL, rawURL).Logger()

	for attempt := 1; ; attempt++ {
		_, err := p.fetcher.Once(ctx, rawURL, p.timeout)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int(xglog.FieldAttempt, attempt).Msg("manifest reachable after retry")
			}
			metrics.RecordProbe("ok", attempt)
			return attempt, nil
		}
		if isContextErr(err) && ctx.Err() != nil {
			metrics.RecordProbe("cancelled", attempt)
			return attempt, ctx.Err()
		}

		if attempt >= maxTries {
			logger.Warn().Err(err).
				Int(xglog.FieldAttempt, attempt).
				Int(xglog.FieldMaxTries, maxTries).
				Msg("manifest probe exhausted")
			metrics.RecordProbe("exhausted", attempt)
			return attempt, &ExhaustedError{URL: rawURL, Attempts: attempt, Last: err}
		}

		wait := p.policy.Delay(attempt)
		logger.Warn().Err(err).
			Int(xglog.FieldAttempt, attempt).
			Int(xglog.FieldMaxTries, maxTries).
			Int(xglog.FieldStatusCode, fetch.StatusCode(err)).
			Dur(xglog.FieldDelay, wait).
			Msg("manifest not reachable, backing off")

		if err := p.sleep(ctx, wait); err != nil {
			metrics.RecordProbe("cancelled", attempt)
			return attempt, err
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isBareContextErr reports a loop that ended by cancellation rather than by
// exhaustion; exhaustion may wrap a fetch timeout carrying DeadlineExceeded.
func isBareContextErr(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
