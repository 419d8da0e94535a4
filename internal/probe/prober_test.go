// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/streamguard/internal/backoff"
	"github.com/ManuGH/streamguard/internal/fetch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher fails the first `failures` calls with err, then succeeds.
type scriptedFetcher struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (f *scriptedFetcher) Once(_ context.Context, rawURL string, _ time.Duration) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return nil, f.err
	}
	return &fetch.Response{URL: rawURL, StatusCode: http.StatusOK}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleep) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func noJitter() *backoff.Policy {
	return backoff.New(100*time.Millisecond, 2*time.Second, -1)
}

func TestEnsureReachable_SucceedsAfterKFailures(t *testing.T) {
	for k := 0; k < 5; k++ {
		f := &scriptedFetcher{failures: k, err: &fetch.Error{Kind: fetch.KindHTTPStatus, StatusCode: 503}}
		rec := &recordedSleep{}
		policy := noJitter()
		p := New(f, policy, time.Second, WithSleep(rec.sleep), WithLogger(zerolog.Nop()))

		n, err := p.EnsureReachable(context.Background(), "http://origin/master.m3u8", 7)
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, k+1, n)
		assert.Equal(t, k+1, f.Calls())

		var want time.Duration
		for i := 1; i <= k; i++ {
			want += policy.Delay(i)
		}
		assert.GreaterOrEqual(t, rec.total(), want, "k=%d", k)
		assert.Len(t, rec.delays, k)
	}
}

func TestEnsureReachable_ExhaustsAfterExactlyMaxTries(t *testing.T) {
	last := &fetch.Error{Kind: fetch.KindTimeout, URL: "http://origin/master.m3u8", Err: context.DeadlineExceeded}
	f := &scriptedFetcher{failures: -1, err: last}
	rec := &recordedSleep{}
	p := New(f, noJitter(), time.Second, WithSleep(rec.sleep), WithLogger(zerolog.Nop()))

	n, err := p.EnsureReachable(context.Background(), "http://origin/master.m3u8", 4)
	require.Error(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, f.Calls())
	assert.Len(t, rec.delays, 3, "no wait after the final attempt")

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, fetch.ErrTimeout)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 4, ex.Attempts)
	assert.Same(t, last, ex.Last)
}

func TestEnsureReachable_MaxTriesBelowOneMeansOne(t *testing.T) {
	f := &scriptedFetcher{failures: -1, err: errors.New("boom")}
	p := New(f, noJitter(), time.Second, WithSleep((&recordedSleep{}).sleep), WithLogger(zerolog.Nop()))

	n, err := p.EnsureReachable(context.Background(), "http://origin/x.m3u8", 0)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, n)
}

func TestEnsureReachable_CancelStopsLoop(t *testing.T) {
	f := &scriptedFetcher{failures: -1, err: errors.New("refused")}
	p := New(f, backoff.New(time.Hour, time.Hour, -1), time.Second, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.EnsureReachable(ctx, "http://origin/x.m3u8", 5)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("probe did not stop after cancellation")
	}
	assert.Equal(t, 1, f.Calls())
}

func TestEnsureReachable_HTTP503TwiceThen200(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	rec := &recordedSleep{}
	p := New(fetch.New(fetch.Options{HTTPClient: srv.Client()}), noJitter(), time.Second,
		WithSleep(rec.sleep), WithLogger(zerolog.Nop()))

	n, err := p.EnsureReachable(context.Background(), srv.URL+"/master.m3u8", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}
