// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backoff

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay_NoJitterDoublesUntilCap(t *testing.T) {
	p := New(100*time.Millisecond, time.Second, -1)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, p.Delay(i+1), "attempt %d", i+1)
	}
}

func TestDelay_BoundedByCapPlusJitter(t *testing.T) {
	p := New(50*time.Millisecond, 2*time.Second, 300*time.Millisecond, WithRand(rand.New(rand.NewSource(7))))

	for n := 1; n <= 64; n++ {
		d := p.Delay(n)
		assert.LessOrEqual(t, d, p.Cap+p.MaxJitter, "attempt %d", n)
		assert.LessOrEqual(t, d, p.Cap, "jittered delay must be re-capped (attempt %d)", n)
		assert.Positive(t, d)
	}
}

func TestDelay_NonDecreasingInExpectation(t *testing.T) {
	p := New(100*time.Millisecond, 5*time.Second, 200*time.Millisecond, WithRand(rand.New(rand.NewSource(42))))

	const samples = 2000
	mean := func(attempt int) time.Duration {
		var sum time.Duration
		for i := 0; i < samples; i++ {
			sum += p.Delay(attempt)
		}
		return sum / samples
	}

	prev := time.Duration(0)
	for n := 1; n <= 8; n++ {
		m := mean(n)
		assert.GreaterOrEqual(t, m, prev, "mean delay dropped at attempt %d", n)
		prev = m
	}
}

func TestDelay_ClampsInvalidAttempt(t *testing.T) {
	p := New(100*time.Millisecond, time.Second, -1)
	assert.Equal(t, p.Delay(1), p.Delay(0))
	assert.Equal(t, p.Delay(1), p.Delay(-5))
}

func TestDelay_HugeAttemptDoesNotOverflow(t *testing.T) {
	p := New(time.Second, time.Minute, -1)
	assert.Equal(t, time.Minute, p.Delay(1000))
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, 0, 0)
	assert.Equal(t, DefaultBase, p.Base)
	assert.Equal(t, DefaultCap, p.Cap)
	assert.Equal(t, DefaultMaxJitter, p.MaxJitter)
}
