// Package backoff computes capped exponential delays for retrying vendor
// requests.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes the delay curve.
type Policy struct {
	// Initial is the delay after the first failure.
	Initial time.Duration

	// Max caps the computed delay, jitter included. Zero means uncapped.
	Max time.Duration

	// Factor multiplies the delay per attempt. Values below 1 fall back
	// to 2.
	Factor float64

	// Jitter adds up to this fraction of the base delay, randomized.
	// Zero keeps delays deterministic.
	Jitter float64
}

// Delay returns the wait before retry number attempt. Attempts count from
// zero: Delay(0) follows the first failure.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delay(attempt, rand.Float64())
}

func (p Policy) delay(attempt int, random float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 2
	}
	base := float64(p.Initial) * math.Pow(factor, float64(attempt))
	total := base + base*p.Jitter*random
	if p.Max > 0 && total > float64(p.Max) {
		total = float64(p.Max)
	}
	return time.Duration(total)
}

// Sleep waits out d, or returns ctx.Err() when the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
