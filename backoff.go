// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"runtime"
	"time"

	"code.hybscloud.com/spin"
)

// Backoff is an exponential contention backoff for one call site.
//
// Each OnContention sleeps for the current delay and multiplies it, up to
// the configured maximum. Once the delay has reached the maximum, further
// calls yield the processor instead of sleeping. Reset returns to the
// minimum delay.
//
// A disabled Backoff spins once per call.
//
// Backoff is a value type and is not safe for concurrent use.
type Backoff struct {
	cur     time.Duration
	min     time.Duration
	max     time.Duration
	mult    float64
	enabled bool
	sw      spin.Wait
}

// NewBackoff returns the backoff described by c.
func NewBackoff(c Config) Backoff {
	return Backoff{
		cur:     c.MinBackoffDelay,
		min:     c.MinBackoffDelay,
		max:     c.MaxBackoffDelay,
		mult:    c.BackoffMultiplier,
		enabled: c.EnableBackoff,
	}
}

// OnContention waits after a failed attempt.
func (b *Backoff) OnContention() {
	if !b.enabled {
		b.sw.Once()
		return
	}
	if b.cur >= b.max {
		runtime.Gosched()
		return
	}
	time.Sleep(b.cur)
	b.cur = b.next()
}

// Reset returns the delay to the minimum.
func (b *Backoff) Reset() {
	b.cur = b.min
	b.sw.Reset()
}

// Delay returns the delay the next OnContention will sleep, or the
// maximum once the backoff yields.
func (b *Backoff) Delay() time.Duration { return b.cur }

// Saturated reports whether OnContention has switched to yielding.
func (b *Backoff) Saturated() bool { return b.cur >= b.max }

func (b *Backoff) next() time.Duration {
	d := time.Duration(float64(b.cur) * b.mult)
	if d <= b.cur {
		d = b.cur + 1
	}
	return min(d, b.max)
}
