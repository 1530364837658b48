package logx

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

type throttle struct {
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// admit reports whether an entry may be written and how many entries were
// dropped since the last admitted one. A nil throttle admits everything.
func (t *throttle) admit() (uint64, bool) {
	if t == nil {
		return 0, true
	}
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return 0, false
	}
	return t.suppressed.Swap(0), true
}

// Throttled returns a logger that writes at most perSec entries per second
// (with the given burst). Dropped entries are counted and reported as
// "suppressed" on the next entry that gets through.
//
// Derived loggers (With) share the same budget.
func (l Logger) Throttled(perSec float64, burst int) Logger {
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	cp := l
	cp.gate = &throttle{lim: rate.NewLimiter(rate.Limit(perSec), burst)}
	return cp
}
