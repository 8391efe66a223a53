// Package clock hands out write versions.
package clock

import "sync/atomic"

// AtomicClock is a monotonic version counter safe for concurrent use.
type AtomicClock struct {
	atomic.Uint64
}

func NewAtomic(init uint64) *AtomicClock {
	var ac AtomicClock
	ac.Set(init)
	return &ac
}

func (ac *AtomicClock) Val() uint64 {
	return ac.Load()
}

func (ac *AtomicClock) Set(t uint64) {
	ac.Store(t)
}

// Observe moves the clock forward to t if it is behind and returns the current value.
func (ac *AtomicClock) Observe(t uint64) uint64 {
	for {
		cur := ac.Load()
		if cur >= t {
			return cur
		}
		if ac.CompareAndSwap(cur, t) {
			return t
		}
	}
}
