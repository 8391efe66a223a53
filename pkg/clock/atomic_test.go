package clock

import (
	"sync"
	"testing"
)

func TestAtomicClock(t *testing.T) {
	c := NewAtomic(5)
	if c.Val() != 5 {
		t.Fatalf("clock = %d", c.Val())
	}
	if got := c.Observe(3); got != 5 {
		t.Fatalf("Observe moved the clock back to %d", got)
	}
	if got := c.Observe(10); got != 10 || c.Val() != 10 {
		t.Fatalf("Observe(10) = %d", got)
	}
	c.Set(2)
	if c.Val() != 2 {
		t.Fatalf("Set(2) left the clock at %d", c.Val())
	}
}

func TestAtomicClockConcurrent(t *testing.T) {
	c := NewAtomic(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for j := uint64(1); j <= 1000; j++ {
				if got := c.Observe(base + j*8); got < base+j*8 {
					t.Errorf("Observe(%d) = %d", base+j*8, got)
					return
				}
			}
		}(uint64(i))
	}
	wg.Wait()

	if c.Val() != 7+1000*8 {
		t.Fatalf("clock at %d, want %d", c.Val(), 7+1000*8)
	}
}
