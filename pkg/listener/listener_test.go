package listener

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestListenerHandlesInput(t *testing.T) {
	in := make(chan int)
	var sum atomic.Int64
	stopped := false

	l := New(in, func(v int) error {
		sum.Add(int64(v))
		return nil
	}, func() { stopped = true })
	l.Start(context.Background())

	for i := 1; i <= 10; i++ {
		in <- i
	}
	l.Stop()

	if sum.Load() != 55 {
		t.Fatalf("sum = %d, want 55", sum.Load())
	}
	if !stopped {
		t.Fatalf("stop handler not called")
	}
}

func TestListenerSurvivesHandlerError(t *testing.T) {
	in := make(chan int)
	var calls atomic.Int64

	l := New(in, func(v int) error {
		calls.Add(1)
		if v == 1 {
			return errors.New("boom")
		}
		return nil
	})
	l.Start(context.Background())

	in <- 1
	in <- 2
	l.Stop()

	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestListenerStopsOnClosedChannel(t *testing.T) {
	in := make(chan int)
	l := New(in, func(int) error { return nil })
	l.Start(context.Background())
	close(in)

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("listener did not exit on closed channel")
	}
	l.Stop()
}
