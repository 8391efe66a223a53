package wal

import (
	"context"
	"fmt"

	"ordwal/pkg/listener"
)

// flusher writes committed records back to the file in the background. Signals are
// coalesced: one pending signal covers everything committed before it is handled.
type flusher struct {
	*listener.Listener[struct{}]

	c       *core
	signal  chan struct{}
	flushed uint32
}

func newFlusher(c *core) *flusher {
	size := c.opts.FlushQueueSize
	if size < 1 {
		size = 1
	}
	f := &flusher{
		c:       c,
		signal:  make(chan struct{}, size),
		flushed: c.committed.Load(),
	}
	f.Listener = listener.New(f.signal, f.handle, f.drain).WithLogger(c.logger)
	f.Start(context.Background())
	return f
}

// notify never blocks the writer.
func (f *flusher) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *flusher) handle(struct{}) error {
	end := f.c.committed.Load()
	if end <= f.flushed {
		return nil
	}
	if err := f.c.arena.Flush(f.flushed, end-f.flushed); err != nil {
		return fmt.Errorf("failed to flush [%d, %d): %w", f.flushed, end, err)
	}
	f.flushed = end
	return nil
}

func (f *flusher) drain() {
	if err := f.handle(struct{}{}); err != nil {
		f.c.logger.Warn("final background flush failed", "error", err)
	}
}

// flush synchronously writes back every committed byte, header included.
func (c *core) flush() error {
	if c.arena.ReadOnly() {
		return nil
	}
	return c.arena.Flush(0, c.committed.Load())
}

// flushAsync schedules write-back of every committed byte without waiting.
func (c *core) flushAsync() error {
	if c.arena.ReadOnly() {
		return nil
	}
	return c.arena.FlushAsync(0, c.committed.Load())
}
