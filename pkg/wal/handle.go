package wal

import (
	"io"
	"iter"
	"sync/atomic"

	"ordwal/pkg/dberrors"
	"ordwal/pkg/memtable"
	"ordwal/pkg/types"
)

// handle holds one reference to a shared log. Reads through a handle must stop once it
// is closed.
type handle struct {
	c      *core
	closed atomic.Bool
}

// Close releases the handle. The log is unmapped when its last handle is closed.
func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.c.release()
}

// Len is the number of indexed entries of every kind and version.
func (h *handle) Len() int { return h.c.table.Entries() }

func (h *handle) IsEmpty() bool { return h.Len() == 0 }

func (h *handle) Capacity() uint32 { return h.c.arena.Capacity() }

func (h *handle) Remaining() uint32 { return h.c.arena.Remaining() }

func (h *handle) MaximumKeySize() uint32 { return h.c.opts.MaximumKeySize }

func (h *handle) MaximumValueSize() uint32 { return h.c.opts.MaximumValueSize }

// Path is the backing file, empty for in-memory logs.
func (h *handle) Path() string { return h.c.arena.Path() }

func (h *handle) ReadOnly() bool { return h.c.arena.ReadOnly() }

// Reserved returns the caller-defined header bytes. The slice aliases the log.
func (h *handle) Reserved() []byte { return h.c.reserved() }

// Records iterates every committed record in log order, including batch members.
func (h *handle) Records() iter.Seq2[RawRecord, error] { return h.c.records() }

// Committed is the end offset of the last committed record.
func (h *handle) Committed() uint32 { return h.c.committed.Load() }

// WriteTo copies the header and every committed record to w. The copy is a valid log on
// its own; reopening it with a larger capacity leaves room for more appends.
func (h *handle) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.c.arena.Bytes()[:h.Committed()])
	return int64(n), err
}

// view reads the log as of one version.
type view struct {
	c *core
	q uint64
}

func (v view) get(key []byte, mode memtable.Mode) (Entry, bool) {
	return v.c.table.Get(key, v.q, mode)
}

func (v view) lowerBound(b types.Bound, mode memtable.Mode) (Entry, bool) {
	r := types.Range{Start: b, End: types.UnboundedBound()}
	return memtable.First(v.c.table.Ascend(r, v.q, mode))
}

func (v view) upperBound(b types.Bound, mode memtable.Mode) (Entry, bool) {
	r := types.Range{Start: types.UnboundedBound(), End: b}
	return memtable.First(v.c.table.Descend(r, v.q, mode))
}

func (v view) scan(r types.Range, mode memtable.Mode) iter.Seq[Entry] {
	return v.c.table.Ascend(r, v.q, mode)
}

func (v view) scanRev(r types.Range, mode memtable.Mode) iter.Seq[Entry] {
	return v.c.table.Descend(r, v.q, mode)
}

// keysOf projects seq onto its keys.
func keysOf(seq iter.Seq[Entry]) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for e := range seq {
			if !yield(e.Key) {
				return
			}
		}
	}
}

// valuesOf projects seq onto its values. Tombstones yield nil.
func valuesOf(seq iter.Seq[Entry]) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for e := range seq {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// writer is the mutating side shared by Log and VersionedLog.
type writer struct {
	flusher *flusher
	closed  atomic.Bool
}

func (w *writer) check() error {
	if w.closed.Load() {
		return dberrors.ErrClosed
	}
	return nil
}

func (w *writer) committed() {
	if w.flusher != nil {
		w.flusher.notify()
	}
}

func (w *writer) start(c *core) {
	if c.opts.AsyncFlush && c.opts.Path != "" && !c.opts.ReadOnly {
		w.flusher = newFlusher(c)
	}
}

// close stops background flushing and writes everything back.
func (w *writer) close(c *core) error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	if w.flusher != nil {
		w.flusher.Stop()
	}
	if err := c.flush(); err != nil {
		c.logger.Warn("failed to flush wal on close", "error", err)
	}
	return nil
}
