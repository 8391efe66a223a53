// Package arena hands out disjoint, append-only byte regions of a fixed-capacity buffer.
//
// The buffer is either anonymous memory or a shared memory mapping of a file. Bytes that
// were handed out are never moved, so views into them stay valid until Close.
package arena

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"ordwal/pkg/dberrors"
)

// Arena is an append-only allocator. Allocate, Rewind and SetAllocated must only be called
// by the single writer; every other method is safe for concurrent use.
type Arena struct {
	buf       []byte
	allocated atomic.Uint32
	readOnly  bool

	path   string
	file   *os.File
	mapped bool
	fresh  bool
	closed atomic.Bool
}

// NewMemory returns an anonymous arena of the given capacity.
func NewMemory(capacity uint32) *Arena {
	return &Arena{
		buf:   make([]byte, capacity),
		fresh: true,
	}
}

// Bytes returns the whole backing buffer. Only allocated bytes carry meaning.
func (a *Arena) Bytes() []byte {
	return a.buf
}

func (a *Arena) Capacity() uint32 {
	return uint32(len(a.buf))
}

func (a *Arena) Allocated() uint32 {
	return a.allocated.Load()
}

func (a *Arena) Remaining() uint32 {
	return a.Capacity() - a.Allocated()
}

func (a *Arena) ReadOnly() bool {
	return a.readOnly
}

// Path is the backing file path, empty for anonymous arenas.
func (a *Arena) Path() string {
	return a.path
}

// Fresh reports whether the arena started out empty and needs a header.
func (a *Arena) Fresh() bool {
	return a.fresh
}

// Allocate reserves size bytes at the cursor and returns the region and its offset.
func (a *Arena) Allocate(size uint64) (uint32, []byte, error) {
	if a.readOnly {
		return 0, nil, dberrors.ErrReadOnly
	}
	cur := a.allocated.Load()
	remaining := uint64(len(a.buf)) - uint64(cur)
	if size > math.MaxUint32 || size > remaining {
		return 0, nil, dberrors.NewInsufficientSpace(size, remaining)
	}
	end := cur + uint32(size)
	a.allocated.Store(end)
	return cur, a.buf[cur:end:end], nil
}

// Rewind moves the cursor back to offset and zeroes every byte in between.
func (a *Arena) Rewind(offset uint32) {
	cur := a.allocated.Load()
	if offset >= cur {
		return
	}
	clear(a.buf[offset:cur])
	a.allocated.Store(offset)
}

// SetAllocated positions the cursor, used once recovery knows where the valid prefix ends.
func (a *Arena) SetAllocated(offset uint32) error {
	if uint64(offset) > uint64(len(a.buf)) {
		return fmt.Errorf("offset %d beyond capacity %d", offset, len(a.buf))
	}
	a.allocated.Store(offset)
	return nil
}

// Zero clears bytes in [from, to) clamped to the capacity. Writers use it to wipe an
// abandoned tail past the cursor.
func (a *Arena) Zero(from, to uint64) {
	if a.readOnly {
		return
	}
	n := uint64(len(a.buf))
	if to > n {
		to = n
	}
	if from >= to {
		return
	}
	clear(a.buf[from:to])
}

// Flush synchronously writes [offset, offset+size) back to the file. No-op in memory.
func (a *Arena) Flush(offset, size uint32) error {
	if !a.mapped || a.readOnly {
		return nil
	}
	return a.msync(offset, size, false)
}

// FlushAsync schedules [offset, offset+size) for write-back without waiting.
func (a *Arena) FlushAsync(offset, size uint32) error {
	if !a.mapped || a.readOnly {
		return nil
	}
	return a.msync(offset, size, true)
}

func (a *Arena) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !a.mapped {
		a.buf = nil
		return nil
	}
	return a.unmap()
}
