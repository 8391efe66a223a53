package wal

import (
	"errors"
	"iter"

	"ordwal/pkg/dberrors"
	"ordwal/pkg/record"
)

var errStop = errors.New("stop")

// RawRecord is one committed entry as stored, in log order.
type RawRecord struct {
	record.Entry
	Pointer record.Pointer
	// Batch is the offset of the enclosing batch record, zero for standalone entries.
	Batch uint32
}

// records walks the committed prefix. It stops at the commit watermark observed when the
// walk starts.
func (c *core) records() iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		buf := c.arena.Bytes()
		end := c.committed.Load()
		off := c.opts.DataOffset()

		for off < end {
			f, err := record.ParseFrame(buf[:end], off, c.versioned)
			if err != nil {
				yield(RawRecord{}, dberrors.NewCorrupted(off, err.Error()))
				return
			}
			var batchOff uint32
			if f.Flags.Batch() {
				batchOff = f.Offset
			}
			stopped := false
			err = f.Entries(buf, c.versioned, func(p record.Pointer) error {
				e, err := record.DecodeEntry(buf, p, c.versioned)
				if err != nil {
					return err
				}
				if !yield(RawRecord{Entry: e, Pointer: p, Batch: batchOff}, nil) {
					stopped = true
					return errStop
				}
				return nil
			})
			if stopped {
				return
			}
			if err != nil {
				yield(RawRecord{}, dberrors.NewCorrupted(off, err.Error()))
				return
			}
			off = uint32(f.End())
		}
	}
}
