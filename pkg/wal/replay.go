package wal

import (
	"ordwal/pkg/dberrors"
	"ordwal/pkg/record"
)

// replay rebuilds the indexes from the committed prefix of an existing log and positions
// the allocator right after it.
func (c *core) replay() error {
	if err := c.checkHeader(); err != nil {
		return err
	}

	buf := c.arena.Bytes()
	off := c.opts.DataOffset()
	records := 0

	for uint64(off) < uint64(len(buf)) {
		flags := record.Flags(buf[off])
		if !flags.Committed() {
			end, err := c.checkTail(off)
			if err != nil {
				return err
			}
			if !c.arena.ReadOnly() && end > uint64(off) {
				c.logger.Warn("truncating incomplete tail", "offset", off, "end", end)
				c.arena.Zero(uint64(off), end)
			}
			break
		}

		f, err := record.ParseFrame(buf, off, c.versioned)
		if err != nil {
			c.logger.Error("committed record runs past the end of the log", "offset", off)
			return dberrors.NewCorrupted(off, "committed record runs past the end of the log")
		}
		if !f.Verify(buf, c.sum) {
			c.logger.Error("checksum mismatch", "offset", off, "size", f.Size)
			return dberrors.NewCorrupted(off, "checksum mismatch")
		}
		if err := f.Entries(buf, c.versioned, c.table.Insert); err != nil {
			c.logger.Error("malformed record", "offset", off, "error", err)
			return dberrors.NewCorrupted(off, err.Error())
		}

		off = uint32(f.End())
		records++
	}

	if err := c.arena.SetAllocated(off); err != nil {
		return err
	}
	c.committed.Store(off)

	c.logger.Info("wal replayed", "path", c.arena.Path(), "records", records, "offset", off)
	return nil
}

// checkTail inspects the bytes from the first uncommitted record at off to the end of the
// log. A single writer only ever leaves its last record uncommitted, so a checksum-valid
// committed record anywhere past it means the log is damaged. Otherwise checkTail returns
// the end of the bytes to wipe: the record's extent when it parses, else the last non-zero
// byte.
func (c *core) checkTail(off uint32) (uint64, error) {
	buf := c.arena.Bytes()
	size := uint64(len(buf))

	parsed := false
	from, end := uint64(off)+1, uint64(off)
	if f, err := record.ParseFrame(buf, off, c.versioned); err == nil {
		parsed, end = true, f.End()
		// a fully written record that only misses its commit flag
		if f.Verify(buf, c.sum) {
			from = f.End()
		}
	}

	last := uint64(off)
	for i := uint64(off); i < size; i++ {
		b := buf[i]
		if b == 0 {
			continue
		}
		last = i + 1
		if i < from || !record.Flags(b).Committed() {
			continue
		}
		g, err := record.ParseFrame(buf, uint32(i), c.versioned)
		if err != nil || !g.Verify(buf, c.sum) {
			continue
		}
		c.logger.Error("uncommitted record followed by committed data", "offset", off, "next", i)
		return 0, dberrors.NewCorrupted(off, "uncommitted record followed by committed data")
	}

	if !parsed || end > size {
		end = last
	}
	return end, nil
}
