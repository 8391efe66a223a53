package wal

import (
	"fmt"
	"math"

	"ordwal/pkg/batch"
	"ordwal/pkg/checksum"
	"ordwal/pkg/dberrors"
	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// slot is a key, bound key or value about to be written: inline, or out of line behind a pointer.
type slot struct {
	payload  record.Payload
	indirect bool
	ptr      record.Pointer
}

func (s *slot) regionLen() uint32 {
	if s.indirect {
		return record.PointerSize
	}
	return uint32(s.payload.Len())
}

func (s *slot) put(dst []byte) error {
	if s.indirect {
		s.ptr.Put(dst)
		return nil
	}
	return s.payload.Encode(dst)
}

// pending is one entry on its way into the log.
type pending struct {
	flags   record.Flags
	version uint64

	key        slot
	rng        *types.Range
	start, end slot

	// value is nil for entries without a value.
	value *slot
}

func pointEntry(flags record.Flags, version uint64, key, value record.Payload) *pending {
	p := &pending{flags: flags, version: version, key: slot{payload: key}}
	if value != nil {
		p.value = &slot{payload: value}
	}
	return p
}

func rangeEntry(flags record.Flags, version uint64, r types.Range, value record.Payload) *pending {
	p := &pending{
		flags:   flags,
		version: version,
		rng:     &r,
		start:   slot{payload: record.Bytes(r.Start.Key)},
		end:     slot{payload: record.Bytes(r.End.Key)},
	}
	if value != nil {
		p.value = &slot{payload: value}
	}
	return p
}

func fromOp(op batch.Op) *pending {
	switch op.Kind {
	case batch.Delete:
		return pointEntry(record.Removed, op.Version, record.Bytes(op.Key), nil)
	case batch.RangeDelete:
		return rangeEntry(record.RangeDeletion, op.Version, op.Range, nil)
	case batch.RangeSet:
		return rangeEntry(record.RangeSet, op.Version, op.Range, record.Bytes(op.Value))
	case batch.RangeUnset:
		return rangeEntry(record.RangeUnset, op.Version, op.Range, nil)
	default:
		return pointEntry(0, op.Version, record.Bytes(op.Key), record.Bytes(op.Value))
	}
}

// slots lists every slot that may move out of line.
func (p *pending) slots() []*slot {
	var out []*slot
	if p.rng != nil {
		if p.rng.Start.Kind != types.Unbounded {
			out = append(out, &p.start)
		}
		if p.rng.End.Kind != types.Unbounded {
			out = append(out, &p.end)
		}
	} else {
		out = append(out, &p.key)
	}
	if p.value != nil {
		out = append(out, p.value)
	}
	return out
}

func (p *pending) boundSlot(b types.Bound, s *slot) record.BoundSlot {
	return record.BoundSlot{Kind: b.Kind, Key: b.Key, Indirect: s.indirect, Ptr: s.ptr}
}

func (p *pending) keyLen() uint64 {
	if p.rng != nil {
		return record.RangeRegionSize(p.boundSlot(p.rng.Start, &p.start), p.boundSlot(p.rng.End, &p.end))
	}
	return uint64(p.key.regionLen())
}

func (p *pending) valueLen() uint32 {
	if p.value == nil {
		return 0
	}
	return p.value.regionLen()
}

func (c *core) size(p *pending) uint64 {
	return record.EntrySize(c.versioned, uint32(p.keyLen()), p.valueLen())
}

func blobSize(n int) uint64 {
	return record.BatchHeaderSize(0, uint32(n)) + uint64(n) + checksum.Size
}

// plan checks the limits of p, decides which slots go out of line and returns the number
// of bytes their side records take.
func (c *core) plan(p *pending) (uint64, error) {
	if !c.versioned {
		p.version = 0
	}
	var keyLens []int
	if p.rng != nil {
		keyLens = append(keyLens, len(p.rng.Start.Key), len(p.rng.End.Key))
	} else {
		keyLens = append(keyLens, p.key.payload.Len())
	}
	for _, n := range keyLens {
		if n < 0 || uint64(n) > uint64(c.opts.MaximumKeySize) {
			return 0, dberrors.NewTooLarge("key", uint64(n), uint64(c.opts.MaximumKeySize))
		}
	}
	if p.value != nil {
		if n := p.value.payload.Len(); n < 0 || uint64(n) > uint64(c.opts.MaximumValueSize) {
			return 0, dberrors.NewTooLarge("value", uint64(n), uint64(c.opts.MaximumValueSize))
		}
	}

	var side uint64
	if t := c.opts.InlineThreshold; t > 0 {
		for _, s := range p.slots() {
			if n := s.payload.Len(); n > int(t) {
				s.indirect = true
				side += blobSize(n)
			}
		}
	}
	if p.keyLen() > math.MaxUint32 || c.size(p) > math.MaxUint32 {
		return 0, dberrors.NewTooLarge("entry", c.size(p), math.MaxUint32)
	}
	if p.rng != nil {
		p.flags &^= record.KeyIndirect
	} else if p.key.indirect {
		p.flags |= record.KeyIndirect
	}
	if p.value != nil && p.value.indirect {
		p.flags |= record.ValueIndirect
	}
	return side, nil
}

// spill writes the side records of p's out-of-line slots.
func (c *core) spill(p *pending) error {
	for _, s := range p.slots() {
		if !s.indirect {
			continue
		}
		n := s.payload.Len()
		off, region, err := c.arena.Allocate(blobSize(n))
		if err != nil {
			return err
		}
		hdr := record.PutBatchHeader(region, 0, uint32(n))
		if err := s.payload.Encode(region[hdr : hdr+n]); err != nil {
			return err
		}
		body := record.Pointer{Offset: off, Size: uint32(hdr + n)}
		checksum.Put(region[body.Size:], record.Sum(c.sum, c.arena.Bytes(), body))
		region[0] |= byte(record.Committed)
		s.ptr = record.Pointer{Offset: off + uint32(hdr), Size: uint32(n)}
	}
	return nil
}

// encode writes p into dst, which is exactly c.size(p) bytes long.
func (c *core) encode(dst []byte, p *pending) error {
	klen, vlen := uint32(p.keyLen()), p.valueLen()
	n := record.PutEntryHeader(dst, p.flags&^record.Committed, c.versioned, p.version, klen, vlen)
	if p.rng != nil {
		record.PutRange(dst[n:n+int(klen)], p.boundSlot(p.rng.Start, &p.start), p.boundSlot(p.rng.End, &p.end))
	} else if err := p.key.put(dst[n : n+int(klen)]); err != nil {
		return err
	}
	n += int(klen)
	if p.value != nil {
		return p.value.put(dst[n : n+int(vlen)])
	}
	return nil
}

func (c *core) writable() error {
	if c.arena.ReadOnly() {
		return dberrors.ErrReadOnly
	}
	return nil
}

func (c *core) reserve(total uint64) error {
	if remaining := uint64(c.arena.Remaining()); total > remaining {
		return dberrors.NewInsufficientSpace(total, remaining)
	}
	return nil
}

// append writes p as a single committed record and indexes it.
func (c *core) append(p *pending) (record.Pointer, error) {
	if err := c.writable(); err != nil {
		return record.Pointer{}, err
	}
	side, err := c.plan(p)
	if err != nil {
		return record.Pointer{}, err
	}
	size := c.size(p)
	if err := c.reserve(side + size + checksum.Size); err != nil {
		return record.Pointer{}, err
	}

	mark := c.arena.Allocated()
	ptr, err := c.write(p, size)
	if err != nil {
		c.arena.Rewind(mark)
		return record.Pointer{}, err
	}
	committed, err := c.commit(mark, ptr)
	if !committed {
		return record.Pointer{}, err
	}
	if ierr := c.table.Insert(ptr); ierr != nil {
		return record.Pointer{}, ierr
	}
	return ptr, err
}

func (c *core) write(p *pending, size uint64) (record.Pointer, error) {
	if err := c.spill(p); err != nil {
		return record.Pointer{}, err
	}
	off, region, err := c.arena.Allocate(size + checksum.Size)
	if err != nil {
		return record.Pointer{}, err
	}
	if err := c.encode(region[:size], p); err != nil {
		return record.Pointer{}, err
	}
	ptr := record.Pointer{Offset: off, Size: uint32(size)}
	checksum.Put(region[size:], record.Sum(c.sum, c.arena.Bytes(), ptr))
	return ptr, nil
}

// commit flips the committed bit of the record at ptr. Everything from mark on is
// flushed first when writes are synchronous. Once the bit is set the record counts as
// committed: committed reports it even when the flush that follows fails.
func (c *core) commit(mark uint32, ptr record.Pointer) (committed bool, err error) {
	end := uint32(ptr.End()) + checksum.Size
	if c.opts.SyncOnWrite {
		if err := c.sync(mark, end-mark); err != nil {
			c.arena.Rewind(mark)
			return false, err
		}
	}

	c.arena.Bytes()[ptr.Offset] |= byte(record.Committed)
	c.committed.Store(end)

	if c.opts.SyncOnWrite {
		if err := c.sync(ptr.Offset, 1); err != nil {
			c.logger.Error("commit flag not flushed", "offset", ptr.Offset, "error", err)
			return true, fmt.Errorf("record at %d committed but not flushed: %w", ptr.Offset, err)
		}
	}
	return true, nil
}

// apply writes every op of b as one batch record: all of them become durable with a
// single commit.
func (c *core) apply(b *batch.Batch) error {
	if err := c.writable(); err != nil {
		return err
	}
	ops := b.Ops()
	if len(ops) == 0 {
		return nil
	}
	if uint64(len(ops)) > math.MaxUint32 {
		return dberrors.NewTooLarge("entry", uint64(len(ops)), math.MaxUint32)
	}

	entries := make([]*pending, len(ops))
	sizes := make([]uint64, len(ops))
	var side, body uint64
	for i, op := range ops {
		p := fromOp(op)
		s, err := c.plan(p)
		if err != nil {
			return err
		}
		entries[i], sizes[i] = p, c.size(p)
		side += s
		body += sizes[i]
	}
	if body > math.MaxUint32 {
		return dberrors.NewTooLarge("entry", body, math.MaxUint32)
	}
	hdr := record.BatchHeaderSize(uint32(len(ops)), uint32(body))
	if err := c.reserve(side + hdr + body + checksum.Size); err != nil {
		return err
	}

	mark := c.arena.Allocated()
	ptrs, frame, err := c.writeBatch(entries, sizes, body)
	if err != nil {
		c.arena.Rewind(mark)
		return err
	}
	committed, err := c.commit(mark, frame)
	if !committed {
		return err
	}
	for _, p := range ptrs {
		if ierr := c.table.Insert(p); ierr != nil {
			return ierr
		}
	}
	return err
}

func (c *core) writeBatch(entries []*pending, sizes []uint64, body uint64) ([]record.Pointer, record.Pointer, error) {
	for _, p := range entries {
		if err := c.spill(p); err != nil {
			return nil, record.Pointer{}, err
		}
	}
	hdr := record.BatchHeaderSize(uint32(len(entries)), uint32(body))
	off, region, err := c.arena.Allocate(hdr + body + checksum.Size)
	if err != nil {
		return nil, record.Pointer{}, err
	}
	record.PutBatchHeader(region, uint32(len(entries)), uint32(body))

	ptrs := make([]record.Pointer, len(entries))
	pos := hdr
	for i, p := range entries {
		if err := c.encode(region[pos:pos+sizes[i]], p); err != nil {
			return nil, record.Pointer{}, err
		}
		ptrs[i] = record.Pointer{Offset: off + uint32(pos), Size: uint32(sizes[i])}
		pos += sizes[i]
	}
	frame := record.Pointer{Offset: off, Size: uint32(hdr + body)}
	checksum.Put(region[frame.Size:], record.Sum(c.sum, c.arena.Bytes(), frame))
	return ptrs, frame, nil
}
