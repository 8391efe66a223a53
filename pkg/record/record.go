// Package record defines the binary layout of log records and decodes them in place.
//
// A top-level record is either a single entry or a batch:
//
//	entry  := flags(1) | version(8, versioned logs) | uvarint(klen<<32 | vlen) | key(klen) | value(vlen)
//	batch  := flags(1) | uvarint(count<<32 | blen) | entry{count} or raw bytes when count is 0
//	record := (entry | batch) | checksum(8)
//
// Entries inside a batch never carry the committed bit and have no checksum of their own.
// A batch with zero entries holds out-of-line key or value bytes referenced by pointers.
//
// The key region of a range entry is
//
//	uvarint(slen<<32 | elen) | tag(1) | start(slen) | tag(1) | end(elen)
//
// where the low two bits of a tag hold the bound kind and bit 2 marks an indirect key.
// All integers are little endian.
package record

import (
	"encoding/binary"
	"errors"
)

// Flags is the first byte of every entry.
type Flags uint8

const (
	Committed Flags = 1 << iota
	Removed
	KeyIndirect
	ValueIndirect
	RangeSet
	RangeDeletion
	RangeUnset
	Batch
)

const rangeMask = RangeSet | RangeDeletion | RangeUnset

func (f Flags) Committed() bool { return f&Committed != 0 }
func (f Flags) Batch() bool     { return f&Batch != 0 }

// IsRange reports whether the entry describes a key range rather than a single key.
func (f Flags) IsRange() bool { return f&rangeMask != 0 }

// HasValue reports whether the value region holds a value.
func (f Flags) HasValue() bool {
	return f&(Removed|RangeDeletion|RangeUnset) == 0
}

func (f Flags) String() string {
	switch {
	case f.Batch():
		return "batch"
	case f&RangeDeletion != 0:
		return "range-deletion"
	case f&RangeSet != 0:
		return "range-set"
	case f&RangeUnset != 0:
		return "range-unset"
	case f&Removed != 0:
		return "remove"
	default:
		return "insert"
	}
}

const (
	// PointerSize is the inline size of an encoded Pointer.
	PointerSize = 8
	// VersionSize is the size of the version field in versioned logs.
	VersionSize = 8
	// ChecksumSize is the size of the trailing checksum of a top-level record.
	ChecksumSize = 8
	// MinimalSize is the smallest possible top-level record.
	MinimalSize = 1 + 1 + ChecksumSize
)

var (
	// ErrIncomplete is returned when a record's extent is unknown or runs past the buffer.
	ErrIncomplete = errors.New("record: incomplete")
	// ErrMalformed is returned when the bytes of a record are inconsistent.
	ErrMalformed = errors.New("record: malformed")
)

// Pointer addresses Size bytes at Offset in the log. For entries the offset is the flags
// byte and the size excludes any checksum.
type Pointer struct {
	Offset uint32
	Size   uint32
}

func (p Pointer) End() uint64 {
	return uint64(p.Offset) + uint64(p.Size)
}

func (p Pointer) Put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], p.Offset)
	binary.LittleEndian.PutUint32(dst[4:8], p.Size)
}

func ReadPointer(src []byte) Pointer {
	return Pointer{
		Offset: binary.LittleEndian.Uint32(src[0:4]),
		Size:   binary.LittleEndian.Uint32(src[4:8]),
	}
}

// View returns the bytes p addresses, bounds checked against buf.
func View(buf []byte, p Pointer) ([]byte, error) {
	if p.End() > uint64(len(buf)) {
		return nil, ErrMalformed
	}
	return buf[p.Offset:p.End():p.End()], nil
}

func packLens(a, b uint32) uint64 {
	return uint64(a)<<32 | uint64(b)
}

func unpackLens(x uint64) (uint32, uint32) {
	return uint32(x >> 32), uint32(x)
}

func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}
