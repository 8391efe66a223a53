package record

import (
	"encoding/binary"

	"ordwal/pkg/types"
)

// Payload writes exactly Len bytes into the region it is handed.
type Payload interface {
	Len() int
	Encode(dst []byte) error
}

// Bytes is a Payload that copies itself.
type Bytes []byte

func (b Bytes) Len() int { return len(b) }

func (b Bytes) Encode(dst []byte) error {
	copy(dst, b)
	return nil
}

// PayloadFunc adapts a sized function to Payload.
type PayloadFunc struct {
	Size int
	Fn   func(dst []byte) error
}

func (p PayloadFunc) Len() int { return p.Size }

func (p PayloadFunc) Encode(dst []byte) error { return p.Fn(dst) }

// EntrySize is the encoded size of an entry with the given region lengths.
func EntrySize(versioned bool, klen, vlen uint32) uint64 {
	n := 1 + uint64(uvarintLen(packLens(klen, vlen))) + uint64(klen) + uint64(vlen)
	if versioned {
		n += VersionSize
	}
	return n
}

// PutEntryHeader writes flags, version and the packed lengths, returning the header length.
func PutEntryHeader(dst []byte, flags Flags, versioned bool, version uint64, klen, vlen uint32) int {
	dst[0] = byte(flags)
	n := 1
	if versioned {
		binary.LittleEndian.PutUint64(dst[n:], version)
		n += VersionSize
	}
	return n + binary.PutUvarint(dst[n:], packLens(klen, vlen))
}

// BatchHeaderSize is the size of a batch record header with count entries spanning bodyLen bytes.
func BatchHeaderSize(count, bodyLen uint32) uint64 {
	return 1 + uint64(uvarintLen(packLens(count, bodyLen)))
}

// PutBatchHeader writes an uncommitted batch header and returns its length.
func PutBatchHeader(dst []byte, count, bodyLen uint32) int {
	dst[0] = byte(Batch)
	return 1 + binary.PutUvarint(dst[1:], packLens(count, bodyLen))
}

// BoundSlot is a range bound ready to be written: its key inline, or a pointer to it.
type BoundSlot struct {
	Kind     types.BoundKind
	Key      []byte
	Indirect bool
	Ptr      Pointer
}

const (
	tagKindMask = 0x03
	tagIndirect = 0x04
)

func (b BoundSlot) payloadLen() uint32 {
	switch {
	case b.Kind == types.Unbounded:
		return 0
	case b.Indirect:
		return PointerSize
	default:
		return uint32(len(b.Key))
	}
}

func (b BoundSlot) tag() byte {
	t := byte(b.Kind) & tagKindMask
	if b.Indirect && b.Kind != types.Unbounded {
		t |= tagIndirect
	}
	return t
}

func (b BoundSlot) put(dst []byte) int {
	dst[0] = b.tag()
	switch {
	case b.Kind == types.Unbounded:
		return 1
	case b.Indirect:
		b.Ptr.Put(dst[1:])
		return 1 + PointerSize
	default:
		return 1 + copy(dst[1:], b.Key)
	}
}

// RangeRegionSize is the size of the key region of a range entry.
func RangeRegionSize(start, end BoundSlot) uint64 {
	s, e := start.payloadLen(), end.payloadLen()
	return uint64(uvarintLen(packLens(s, e))) + 2 + uint64(s) + uint64(e)
}

// PutRange writes the key region of a range entry and returns its length.
func PutRange(dst []byte, start, end BoundSlot) int {
	n := binary.PutUvarint(dst, packLens(start.payloadLen(), end.payloadLen()))
	n += start.put(dst[n:])
	n += end.put(dst[n:])
	return n
}
