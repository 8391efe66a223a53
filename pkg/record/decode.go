package record

import (
	"encoding/binary"
	"fmt"

	"ordwal/pkg/checksum"
	"ordwal/pkg/types"
)

// Entry is a decoded entry. Every slice aliases the log buffer.
type Entry struct {
	Flags   Flags
	Version uint64
	// Key is set for point entries, Range for range entries.
	Key   []byte
	Range types.Range
	// Value is nil when the entry carries no value. An empty value is a non-nil empty slice.
	Value []byte
}

// DecodeEntry decodes the entry p points at without copying.
func DecodeEntry(buf []byte, p Pointer, versioned bool) (Entry, error) {
	region, err := View(buf, p)
	if err != nil {
		return Entry{}, err
	}
	if len(region) == 0 {
		return Entry{}, ErrMalformed
	}

	e := Entry{Flags: Flags(region[0])}
	pos := 1
	if versioned {
		if len(region) < pos+VersionSize {
			return Entry{}, ErrMalformed
		}
		e.Version = binary.LittleEndian.Uint64(region[pos:])
		pos += VersionSize
	}
	packed, n := binary.Uvarint(region[pos:])
	if n <= 0 {
		return Entry{}, ErrMalformed
	}
	pos += n
	klen, vlen := unpackLens(packed)
	if uint64(pos)+uint64(klen)+uint64(vlen) != uint64(len(region)) {
		return Entry{}, ErrMalformed
	}
	keyRegion := region[pos : pos+int(klen)]
	valueRegion := region[pos+int(klen):]

	if e.Flags.IsRange() {
		if e.Range, err = decodeRange(buf, keyRegion); err != nil {
			return Entry{}, err
		}
	} else {
		if e.Key, err = resolve(buf, keyRegion, e.Flags&KeyIndirect != 0); err != nil {
			return Entry{}, err
		}
	}

	if e.Flags.HasValue() {
		if e.Value, err = resolve(buf, valueRegion, e.Flags&ValueIndirect != 0); err != nil {
			return Entry{}, err
		}
	} else if len(valueRegion) != 0 {
		return Entry{}, ErrMalformed
	}
	return e, nil
}

func resolve(buf, region []byte, indirect bool) ([]byte, error) {
	if !indirect {
		return region, nil
	}
	if len(region) != PointerSize {
		return nil, ErrMalformed
	}
	return View(buf, ReadPointer(region))
}

func decodeRange(buf, region []byte) (types.Range, error) {
	packed, n := binary.Uvarint(region)
	if n <= 0 {
		return types.Range{}, ErrMalformed
	}
	slen, elen := unpackLens(packed)
	if uint64(n)+2+uint64(slen)+uint64(elen) != uint64(len(region)) {
		return types.Range{}, ErrMalformed
	}
	rest := region[n:]
	start, err := decodeBound(buf, rest[0], rest[1:1+slen])
	if err != nil {
		return types.Range{}, err
	}
	rest = rest[1+slen:]
	end, err := decodeBound(buf, rest[0], rest[1:1+elen])
	if err != nil {
		return types.Range{}, err
	}
	return types.Range{Start: start, End: end}, nil
}

func decodeBound(buf []byte, tag byte, payload []byte) (types.Bound, error) {
	kind := types.BoundKind(tag & tagKindMask)
	switch kind {
	case types.Unbounded:
		if len(payload) != 0 {
			return types.Bound{}, ErrMalformed
		}
		return types.UnboundedBound(), nil
	case types.Included, types.Excluded:
		key, err := resolve(buf, payload, tag&tagIndirect != 0)
		if err != nil {
			return types.Bound{}, err
		}
		return types.Bound{Kind: kind, Key: key}, nil
	default:
		return types.Bound{}, ErrMalformed
	}
}

// Frame is a top-level record located in the log but not yet validated.
type Frame struct {
	Flags  Flags
	Offset uint32
	// Size covers everything but the trailing checksum.
	Size uint32
	// Count and Body describe a batch: number of entries and offset of the first body byte.
	Count uint32
	Body  uint32
}

// End is the offset just past the checksum.
func (f Frame) End() uint64 {
	return uint64(f.Offset) + uint64(f.Size) + ChecksumSize
}

// Pointer addresses the record without its checksum.
func (f Frame) Pointer() Pointer {
	return Pointer{Offset: f.Offset, Size: f.Size}
}

// ParseFrame reads the header of the record at off. It returns ErrIncomplete when the
// header or the declared extent does not fit into buf.
func ParseFrame(buf []byte, off uint32, versioned bool) (Frame, error) {
	if uint64(off)+MinimalSize > uint64(len(buf)) {
		return Frame{}, ErrIncomplete
	}
	f := Frame{Flags: Flags(buf[off]), Offset: off}
	pos := uint64(off) + 1

	if f.Flags.Batch() {
		packed, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return Frame{}, ErrIncomplete
		}
		count, bodyLen := unpackLens(packed)
		f.Count = count
		f.Body = uint32(pos) + uint32(n)
		size := 1 + uint64(n) + uint64(bodyLen)
		return f.withSize(buf, size)
	}

	if versioned {
		pos += VersionSize
	}
	if pos >= uint64(len(buf)) {
		return Frame{}, ErrIncomplete
	}
	packed, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return Frame{}, ErrIncomplete
	}
	klen, vlen := unpackLens(packed)
	size := pos + uint64(n) + uint64(klen) + uint64(vlen) - uint64(off)
	return f.withSize(buf, size)
}

func (f Frame) withSize(buf []byte, size uint64) (Frame, error) {
	if size > uint64(^uint32(0)) || uint64(f.Offset)+size+ChecksumSize > uint64(len(buf)) {
		return Frame{}, ErrIncomplete
	}
	f.Size = uint32(size)
	return f, nil
}

// Sum computes the checksum of the record as if its committed bit were set.
func Sum(c checksum.Checksumer, buf []byte, p Pointer) uint64 {
	c.Reset()
	c.Update([]byte{buf[p.Offset] | byte(Committed)})
	c.Update(buf[p.Offset+1 : p.End()])
	return c.Digest()
}

// Verify checks the stored checksum of the record.
func (f Frame) Verify(buf []byte, c checksum.Checksumer) bool {
	p := f.Pointer()
	return Sum(c, buf, p) == checksum.Read(buf[p.End():])
}

// Entries calls fn with a pointer to every entry of a batch, or to the record itself
// when it is a single entry. Side records yield nothing.
func (f Frame) Entries(buf []byte, versioned bool, fn func(Pointer) error) error {
	if !f.Flags.Batch() {
		return fn(f.Pointer())
	}
	if f.Count == 0 {
		return nil
	}
	end := f.Pointer().End()
	off := uint64(f.Body)
	for i := uint32(0); i < f.Count; i++ {
		size, err := entrySize(buf[:end], off, versioned)
		if err != nil {
			return fmt.Errorf("batch at %d, entry %d: %w", f.Offset, i, err)
		}
		if err := fn(Pointer{Offset: uint32(off), Size: uint32(size)}); err != nil {
			return err
		}
		off += size
	}
	if off != end {
		return fmt.Errorf("batch at %d: %d trailing bytes: %w", f.Offset, end-off, ErrMalformed)
	}
	return nil
}

func entrySize(buf []byte, off uint64, versioned bool) (uint64, error) {
	pos := off + 1
	if versioned {
		pos += VersionSize
	}
	if pos >= uint64(len(buf)) {
		return 0, ErrMalformed
	}
	if Flags(buf[off])&(Committed|Batch) != 0 {
		return 0, ErrMalformed
	}
	packed, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return 0, ErrMalformed
	}
	klen, vlen := unpackLens(packed)
	size := pos + uint64(n) + uint64(klen) + uint64(vlen) - off
	if off+size > uint64(len(buf)) {
		return 0, ErrMalformed
	}
	return size, nil
}
