package types

import "bytes"

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// Version is a caller supplied, monotonically increasing sequence number used for MVCC.
// Unversioned logs pin every record to version 0.
type Version = uint64

// BoundKind says how a Bound treats its key.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

func (k BoundKind) String() string {
	switch k {
	case Unbounded:
		return "unbounded"
	case Included:
		return "included"
	case Excluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Bound is one end of a key range.
type Bound struct {
	Kind BoundKind
	Key  Key
}

func UnboundedBound() Bound { return Bound{Kind: Unbounded} }
func IncludedBound(k Key) Bound { return Bound{Kind: Included, Key: k} }
func ExcludedBound(k Key) Bound { return Bound{Kind: Excluded, Key: k} }

// Range is a key interval described by two bounds.
type Range struct {
	Start Bound
	End   Bound
}

// All is the range covering every key.
func All() Range {
	return Range{Start: UnboundedBound(), End: UnboundedBound()}
}

// Closed returns [start, end].
func Closed(start, end Key) Range {
	return Range{Start: IncludedBound(start), End: IncludedBound(end)}
}

// HalfOpen returns [start, end).
func HalfOpen(start, end Key) Range {
	return Range{Start: IncludedBound(start), End: ExcludedBound(end)}
}

// AfterStart reports whether key is not cut off by the start bound.
func (r Range) AfterStart(key Key) bool {
	switch r.Start.Kind {
	case Included:
		return bytes.Compare(key, r.Start.Key) >= 0
	case Excluded:
		return bytes.Compare(key, r.Start.Key) > 0
	default:
		return true
	}
}

// BeforeEnd reports whether key is not cut off by the end bound.
func (r Range) BeforeEnd(key Key) bool {
	switch r.End.Kind {
	case Included:
		return bytes.Compare(key, r.End.Key) <= 0
	case Excluded:
		return bytes.Compare(key, r.End.Key) < 0
	default:
		return true
	}
}

// Contains reports whether key lies inside the range.
func (r Range) Contains(key Key) bool {
	return r.AfterStart(key) && r.BeforeEnd(key)
}

// CompareStart orders two start bounds: Unbounded first, then by key, and for equal keys
// Included before Excluded.
func CompareStart(a, b Bound) int {
	if a.Kind == Unbounded || b.Kind == Unbounded {
		return boolCmp(b.Kind == Unbounded, a.Kind == Unbounded)
	}
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return boolCmp(a.Kind == Excluded, b.Kind == Excluded)
}

// CompareEnd orders two end bounds: by key, Excluded before Included for equal keys,
// Unbounded last.
func CompareEnd(a, b Bound) int {
	if a.Kind == Unbounded || b.Kind == Unbounded {
		return boolCmp(a.Kind == Unbounded, b.Kind == Unbounded)
	}
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return boolCmp(a.Kind == Included, b.Kind == Included)
}

// boolCmp orders false before true.
func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
