package memtable

import (
	"bytes"
	"cmp"
	"fmt"
	"sync/atomic"

	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// ref is what the indexes store: where the entry lives and how to read it.
type ref struct {
	ptr   record.Pointer
	flags record.Flags
}

// chain holds every version of one key, newest first.
type chain = Map[uint64, ref]

// rangeKey orders range entries by start bound, newest version first, then end bound.
// The log offset breaks the remaining ties, latest write first.
type rangeKey struct {
	rng     types.Range
	version uint64
	offset  uint32
}

func compareRangeKeys(a, b rangeKey) int {
	if c := types.CompareStart(a.rng.Start, b.rng.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(b.version, a.version); c != 0 {
		return c
	}
	if c := types.CompareEnd(a.rng.End, b.rng.End); c != 0 {
		return c
	}
	return cmp.Compare(b.offset, a.offset)
}

func descending(a, b uint64) int {
	return cmp.Compare(b, a)
}

// Table indexes the committed entries of one log: point entries, range deletions and
// range updates. Insert is reserved to the writer; everything else may run concurrently.
type Table struct {
	backend   Backend
	buf       []byte
	versioned bool

	points    Map[[]byte, chain]
	deletions Map[rangeKey, ref]
	updates   Map[rangeKey, ref]

	entries    atomic.Int64
	minVersion atomic.Uint64
	maxVersion atomic.Uint64
	hasVersion atomic.Bool
}

// New returns an empty table over buf, the log's backing bytes.
func New(backend Backend, buf []byte, versioned bool) (*Table, error) {
	points, err := NewMap[[]byte, chain](backend, bytes.Compare)
	if err != nil {
		return nil, err
	}
	deletions, _ := NewMap[rangeKey, ref](backend, compareRangeKeys)
	updates, _ := NewMap[rangeKey, ref](backend, compareRangeKeys)

	return &Table{
		backend:   backend,
		buf:       buf,
		versioned: versioned,
		points:    points,
		deletions: deletions,
		updates:   updates,
	}, nil
}

// Insert indexes the entry p points at. The entry must be committed.
func (t *Table) Insert(p record.Pointer) error {
	e, err := record.DecodeEntry(t.buf, p, t.versioned)
	if err != nil {
		return fmt.Errorf("failed to decode entry at %d: %w", p.Offset, err)
	}
	r := ref{ptr: p, flags: e.Flags}

	switch {
	case e.Flags&record.RangeDeletion != 0:
		t.deletions.Store(rangeKey{rng: e.Range, version: e.Version, offset: p.Offset}, r)
	case e.Flags&(record.RangeSet|record.RangeUnset) != 0:
		t.updates.Store(rangeKey{rng: e.Range, version: e.Version, offset: p.Offset}, r)
	default:
		c, ok := t.points.Load(e.Key)
		if !ok {
			c, _ = NewMap[uint64, ref](t.backend, descending)
			c.Store(e.Version, r)
			t.points.Store(e.Key, c)
		} else {
			c.Store(e.Version, r)
		}
	}

	t.observe(e.Version)
	t.entries.Add(1)
	return nil
}

func (t *Table) observe(v uint64) {
	if !t.hasVersion.Load() {
		t.minVersion.Store(v)
		t.maxVersion.Store(v)
		t.hasVersion.Store(true)
		return
	}
	if v < t.minVersion.Load() {
		t.minVersion.Store(v)
	}
	if v > t.maxVersion.Load() {
		t.maxVersion.Store(v)
	}
}

// Entries is the number of indexed entries of every kind and version.
func (t *Table) Entries() int {
	return int(t.entries.Load())
}

// Keys is the number of distinct point keys.
func (t *Table) Keys() int {
	return t.points.Len()
}

func (t *Table) RangeDeletions() int {
	return t.deletions.Len()
}

func (t *Table) RangeUpdates() int {
	return t.updates.Len()
}

func (t *Table) MinimumVersion() uint64 {
	return t.minVersion.Load()
}

func (t *Table) MaximumVersion() uint64 {
	return t.maxVersion.Load()
}

// MayContainVersion reports whether a read at version v can observe any entry.
func (t *Table) MayContainVersion(v uint64) bool {
	return t.hasVersion.Load() && v >= t.minVersion.Load()
}

func (t *Table) decode(p record.Pointer) record.Entry {
	// Entries were validated when they were indexed.
	e, _ := record.DecodeEntry(t.buf, p, t.versioned)
	return e
}
