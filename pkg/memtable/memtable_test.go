package memtable

import (
	"fmt"
	"slices"
	"testing"

	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// fixture appends raw entries to a buffer and indexes them, the way the log does.
type fixture struct {
	t     *testing.T
	buf   []byte
	off   uint32
	table *Table
	vers  bool
}

func newFixture(t *testing.T, backend Backend, versioned bool) *fixture {
	t.Helper()
	buf := make([]byte, 1<<16)
	table, err := New(backend, buf, versioned)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{t: t, buf: buf, off: 8, table: table, vers: versioned}
}

func (f *fixture) write(flags record.Flags, version uint64, key []byte, rng *types.Range, value []byte) {
	f.t.Helper()
	var klen uint64
	var start, end record.BoundSlot
	if rng != nil {
		start = record.BoundSlot{Kind: rng.Start.Kind, Key: rng.Start.Key}
		end = record.BoundSlot{Kind: rng.End.Kind, Key: rng.End.Key}
		klen = record.RangeRegionSize(start, end)
	} else {
		klen = uint64(len(key))
	}
	size := record.EntrySize(f.vers, uint32(klen), uint32(len(value)))
	dst := f.buf[f.off:]
	n := record.PutEntryHeader(dst, flags|record.Committed, f.vers, version, uint32(klen), uint32(len(value)))
	if rng != nil {
		n += record.PutRange(dst[n:], start, end)
	} else {
		n += copy(dst[n:], key)
	}
	copy(dst[n:], value)

	p := record.Pointer{Offset: f.off, Size: uint32(size)}
	f.off += uint32(size) + record.ChecksumSize
	if err := f.table.Insert(p); err != nil {
		f.t.Fatalf("Insert: %v", err)
	}
}

func (f *fixture) insert(key, value string, v uint64) {
	f.write(0, v, []byte(key), nil, []byte(value))
}

func (f *fixture) remove(key string, v uint64) {
	f.write(record.Removed, v, []byte(key), nil, nil)
}

func (f *fixture) rangeDelete(r types.Range, v uint64) {
	f.write(record.RangeDeletion, v, nil, &r, nil)
}

func (f *fixture) rangeSet(r types.Range, value string, v uint64) {
	f.write(record.RangeSet, v, nil, &r, []byte(value))
}

func (f *fixture) rangeUnset(r types.Range, v uint64) {
	f.write(record.RangeUnset, v, nil, &r, nil)
}

func (f *fixture) get(key string, q uint64) string {
	item, ok := f.table.Get([]byte(key), q, Latest)
	if !ok {
		return "<absent>"
	}
	return string(item.Value)
}

func closed(a, b string) types.Range {
	return types.Closed([]byte(a), []byte(b))
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend Backend)) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) { fn(t, backend) })
	}
}

func TestPointVisibility(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("a", "a1", 1)
		f.insert("a", "a2", 3)

		want := map[uint64]string{0: "<absent>", 1: "a1", 2: "a1", 3: "a2", 100: "a2"}
		for q, v := range want {
			if got := f.get("a", q); got != v {
				t.Fatalf("get(a, %d) = %s, want %s", q, got, v)
			}
		}
	})
}

func TestRangeDeletionShadow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("b", "b1", 1)
		f.rangeDelete(closed("a", "c"), 2)

		if got := f.get("b", 1); got != "b1" {
			t.Fatalf("get(b, 1) = %s", got)
		}
		if got := f.get("b", 2); got != "<absent>" {
			t.Fatalf("get(b, 2) = %s", got)
		}

		f.insert("b", "b3", 3)
		if got := f.get("b", 3); got != "b3" {
			t.Fatalf("get(b, 3) = %s", got)
		}
		if got := f.get("b", 2); got != "<absent>" {
			t.Fatalf("get(b, 2) = %s after reinsert", got)
		}
	})
}

func TestRangeDeletionBounds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		for _, k := range []string{"a", "b", "c", "d"} {
			f.insert(k, k, 1)
		}
		f.rangeDelete(types.HalfOpen([]byte("b"), []byte("d")), 2)

		var got []string
		for item := range f.table.Ascend(types.All(), 2, Latest) {
			got = append(got, string(item.Key))
		}
		if !slices.Equal(got, []string{"a", "d"}) {
			t.Fatalf("visible keys = %v", got)
		}

		f.rangeDelete(types.Range{Start: types.ExcludedBound([]byte("c")), End: types.UnboundedBound()}, 3)
		got = got[:0]
		for item := range f.table.Ascend(types.All(), 3, Latest) {
			got = append(got, string(item.Key))
		}
		if !slices.Equal(got, []string{"a"}) {
			t.Fatalf("visible keys = %v", got)
		}
	})
}

func TestRangeUpdateOverride(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("m", "v1", 1)
		f.rangeSet(closed("k", "p"), "R", 2)

		if got := f.get("m", 2); got != "R" {
			t.Fatalf("get(m, 2) = %s", got)
		}
		item, _ := f.table.Get([]byte("m"), 2, Latest)
		if item.Version != 2 {
			t.Fatalf("override version = %d, want 2", item.Version)
		}
		if got := f.get("m", 1); got != "v1" {
			t.Fatalf("get(m, 1) = %s", got)
		}

		f.rangeUnset(closed("k", "p"), 3)
		if got := f.get("m", 3); got != "v1" {
			t.Fatalf("get(m, 3) = %s", got)
		}

		// a newer point entry is not overridden by an older range update
		f.insert("m", "v4", 4)
		f.rangeSet(closed("a", "z"), "older", 2)
		if got := f.get("m", 4); got != "v4" {
			t.Fatalf("get(m, 4) = %s", got)
		}
	})
}

func TestRangeUpdateTieBreak(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("m", "v", 1)
		f.rangeSet(closed("a", "z"), "wide", 5)
		f.rangeSet(closed("k", "n"), "narrow", 5)
		if got := f.get("m", 5); got != "narrow" {
			t.Fatalf("get(m, 5) = %s, want the smaller end bound", got)
		}
	})
}

func TestRangeSetOverTombstone(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("x", "x1", 1)
		f.remove("x", 2)
		if got := f.get("x", 2); got != "<absent>" {
			t.Fatalf("get(x, 2) = %s", got)
		}
		item, ok := f.table.Get([]byte("x"), 2, LatestWithTombstone)
		if !ok || !item.Tombstone || item.Version != 2 {
			t.Fatalf("tombstone read = %+v, %v", item, ok)
		}

		f.rangeSet(closed("w", "y"), "R", 3)
		if got := f.get("x", 3); got != "R" {
			t.Fatalf("get(x, 3) = %s", got)
		}
	})
}

func TestIterationDeduplication(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, true)
		f.insert("x", "x1", 1)
		f.insert("x", "x2", 2)
		f.insert("x", "x3", 3)
		f.insert("y", "y1", 1)

		var latest []string
		for item := range f.table.Ascend(types.All(), 3, Latest) {
			latest = append(latest, fmt.Sprintf("%s=%s", item.Key, item.Value))
		}
		if !slices.Equal(latest, []string{"x=x3", "y=y1"}) {
			t.Fatalf("latest = %v", latest)
		}

		var all []string
		for item := range f.table.Ascend(types.All(), 3, AllVersions) {
			all = append(all, fmt.Sprintf("%s@%d", item.Key, item.Version))
		}
		if !slices.Equal(all, []string{"x@3", "x@2", "x@1", "y@1"}) {
			t.Fatalf("all versions = %v", all)
		}

		var rev []string
		for item := range f.table.Descend(types.All(), 2, Latest) {
			rev = append(rev, fmt.Sprintf("%s=%s", item.Key, item.Value))
		}
		if !slices.Equal(rev, []string{"y=y1", "x=x2"}) {
			t.Fatalf("descending = %v", rev)
		}
	})
}

func TestAscendBounds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, false)
		for _, k := range []string{"a", "b", "c", "d", "e"} {
			f.insert(k, k, 0)
		}
		r := types.Range{Start: types.ExcludedBound([]byte("b")), End: types.IncludedBound([]byte("d"))}

		var got []string
		for item := range f.table.Ascend(r, 0, Latest) {
			got = append(got, string(item.Key))
		}
		if !slices.Equal(got, []string{"c", "d"}) {
			t.Fatalf("ascend = %v", got)
		}

		got = got[:0]
		for item := range f.table.Descend(r, 0, Latest) {
			got = append(got, string(item.Key))
		}
		if !slices.Equal(got, []string{"d", "c"}) {
			t.Fatalf("descend = %v", got)
		}

		item, ok := First(f.table.Ascend(types.Range{Start: types.IncludedBound([]byte("bb")), End: types.UnboundedBound()}, 0, Latest))
		if !ok || string(item.Key) != "c" {
			t.Fatalf("lower bound of bb = %s, %v", item.Key, ok)
		}
	})
}

func TestUniqueMode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		f := newFixture(t, backend, false)
		f.insert("k", "one", 0)
		f.insert("k", "two", 0)
		if got := f.get("k", 0); got != "two" {
			t.Fatalf("get(k) = %s", got)
		}
		if f.table.Keys() != 1 || f.table.Entries() != 2 {
			t.Fatalf("keys = %d, entries = %d", f.table.Keys(), f.table.Entries())
		}

		f.rangeSet(closed("a", "z"), "bulk", 0)
		if got := f.get("k", 0); got != "bulk" {
			t.Fatalf("get(k) = %s after range set", got)
		}
		f.rangeDelete(closed("j", "l"), 0)
		if got := f.get("k", 0); got != "<absent>" {
			t.Fatalf("get(k) = %s after range delete", got)
		}
	})
}

func TestVersionSummary(t *testing.T) {
	f := newFixture(t, SkipMap, true)
	if f.table.MayContainVersion(100) {
		t.Fatalf("empty table may not contain versions")
	}
	f.insert("a", "a", 5)
	f.rangeDelete(closed("a", "b"), 9)
	f.insert("b", "b", 3)

	if f.table.MinimumVersion() != 3 || f.table.MaximumVersion() != 9 {
		t.Fatalf("min/max = %d/%d", f.table.MinimumVersion(), f.table.MaximumVersion())
	}
	if f.table.MayContainVersion(2) || !f.table.MayContainVersion(3) {
		t.Fatalf("MayContainVersion is off")
	}
}
