package wal

import (
	"iter"

	"ordwal/pkg/batch"
	"ordwal/pkg/config"
	"ordwal/pkg/memtable"
	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// VersionedReader reads a multi-version log. Every read takes the version it observes:
// the newest entry at or below that version wins, after range deletions and range
// updates written up to that version are applied.
type VersionedReader struct {
	handle
}

func (r *VersionedReader) at(version uint64) view { return view{c: r.c, q: version} }

func (r *VersionedReader) Clone() *VersionedReader {
	r.c.acquire()
	return &VersionedReader{handle: handle{c: r.c}}
}

// Snapshot returns a reader pinned to version. It holds its own reference to the log.
func (r *VersionedReader) Snapshot(version uint64) *Reader {
	r.c.acquire()
	return &Reader{handle: handle{c: r.c}, q: version}
}

func (r *VersionedReader) MinimumVersion() uint64 { return r.c.table.MinimumVersion() }

func (r *VersionedReader) MaximumVersion() uint64 { return r.c.table.MaximumVersion() }

// MayContainVersion reports whether a read at version can observe anything.
func (r *VersionedReader) MayContainVersion(version uint64) bool {
	return r.c.table.MayContainVersion(version)
}

func (r *VersionedReader) Get(version uint64, key []byte) ([]byte, bool) {
	e, ok := r.at(version).get(key, memtable.Latest)
	return e.Value, ok
}

func (r *VersionedReader) Contains(version uint64, key []byte) bool {
	_, ok := r.Get(version, key)
	return ok
}

// GetEntry is Get with the version the value was written at.
func (r *VersionedReader) GetEntry(version uint64, key []byte) (Entry, bool) {
	return r.at(version).get(key, memtable.Latest)
}

func (r *VersionedReader) GetWithTombstone(version uint64, key []byte) (Entry, bool) {
	return r.at(version).get(key, memtable.LatestWithTombstone)
}

func (r *VersionedReader) LowerBound(version uint64, b types.Bound) (Entry, bool) {
	return r.at(version).lowerBound(b, memtable.Latest)
}

func (r *VersionedReader) LowerBoundWithTombstone(version uint64, b types.Bound) (Entry, bool) {
	return r.at(version).lowerBound(b, memtable.LatestWithTombstone)
}

func (r *VersionedReader) UpperBound(version uint64, b types.Bound) (Entry, bool) {
	return r.at(version).upperBound(b, memtable.Latest)
}

func (r *VersionedReader) UpperBoundWithTombstone(version uint64, b types.Bound) (Entry, bool) {
	return r.at(version).upperBound(b, memtable.LatestWithTombstone)
}

func (r *VersionedReader) First(version uint64) (Entry, bool) {
	return r.LowerBound(version, types.UnboundedBound())
}

func (r *VersionedReader) Last(version uint64) (Entry, bool) {
	return r.UpperBound(version, types.UnboundedBound())
}

func (r *VersionedReader) FirstWithTombstone(version uint64) (Entry, bool) {
	return r.LowerBoundWithTombstone(version, types.UnboundedBound())
}

func (r *VersionedReader) LastWithTombstone(version uint64) (Entry, bool) {
	return r.UpperBoundWithTombstone(version, types.UnboundedBound())
}

func (r *VersionedReader) Iter(version uint64) iter.Seq[Entry] {
	return r.at(version).scan(types.All(), memtable.Latest)
}

func (r *VersionedReader) IterRev(version uint64) iter.Seq[Entry] {
	return r.at(version).scanRev(types.All(), memtable.Latest)
}

func (r *VersionedReader) Range(version uint64, rg types.Range) iter.Seq[Entry] {
	return r.at(version).scan(rg, memtable.Latest)
}

func (r *VersionedReader) RangeRev(version uint64, rg types.Range) iter.Seq[Entry] {
	return r.at(version).scanRev(rg, memtable.Latest)
}

// IterWithTombstone yields every version at or below version of every key, tombstones
// included, newest first within a key.
func (r *VersionedReader) IterWithTombstone(version uint64) iter.Seq[Entry] {
	return r.at(version).scan(types.All(), memtable.AllVersions)
}

func (r *VersionedReader) RangeWithTombstone(version uint64, rg types.Range) iter.Seq[Entry] {
	return r.at(version).scan(rg, memtable.AllVersions)
}

// Keys yields every key visible at version once, in ascending order.
func (r *VersionedReader) Keys(version uint64) iter.Seq[[]byte] {
	return keysOf(r.Iter(version))
}

func (r *VersionedReader) Values(version uint64) iter.Seq[[]byte] {
	return valuesOf(r.Iter(version))
}

func (r *VersionedReader) RangeKeys(version uint64, rg types.Range) iter.Seq[[]byte] {
	return keysOf(r.Range(version, rg))
}

func (r *VersionedReader) RangeValues(version uint64, rg types.Range) iter.Seq[[]byte] {
	return valuesOf(r.Range(version, rg))
}

// KeysAllVersions yields the key of every entry IterWithTombstone yields, so a key
// repeats once per version.
func (r *VersionedReader) KeysAllVersions(version uint64) iter.Seq[[]byte] {
	return keysOf(r.IterWithTombstone(version))
}

// ValuesAllVersions yields the value of every entry IterWithTombstone yields, nil for
// tombstones.
func (r *VersionedReader) ValuesAllVersions(version uint64) iter.Seq[[]byte] {
	return valuesOf(r.IterWithTombstone(version))
}

func (r *VersionedReader) RangeKeysAllVersions(version uint64, rg types.Range) iter.Seq[[]byte] {
	return keysOf(r.RangeWithTombstone(version, rg))
}

func (r *VersionedReader) RangeValuesAllVersions(version uint64, rg types.Range) iter.Seq[[]byte] {
	return valuesOf(r.RangeWithTombstone(version, rg))
}

// VersionedLog is the single writer of a multi-version log.
type VersionedLog struct {
	VersionedReader
	w writer
}

// OpenVersioned creates or recovers the multi-version log described by opts.
func OpenVersioned(opts config.Options) (*VersionedLog, error) {
	c, err := open(opts, true)
	if err != nil {
		return nil, err
	}
	l := &VersionedLog{VersionedReader: VersionedReader{handle: handle{c: c}}}
	l.w.start(c)
	return l, nil
}

func (l *VersionedLog) append(p *pending) error {
	if err := l.w.check(); err != nil {
		return err
	}
	if _, err := l.c.append(p); err != nil {
		return err
	}
	l.w.committed()
	return nil
}

func (l *VersionedLog) Insert(version uint64, key, value []byte) error {
	return l.InsertWith(version, record.Bytes(key), record.Bytes(value))
}

// InsertWith writes the key and the value with caller supplied writers.
func (l *VersionedLog) InsertWith(version uint64, key, value record.Payload) error {
	return l.append(pointEntry(0, version, key, value))
}

func (l *VersionedLog) Remove(version uint64, key []byte) error {
	return l.append(pointEntry(record.Removed, version, record.Bytes(key), nil))
}

func (l *VersionedLog) RangeDelete(version uint64, rg types.Range) error {
	return l.append(rangeEntry(record.RangeDeletion, version, rg, nil))
}

func (l *VersionedLog) RangeSet(version uint64, rg types.Range, value []byte) error {
	return l.append(rangeEntry(record.RangeSet, version, rg, record.Bytes(value)))
}

func (l *VersionedLog) RangeUnset(version uint64, rg types.Range) error {
	return l.append(rangeEntry(record.RangeUnset, version, rg, nil))
}

// Apply writes b atomically, each op at its own version.
func (l *VersionedLog) Apply(b *batch.Batch) error {
	if err := l.w.check(); err != nil {
		return err
	}
	if err := l.c.apply(b); err != nil {
		return err
	}
	l.w.committed()
	return nil
}

func (l *VersionedLog) Flush() error { return l.c.flush() }

func (l *VersionedLog) FlushAsync() error { return l.c.flushAsync() }

func (l *VersionedLog) WriteReserved(p []byte) error { return l.c.writeReserved(p) }

func (l *VersionedLog) Close() error {
	if err := l.w.close(l.c); err != nil {
		return err
	}
	return l.VersionedReader.Close()
}
