package wal

import (
	"iter"

	"ordwal/pkg/batch"
	"ordwal/pkg/config"
	"ordwal/pkg/memtable"
	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// Reader reads a log as of a single version: version 0 for logs opened with Open, or the
// version a snapshot of a versioned log was taken at. Readers are safe for concurrent use
// with each other and with the writer.
type Reader struct {
	handle
	q uint64
}

func (r *Reader) view() view { return view{c: r.c, q: r.q} }

// Clone returns an independent handle on the same log.
func (r *Reader) Clone() *Reader {
	r.c.acquire()
	return &Reader{handle: handle{c: r.c}, q: r.q}
}

// Version is the version every read of r observes.
func (r *Reader) Version() uint64 { return r.q }

// Get returns the value visible for key.
func (r *Reader) Get(key []byte) ([]byte, bool) {
	e, ok := r.view().get(key, memtable.Latest)
	return e.Value, ok
}

func (r *Reader) Contains(key []byte) bool {
	_, ok := r.Get(key)
	return ok
}

// GetWithTombstone also reports keys whose visible entry is a tombstone.
func (r *Reader) GetWithTombstone(key []byte) (Entry, bool) {
	return r.view().get(key, memtable.LatestWithTombstone)
}

// LowerBound returns the first visible entry at or after b.
func (r *Reader) LowerBound(b types.Bound) (Entry, bool) {
	return r.view().lowerBound(b, memtable.Latest)
}

func (r *Reader) LowerBoundWithTombstone(b types.Bound) (Entry, bool) {
	return r.view().lowerBound(b, memtable.LatestWithTombstone)
}

// UpperBound returns the last visible entry at or before b.
func (r *Reader) UpperBound(b types.Bound) (Entry, bool) {
	return r.view().upperBound(b, memtable.Latest)
}

func (r *Reader) UpperBoundWithTombstone(b types.Bound) (Entry, bool) {
	return r.view().upperBound(b, memtable.LatestWithTombstone)
}

func (r *Reader) First() (Entry, bool) {
	return r.LowerBound(types.UnboundedBound())
}

func (r *Reader) Last() (Entry, bool) {
	return r.UpperBound(types.UnboundedBound())
}

func (r *Reader) FirstWithTombstone() (Entry, bool) {
	return r.LowerBoundWithTombstone(types.UnboundedBound())
}

func (r *Reader) LastWithTombstone() (Entry, bool) {
	return r.UpperBoundWithTombstone(types.UnboundedBound())
}

// Iter yields every visible key once, in ascending order.
func (r *Reader) Iter() iter.Seq[Entry] {
	return r.view().scan(types.All(), memtable.Latest)
}

// IterRev is Iter in descending order.
func (r *Reader) IterRev() iter.Seq[Entry] {
	return r.view().scanRev(types.All(), memtable.Latest)
}

func (r *Reader) Range(rg types.Range) iter.Seq[Entry] {
	return r.view().scan(rg, memtable.Latest)
}

func (r *Reader) RangeRev(rg types.Range) iter.Seq[Entry] {
	return r.view().scanRev(rg, memtable.Latest)
}

// IterWithTombstone yields every visible version of every key, tombstones included,
// newest version first within a key.
func (r *Reader) IterWithTombstone() iter.Seq[Entry] {
	return r.view().scan(types.All(), memtable.AllVersions)
}

func (r *Reader) RangeWithTombstone(rg types.Range) iter.Seq[Entry] {
	return r.view().scan(rg, memtable.AllVersions)
}

func (r *Reader) Keys() iter.Seq[[]byte] { return keysOf(r.Iter()) }

func (r *Reader) Values() iter.Seq[[]byte] { return valuesOf(r.Iter()) }

func (r *Reader) RangeKeys(rg types.Range) iter.Seq[[]byte] { return keysOf(r.Range(rg)) }

func (r *Reader) RangeValues(rg types.Range) iter.Seq[[]byte] { return valuesOf(r.Range(rg)) }

// Log is the single writer of a log without versions. Every record is stored at
// version 0: a later write to a key replaces the earlier one.
type Log struct {
	Reader
	w writer
}

// Open creates or recovers the log described by opts.
func Open(opts config.Options) (*Log, error) {
	c, err := open(opts, false)
	if err != nil {
		return nil, err
	}
	l := &Log{Reader: Reader{handle: handle{c: c}}}
	l.w.start(c)
	return l, nil
}

func (l *Log) append(p *pending) error {
	if err := l.w.check(); err != nil {
		return err
	}
	if _, err := l.c.append(p); err != nil {
		return err
	}
	l.w.committed()
	return nil
}

func (l *Log) Insert(key, value []byte) error {
	return l.InsertWith(record.Bytes(key), record.Bytes(value))
}

// InsertWith writes the key and the value with caller supplied writers. A writer error
// is returned as is and leaves the log unchanged.
func (l *Log) InsertWith(key, value record.Payload) error {
	return l.append(pointEntry(0, 0, key, value))
}

func (l *Log) Remove(key []byte) error {
	return l.append(pointEntry(record.Removed, 0, record.Bytes(key), nil))
}

// RangeDelete hides every key in rg.
func (l *Log) RangeDelete(rg types.Range) error {
	return l.append(rangeEntry(record.RangeDeletion, 0, rg, nil))
}

// RangeSet makes every key in rg read as value.
func (l *Log) RangeSet(rg types.Range, value []byte) error {
	return l.append(rangeEntry(record.RangeSet, 0, rg, record.Bytes(value)))
}

// RangeUnset cancels earlier range sets over rg.
func (l *Log) RangeUnset(rg types.Range) error {
	return l.append(rangeEntry(record.RangeUnset, 0, rg, nil))
}

// Apply writes b atomically. Versions in b are ignored.
func (l *Log) Apply(b *batch.Batch) error {
	if err := l.w.check(); err != nil {
		return err
	}
	if err := l.c.apply(b); err != nil {
		return err
	}
	l.w.committed()
	return nil
}

func (l *Log) Flush() error { return l.c.flush() }

func (l *Log) FlushAsync() error { return l.c.flushAsync() }

func (l *Log) WriteReserved(p []byte) error { return l.c.writeReserved(p) }

// Close stops writing and releases the writer's handle. Cloned readers stay usable.
func (l *Log) Close() error {
	if err := l.w.close(l.c); err != nil {
		return err
	}
	return l.Reader.Close()
}
