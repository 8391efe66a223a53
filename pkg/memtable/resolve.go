package memtable

import (
	"iter"

	"ordwal/pkg/record"
	"ordwal/pkg/types"
)

// shadowed reports whether a range deletion written at a version in [v, q] covers key.
func (t *Table) shadowed(key []byte, v, q uint64) bool {
	hit := false
	t.deletions.Ascend(func(k rangeKey, _ ref) bool {
		// starts only grow from here on
		if !k.rng.AfterStart(key) {
			return false
		}
		if k.version >= v && k.version <= q && k.rng.BeforeEnd(key) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// covering finds the range update with the highest version in [v, q] that covers key.
// Equal versions go to the smaller end bound, then to the first one met in index order.
func (t *Table) covering(key []byte, v, q uint64) (rangeKey, ref, bool) {
	var (
		best    rangeKey
		bestRef ref
		found   bool
	)
	t.updates.Ascend(func(k rangeKey, r ref) bool {
		if !k.rng.AfterStart(key) {
			return false
		}
		if k.version < v || k.version > q || !k.rng.BeforeEnd(key) {
			return true
		}
		if !found || k.version > best.version ||
			(k.version == best.version && types.CompareEnd(k.rng.End, best.rng.End) < 0) {
			best, bestRef, found = k, r, true
		}
		return true
	})
	return best, bestRef, found
}

// resolve computes what a read at q sees for the point entry r written at v.
// The entry must not be shadowed.
func (t *Table) resolve(key []byte, v uint64, r ref, q uint64) Item {
	if k, u, ok := t.covering(key, v, q); ok && u.flags&record.RangeSet != 0 {
		return Item{Key: key, Value: t.decode(u.ptr).Value, Version: k.version}
	}
	if r.flags&record.Removed != 0 {
		return Item{Key: key, Version: v, Tombstone: true}
	}
	return Item{Key: key, Value: t.decode(r.ptr).Value, Version: v}
}

// latest walks the versions of key not newer than q and resolves the first unshadowed one.
func (t *Table) latest(key []byte, c chain, q uint64) (Item, bool) {
	var (
		item  Item
		found bool
	)
	c.AscendFrom(q, func(v uint64, r ref) bool {
		if t.shadowed(key, v, q) {
			return true
		}
		item, found = t.resolve(key, v, r, q), true
		return false
	})
	return item, found
}

// Get returns what a read of key at version q observes.
func (t *Table) Get(key []byte, q uint64, mode Mode) (Item, bool) {
	c, ok := t.points.Load(key)
	if !ok {
		return Item{}, false
	}
	item, ok := t.latest(key, c, q)
	if !ok || (item.Tombstone && mode == Latest) {
		return Item{}, false
	}
	return item, true
}

// Contains reports whether key has a visible, non-removed value at q.
func (t *Table) Contains(key []byte, q uint64) bool {
	_, ok := t.Get(key, q, Latest)
	return ok
}

func (t *Table) emit(key []byte, c chain, q uint64, mode Mode, yield func(Item) bool) bool {
	if mode == AllVersions {
		cont := true
		c.AscendFrom(q, func(v uint64, r ref) bool {
			if t.shadowed(key, v, q) {
				return true
			}
			cont = yield(t.resolve(key, v, r, q))
			return cont
		})
		return cont
	}

	item, ok := t.latest(key, c, q)
	if !ok || (item.Tombstone && mode == Latest) {
		return true
	}
	return yield(item)
}

// Ascend yields what a read at q observes for every key in r, in ascending key order.
func (t *Table) Ascend(r types.Range, q uint64, mode Mode) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		visit := func(key []byte, c chain) bool {
			if !r.BeforeEnd(key) {
				return false
			}
			if !r.AfterStart(key) {
				return true
			}
			return t.emit(key, c, q, mode, yield)
		}
		if r.Start.Kind == types.Unbounded {
			t.points.Ascend(visit)
			return
		}
		t.points.AscendFrom(r.Start.Key, visit)
	}
}

// Descend is Ascend in descending key order.
func (t *Table) Descend(r types.Range, q uint64, mode Mode) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		visit := func(key []byte, c chain) bool {
			if !r.AfterStart(key) {
				return false
			}
			if !r.BeforeEnd(key) {
				return true
			}
			return t.emit(key, c, q, mode, yield)
		}
		if r.End.Kind == types.Unbounded {
			t.points.Descend(visit)
			return
		}
		t.points.DescendFrom(r.End.Key, visit)
	}
}

// First returns the first item of seq.
func First(seq iter.Seq[Item]) (Item, bool) {
	for item := range seq {
		return item, true
	}
	return Item{}, false
}
