package memtable

import (
	"github.com/zhangyunhao116/skipmap"
)

// skipMap is a lock-free Map. The skip list only walks forward, so a second list ordered
// the other way serves descending scans.
type skipMap[K, V any] struct {
	asc  *skipmap.FuncMap[K, V]
	desc *skipmap.FuncMap[K, V]
	cmp  func(a, b K) int
}

func NewSkipMap[K, V any](cmp func(a, b K) int) Map[K, V] {
	return &skipMap[K, V]{
		asc:  skipmap.NewFunc[K, V](func(a, b K) bool { return cmp(a, b) < 0 }),
		desc: skipmap.NewFunc[K, V](func(a, b K) bool { return cmp(a, b) > 0 }),
		cmp:  cmp,
	}
}

func (m *skipMap[K, V]) Load(k K) (V, bool) {
	return m.asc.Load(k)
}

func (m *skipMap[K, V]) Store(k K, v V) {
	m.desc.Store(k, v)
	m.asc.Store(k, v)
}

func (m *skipMap[K, V]) Ascend(fn func(K, V) bool) {
	m.asc.Range(fn)
}

// AscendFrom walks from the head and skips keys below pivot: skipmap exposes no seek, so
// a bounded scan costs O(n) on this backend. The btree backend seeks in O(log n).
func (m *skipMap[K, V]) AscendFrom(pivot K, fn func(K, V) bool) {
	m.asc.Range(func(k K, v V) bool {
		if m.cmp(k, pivot) < 0 {
			return true
		}
		return fn(k, v)
	})
}

func (m *skipMap[K, V]) Descend(fn func(K, V) bool) {
	m.desc.Range(fn)
}

// DescendFrom has the same O(n) head walk as AscendFrom, over the descending list.
func (m *skipMap[K, V]) DescendFrom(pivot K, fn func(K, V) bool) {
	m.desc.Range(func(k K, v V) bool {
		if m.cmp(k, pivot) > 0 {
			return true
		}
		return fn(k, v)
	})
}

func (m *skipMap[K, V]) Len() int {
	return m.asc.Len()
}
