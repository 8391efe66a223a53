package memtable

import (
	"sync"

	"github.com/google/btree"
)

const btreeDegree = 32

type pair[K, V any] struct {
	k K
	v V
}

// bTree is a Map over a copy-on-write B-tree. Writes and point reads take the lock;
// scans run over an O(1) clone taken under the lock, so a scan never blocks the writer.
type bTree[K, V any] struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[pair[K, V]]
}

func NewBTree[K, V any](cmp func(a, b K) int) Map[K, V] {
	less := func(a, b pair[K, V]) bool { return cmp(a.k, b.k) < 0 }
	return &bTree[K, V]{tree: btree.NewG(btreeDegree, less)}
}

func (m *bTree[K, V]) Load(k K) (V, bool) {
	m.mu.RLock()
	p, ok := m.tree.Get(pair[K, V]{k: k})
	m.mu.RUnlock()
	return p.v, ok
}

func (m *bTree[K, V]) Store(k K, v V) {
	m.mu.Lock()
	m.tree.ReplaceOrInsert(pair[K, V]{k: k, v: v})
	m.mu.Unlock()
}

// snapshot clones the tree. Clone touches the copy-on-write context of the original,
// hence the exclusive lock.
func (m *bTree[K, V]) snapshot() *btree.BTreeG[pair[K, V]] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Clone()
}

func (m *bTree[K, V]) Ascend(fn func(K, V) bool) {
	m.snapshot().Ascend(func(p pair[K, V]) bool { return fn(p.k, p.v) })
}

func (m *bTree[K, V]) AscendFrom(pivot K, fn func(K, V) bool) {
	m.snapshot().AscendGreaterOrEqual(pair[K, V]{k: pivot}, func(p pair[K, V]) bool { return fn(p.k, p.v) })
}

func (m *bTree[K, V]) Descend(fn func(K, V) bool) {
	m.snapshot().Descend(func(p pair[K, V]) bool { return fn(p.k, p.v) })
}

func (m *bTree[K, V]) DescendFrom(pivot K, fn func(K, V) bool) {
	m.snapshot().DescendLessOrEqual(pair[K, V]{k: pivot}, func(p pair[K, V]) bool { return fn(p.k, p.v) })
}

func (m *bTree[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}
