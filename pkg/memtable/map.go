package memtable

import (
	"fmt"
)

// Map is an ordered map with one writer and any number of concurrent readers.
// Iteration callbacks return false to stop.
type Map[K, V any] interface {
	Load(k K) (V, bool)
	Store(k K, v V)
	// Ascend visits every entry in ascending order.
	Ascend(fn func(K, V) bool)
	// AscendFrom visits entries with keys >= pivot in ascending order.
	AscendFrom(pivot K, fn func(K, V) bool)
	// Descend visits every entry in descending order.
	Descend(fn func(K, V) bool)
	// DescendFrom visits entries with keys <= pivot in descending order.
	DescendFrom(pivot K, fn func(K, V) bool)
	Len() int
}

// Backend selects the Map implementation.
type Backend string

const (
	SkipMap Backend = "skipmap"
	BTree   Backend = "btree"
)

// NewMap returns an empty map ordered by cmp.
func NewMap[K, V any](backend Backend, cmp func(a, b K) int) (Map[K, V], error) {
	switch backend {
	case "", SkipMap:
		return NewSkipMap[K, V](cmp), nil
	case BTree:
		return NewBTree[K, V](cmp), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}
