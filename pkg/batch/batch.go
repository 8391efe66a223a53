package batch

import "ordwal/pkg/types"

// WriteBatch groups multiple mutations atomically.
type WriteBatch interface {
	Put(key types.Key, value types.Value)
	Delete(key types.Key)
	Clear()
	Count() int
}

// Kind is the mutation an Op performs.
type Kind uint8

const (
	Put Kind = iota
	Delete
	RangeDelete
	RangeSet
	RangeUnset
)

// Op is one buffered mutation. Key is used by point ops, Range by range ops.
type Op struct {
	Kind    Kind
	Version types.Version
	Key     types.Key
	Range   types.Range
	Value   types.Value
}

// Batch is an in-memory WriteBatch. Bytes are not copied, callers must not reuse them
// before the batch is applied.
type Batch struct {
	ops []Op
}

var _ WriteBatch = (*Batch)(nil)

func New() *Batch {
	return &Batch{}
}

func (b *Batch) Put(key types.Key, value types.Value) {
	b.PutAt(key, value, 0)
}

func (b *Batch) Delete(key types.Key) {
	b.DeleteAt(key, 0)
}

func (b *Batch) PutAt(key types.Key, value types.Value, version types.Version) {
	b.ops = append(b.ops, Op{Kind: Put, Version: version, Key: key, Value: value})
}

func (b *Batch) DeleteAt(key types.Key, version types.Version) {
	b.ops = append(b.ops, Op{Kind: Delete, Version: version, Key: key})
}

func (b *Batch) RangeDelete(r types.Range, version types.Version) {
	b.ops = append(b.ops, Op{Kind: RangeDelete, Version: version, Range: r})
}

func (b *Batch) RangeSet(r types.Range, value types.Value, version types.Version) {
	b.ops = append(b.ops, Op{Kind: RangeSet, Version: version, Range: r, Value: value})
}

func (b *Batch) RangeUnset(r types.Range, version types.Version) {
	b.ops = append(b.ops, Op{Kind: RangeUnset, Version: version, Range: r})
}

func (b *Batch) Clear() {
	b.ops = b.ops[:0]
}

func (b *Batch) Count() int {
	return len(b.ops)
}

// Ops returns the buffered mutations in insertion order.
func (b *Batch) Ops() []Op {
	return b.ops
}
