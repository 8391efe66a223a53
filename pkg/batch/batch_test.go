package batch

import (
	"testing"

	"ordwal/pkg/types"
)

func TestBatchBuffersInOrder(t *testing.T) {
	b := New()
	b.Put([]byte("a"), []byte("1"))
	b.DeleteAt([]byte("b"), 4)
	b.RangeSet(types.Closed([]byte("c"), []byte("d")), []byte("v"), 5)
	b.RangeUnset(types.All(), 6)
	b.RangeDelete(types.All(), 7)

	if b.Count() != 5 {
		t.Fatalf("Count = %d, want 5", b.Count())
	}
	want := []Kind{Put, Delete, RangeSet, RangeUnset, RangeDelete}
	for i, op := range b.Ops() {
		if op.Kind != want[i] {
			t.Fatalf("op %d kind = %d, want %d", i, op.Kind, want[i])
		}
	}
	if b.Ops()[1].Version != 4 || string(b.Ops()[2].Value) != "v" {
		t.Fatalf("op fields lost: %+v", b.Ops())
	}

	b.Clear()
	if b.Count() != 0 {
		t.Fatalf("Count after Clear = %d", b.Count())
	}
}
