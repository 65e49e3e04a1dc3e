package util

import (
	"sort"
	"testing"
)

func newIntHeap() *DeadlineHeap[int] {
	return NewDeadlineHeap[int](func(a, b int) bool { return a < b })
}

func TestNewDeadlineHeap(t *testing.T) {
	h := newIntHeap()

	if h.Len() != 0 {
		t.Errorf("new heap should be empty, has length %d", h.Len())
	}
	if _, _, ok := h.PeekMin(); ok {
		t.Error("PeekMin on empty heap should return ok=false")
	}
	if _, _, ok := h.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

func TestAddAndPopOrder(t *testing.T) {
	h := newIntHeap()

	h.Add(1, 100)
	h.Add(2, 200)
	h.Add(3, 50)

	if h.Len() != 3 {
		t.Fatalf("heap should have 3 items, has %d", h.Len())
	}

	key, deadline, ok := h.PeekMin()
	if !ok || key != 3 || deadline != 50 {
		t.Errorf("expected min (3,50), got (%d,%d)", key, deadline)
	}

	var popped []int
	for h.Len() > 0 {
		k, _, _ := h.PopMin()
		popped = append(popped, k)
	}

	want := []int{3, 1, 2}
	for i := range want {
		if popped[i] != want[i] {
			t.Errorf("pop order %v, want %v", popped, want)
			break
		}
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	// All entries share a deadline; pop order must be the key order, no
	// matter the insertion order.
	keys := []int{7, 1, 9, 3, 5}

	h := newIntHeap()
	for _, k := range keys {
		h.Add(k, 42)
	}

	sorted := append([]int(nil), keys...)
	sort.Ints(sorted)

	for _, want := range sorted {
		got, _, ok := h.PopMin()
		if !ok || got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestAddUpdatesDeadline(t *testing.T) {
	h := newIntHeap()

	h.Add(1, 100)
	h.Add(2, 200)
	h.Add(2, 10) // move key 2 to the front

	if h.Len() != 2 {
		t.Fatalf("update must not grow the heap, has %d items", h.Len())
	}

	key, deadline, _ := h.PeekMin()
	if key != 2 || deadline != 10 {
		t.Errorf("expected min (2,10), got (%d,%d)", key, deadline)
	}
}

func TestRemove(t *testing.T) {
	h := newIntHeap()

	h.Add(1, 100)
	h.Add(2, 50)
	h.Add(3, 200)

	deadline, ok := h.Remove(2)
	if !ok || deadline != 50 {
		t.Errorf("Remove(2) = (%d,%t), want (50,true)", deadline, ok)
	}
	if h.Contains(2) {
		t.Error("removed key must not be contained")
	}
	if _, ok := h.Remove(2); ok {
		t.Error("second Remove must report absence")
	}

	key, _, _ := h.PopMin()
	if key != 1 {
		t.Errorf("heap order broken after removal, popped %d", key)
	}
}

func TestMax(t *testing.T) {
	h := newIntHeap()

	if _, _, ok := h.Max(); ok {
		t.Error("Max on empty heap should return ok=false")
	}

	h.Add(1, 100)
	h.Add(2, 300)
	h.Add(3, 200)

	key, deadline, ok := h.Max()
	if !ok || key != 2 || deadline != 300 {
		t.Errorf("expected max (2,300), got (%d,%d)", key, deadline)
	}

	// Equal deadlines: the greater key is considered "further".
	h2 := newIntHeap()
	h2.Add(4, 100)
	h2.Add(9, 100)
	h2.Add(6, 100)

	if key, _, _ := h2.Max(); key != 9 {
		t.Errorf("expected max key 9 on deadline tie, got %d", key)
	}
}
