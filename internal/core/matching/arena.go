package order_matching

import (
	"math"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
)

// noneIndex marks an arena index as absent: no free slot, no prev/next
// link, no owning price point. It is the arena equivalent of a nil
// pointer: a sentinel, never a valid index.
const noneIndex = math.MaxUint32

// Arena is a fixed-capacity slab of T, addressed by index rather than
// pointer: the response to intrusive/cyclic structure in a language
// without a borrow checker. Freed slots join a free list and are
// recycled by the next Alloc, so the matching hot path never calls into
// the allocator.
type Arena[T any] struct {
	slots []T
	free  []uint32
	next  uint32 // low-water mark: slots below next have been touched at least once
}

// NewArena preallocates capacity slots. The arena never grows past
// capacity; Alloc past that point returns CapacityExceeded rather than
// resizing mid-match, per the memory-discipline rule that arenas expand
// only at well-defined points outside the hot path.
func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]T, capacity)}
}

// Alloc returns the index of a fresh slot holding the zero value of T,
// recycling a freed index when one is available. Both paths are O(1):
// the free list is the only allocator the matching loop ever touches.
func (a *Arena[T]) Alloc() (uint32, error) {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		var zero T
		a.slots[idx] = zero
		return idx, nil
	}
	if int(a.next) >= len(a.slots) {
		return noneIndex, coreerrors.CapacityExceeded("arena exhausted at capacity %d", len(a.slots))
	}
	idx := a.next
	a.next++
	return idx, nil
}

// Get returns a pointer to the slot at idx. Callers must not hold the
// pointer across a Free of the same index.
func (a *Arena[T]) Get(idx uint32) *T {
	return &a.slots[idx]
}

// Free returns idx to the free list for recycling.
func (a *Arena[T]) Free(idx uint32) {
	a.free = append(a.free, idx)
}

// Len reports the number of currently allocated (non-free) slots.
func (a *Arena[T]) Len() int {
	return int(a.next) - len(a.free)
}
