// Package sparse implements fixed-capacity sparse sets: direct-addressed storage keyed by a small
// integer index with a packed dense mirror for iteration.
//
// A set is an arena. Every backing slice is allocated once by the constructor with the final
// capacity and is never reallocated, so steady-state Set/Remove do not allocate. Removal is a
// swap-remove: the last dense entry is moved into the hole, which keeps dense gap-free at the
// cost of reordering it. Iteration order is therefore insertion-relative, not index-relative.
//
// All methods except Cursor are safe for concurrent use. Writers (Set, Remove, Clear, GetMut
// until Release) take an exclusive lock; readers (Get, Has, At, All, Indices, Len) share it.
package sparse

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/entitycore/pkg/assert"
)

// absent marks an index that has no dense entry.
const absent = -1

// Entry is one element of the dense view.
type Entry[T any] struct {
	Index int // Index in the sparse array
	Value T   // Copy of the value stored at Index
}

// Set is a sparse set of value types.
type Set[T any] struct {
	mu      sync.RWMutex
	sparse  []T        // Direct-addressed values, meaningful only where indices[i] != absent
	indices []int      // Back-pointers into dense, absent when the slot is empty
	dense   []Entry[T] // Packed (index, value) pairs, cap == capacity

	guard   atomic.Uint64 // Generation of the live MutRef, 0 when none is held
	lastGen uint64        // Last generation handed out, guarded by mu
}

var _ guarded[int] = (*Set[int])(nil)

// NewSet creates a set that can hold indices in [0, capacity).
func NewSet[T any](capacity int) *Set[T] {
	assert.That(capacity >= 0, "capacity must be non-negative, got %d", capacity)

	s := &Set[T]{
		sparse:  make([]T, capacity),
		indices: make([]int, capacity),
		dense:   make([]Entry[T], 0, capacity),
	}
	for i := range s.indices {
		s.indices[i] = absent
	}
	return s
}

// Cap returns the fixed capacity of the set.
func (s *Set[T]) Cap() int {
	return len(s.sparse)
}

// Len returns the number of present indices.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dense)
}

// Set stores value at index, appending a dense entry if the index was absent and overwriting
// both views otherwise. Panics with ErrInvalidIndex if index is outside the capacity.
func (s *Set[T]) Set(index int, value T) {
	s.checkIndex(index)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(index, value)
}

// Get returns the value at index and whether it is present. Out-of-range indices are reported
// as absent.
func (s *Set[T]) Get(index int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.inRange(index) || s.indices[index] == absent {
		var zero T
		return zero, false
	}
	return s.sparse[index], true
}

// At returns the raw sparse slot at index, which is the zero value when the index is absent.
// Panics with ErrInvalidIndex if index is outside the capacity.
func (s *Set[T]) At(index int) T {
	s.checkIndex(index)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sparse[index]
}

// Has reports whether index holds a value.
func (s *Set[T]) Has(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inRange(index) && s.indices[index] != absent
}

// Remove deletes the value at index. Returns false and changes nothing if index is absent.
// Panics with ErrInvalidIndex if index is outside the capacity.
func (s *Set[T]) Remove(index int) bool {
	s.checkIndex(index)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(index)
}

// Clear removes every value without releasing any capacity. Runs in O(Len), not O(Cap).
func (s *Set[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	for _, e := range s.dense {
		s.sparse[e.Index] = zero
		s.indices[e.Index] = absent
	}
	clear(s.dense)
	s.dense = s.dense[:0]
}

// GetMut acquires a guard over index, creating a zero value there if the index is absent.
// The guard holds the set's write lock until Release. Panics with ErrInvalidIndex if index is
// outside the capacity.
//
// The caller must release the guard before doing anything else with this set, usually with
// defer:
//
//	ref := s.GetMut(i)
//	defer ref.Release()
//	ref.Value().Current -= damage
//
// Acquiring a second guard on the same set from the goroutine that holds the first deadlocks.
func (s *Set[T]) GetMut(index int) MutRef[T] {
	s.checkIndex(index)

	s.mu.Lock()
	if s.indices[index] == absent {
		var zero T
		s.set(index, zero)
	}
	s.lastGen++
	s.guard.Store(s.lastGen)
	return MutRef[T]{owner: s, index: index, gen: s.lastGen}
}

// Update runs fn against the slot at index under a guard and releases it afterwards, creating a
// zero value first if the index is absent.
func (s *Set[T]) Update(index int, fn func(v *T)) {
	ref := s.GetMut(index)
	defer ref.Release()
	fn(ref.Value())
}

// All returns an iterator over the dense view as (index, value) pairs in dense order. The
// shared lock is held for the whole iteration, so the loop body must not write to this set;
// snapshot with AppendIndices first when it needs to.
func (s *Set[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		for _, e := range s.dense {
			if !yield(e.Index, e.Value) {
				return
			}
		}
	}
}

// Indices returns an iterator over the present indices in dense order, with the same locking
// rules as All.
func (s *Set[T]) Indices() iter.Seq[int] {
	return func(yield func(int) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		for _, e := range s.dense {
			if !yield(e.Index) {
				return
			}
		}
	}
}

// AppendIndices appends the present indices to dst in dense order and returns the extended
// slice. The snapshot is taken under the shared lock and is safe to mutate against.
func (s *Set[T]) AppendIndices(dst []int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.dense {
		dst = append(dst, e.Index)
	}
	return dst
}

// Mask overwrites dst with the set of present indices.
func (s *Set[T]) Mask(dst *bitmap.Bitmap) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dst.Clear()
	for _, e := range s.dense {
		dst.Set(uint32(e.Index)) //nolint:gosec // capacity is bounded by the partition width
	}
}

// Cursor returns an unsynchronized enumerator over the dense view.
//
// Cursor takes no lock. It exists for per-frame hot loops that already know no writer can run
// on this set, e.g. systems scheduled after all mutations of the frame. Using a Cursor while
// any goroutine writes to the set is a data race with undefined results.
func (s *Set[T]) Cursor() Cursor[T] {
	return Cursor[T]{dense: s.dense, pos: -1}
}

// -------------------------------------------------------------------------------------------------
// Internal
// -------------------------------------------------------------------------------------------------

// set expects the caller to hold the write lock.
func (s *Set[T]) set(index int, value T) {
	s.sparse[index] = value
	if d := s.indices[index]; d != absent {
		s.dense[d].Value = value
		return
	}

	assert.That(len(s.dense) < cap(s.dense), "dense view would grow past capacity %d", cap(s.dense))
	s.indices[index] = len(s.dense)
	s.dense = append(s.dense, Entry[T]{Index: index, Value: value})
}

// remove expects the caller to hold the write lock.
func (s *Set[T]) remove(index int) bool {
	d := s.indices[index]
	if d == absent {
		return false
	}

	// Move the last entry into the hole and repoint it. When d is the last entry this is a
	// self-assignment that the truncation below discards.
	last := len(s.dense) - 1
	moved := s.dense[last]
	s.dense[d] = moved
	s.indices[moved.Index] = d

	s.dense[last] = Entry[T]{}
	s.dense = s.dense[:last]

	var zero T
	s.sparse[index] = zero
	s.indices[index] = absent
	return true
}

func (s *Set[T]) inRange(index int) bool {
	return index >= 0 && index < len(s.sparse)
}

func (s *Set[T]) checkIndex(index int) {
	if !s.inRange(index) {
		panic(eris.Wrapf(ErrInvalidIndex, "index %d, capacity %d", index, len(s.sparse)))
	}
}

// slot, release and holds implement guarded for MutRef.

func (s *Set[T]) slot(index int) *T {
	return &s.sparse[index]
}

func (s *Set[T]) holds(gen uint64) bool {
	return gen != 0 && s.guard.Load() == gen
}

func (s *Set[T]) release(index int) {
	d := s.indices[index]
	assert.That(d != absent, "guarded index %d was removed while the guard was held", index)
	s.dense[d].Value = s.sparse[index]

	s.guard.Store(0)
	s.mu.Unlock()
}
