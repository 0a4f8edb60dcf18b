package sparse

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/entitycore/pkg/assert"
)

// RefSet is a sparse set of heap-allocated values. It runs the same swap-remove algorithm as Set,
// but a slot is present exactly when its pointer is non-nil, so nil can never be stored.
type RefSet[T any] struct {
	mu      sync.RWMutex
	sparse  []*T        // nil means absent
	indices []int       // Back-pointers into dense, meaningful only where sparse[i] != nil
	dense   []Entry[*T] // Packed (index, pointer) pairs, cap == capacity

	guard   atomic.Uint64
	lastGen uint64
}

var _ guarded[*int] = (*RefSet[int])(nil)

// NewRefSet creates a reference set that can hold indices in [0, capacity).
func NewRefSet[T any](capacity int) *RefSet[T] {
	assert.That(capacity >= 0, "capacity must be non-negative, got %d", capacity)

	return &RefSet[T]{
		sparse:  make([]*T, capacity),
		indices: make([]int, capacity),
		dense:   make([]Entry[*T], 0, capacity),
	}
}

// Cap returns the fixed capacity of the set.
func (s *RefSet[T]) Cap() int {
	return len(s.sparse)
}

// Len returns the number of present indices.
func (s *RefSet[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dense)
}

// Set stores value at index. Setting nil is the same as Remove. Panics with ErrInvalidIndex if
// index is outside the capacity.
func (s *RefSet[T]) Set(index int, value *T) {
	s.checkIndex(index)

	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		s.remove(index)
		return
	}
	s.set(index, value)
}

// Get returns the value at index, or nil and false when it is absent or out of range.
func (s *RefSet[T]) Get(index int) (*T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.inRange(index) {
		return nil, false
	}
	v := s.sparse[index]
	return v, v != nil
}

// At returns the value at index. Unlike Get it treats absence as an error and returns
// ErrNotPresent rather than a nil pointer. Panics with ErrInvalidIndex if index is outside the
// capacity.
func (s *RefSet[T]) At(index int) (*T, error) {
	s.checkIndex(index)

	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.sparse[index]
	if v == nil {
		return nil, eris.Wrapf(ErrNotPresent, "index %d", index)
	}
	return v, nil
}

// Has reports whether index holds a value.
func (s *RefSet[T]) Has(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inRange(index) && s.sparse[index] != nil
}

// Remove deletes the value at index. Returns false and changes nothing if index is absent.
// Panics with ErrInvalidIndex if index is outside the capacity.
func (s *RefSet[T]) Remove(index int) bool {
	s.checkIndex(index)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(index)
}

// Clear drops every reference without releasing any capacity. Runs in O(Len).
func (s *RefSet[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.dense {
		s.sparse[e.Index] = nil
	}
	clear(s.dense)
	s.dense = s.dense[:0]
}

// GetMut acquires a guard over index, storing new(T) there first if the index is absent. The
// guard follows the same rules as Set.GetMut. Setting the guarded pointer to nil removes the
// index on Release.
func (s *RefSet[T]) GetMut(index int) MutRef[*T] {
	s.checkIndex(index)

	s.mu.Lock()
	if s.sparse[index] == nil {
		s.set(index, new(T))
	}
	s.lastGen++
	s.guard.Store(s.lastGen)
	return MutRef[*T]{owner: s, index: index, gen: s.lastGen}
}

// Update runs fn against the slot at index under a guard, creating it with new(T) if absent. If
// fn sets the slot to nil the index is removed.
func (s *RefSet[T]) Update(index int, fn func(v **T)) {
	ref := s.GetMut(index)
	defer ref.Release()
	fn(ref.Value())
}

// All returns an iterator over (index, value) pairs in dense order. The shared lock is held
// for the whole iteration, so the loop body must not write to this set.
func (s *RefSet[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		for _, e := range s.dense {
			if !yield(e.Index, e.Value) {
				return
			}
		}
	}
}

// Indices returns an iterator over the present indices in dense order.
func (s *RefSet[T]) Indices() iter.Seq[int] {
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

// AppendIndices appends the present indices to dst in dense order.
func (s *RefSet[T]) AppendIndices(dst []int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.dense {
		dst = append(dst, e.Index)
	}
	return dst
}

// Mask overwrites dst with the set of present indices.
func (s *RefSet[T]) Mask(dst *bitmap.Bitmap) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dst.Clear()
	for _, e := range s.dense {
		dst.Set(uint32(e.Index)) //nolint:gosec // capacity is bounded by the partition width
	}
}

// Cursor returns an unsynchronized enumerator over the dense view. See Set.Cursor for the rules.
func (s *RefSet[T]) Cursor() Cursor[*T] {
	return Cursor[*T]{dense: s.dense, pos: -1}
}

// -------------------------------------------------------------------------------------------------
// Internal
// -------------------------------------------------------------------------------------------------

func (s *RefSet[T]) set(index int, value *T) {
	if s.sparse[index] != nil {
		s.sparse[index] = value
		s.dense[s.indices[index]].Value = value
		return
	}

	assert.That(len(s.dense) < cap(s.dense), "dense view would grow past capacity %d", cap(s.dense))
	s.sparse[index] = value
	s.indices[index] = len(s.dense)
	s.dense = append(s.dense, Entry[*T]{Index: index, Value: value})
}

func (s *RefSet[T]) remove(index int) bool {
	if s.sparse[index] == nil {
		return false
	}
	s.unlink(index)
	s.sparse[index] = nil
	return true
}

// unlink drops the dense entry of index, leaving the sparse slot untouched.
func (s *RefSet[T]) unlink(index int) {
	d := s.indices[index]
	last := len(s.dense) - 1
	moved := s.dense[last]
	s.dense[d] = moved
	s.indices[moved.Index] = d

	s.dense[last] = Entry[*T]{}
	s.dense = s.dense[:last]
}

func (s *RefSet[T]) inRange(index int) bool {
	return index >= 0 && index < len(s.sparse)
}

func (s *RefSet[T]) checkIndex(index int) {
	if !s.inRange(index) {
		panic(eris.Wrapf(ErrInvalidIndex, "index %d, capacity %d", index, len(s.sparse)))
	}
}

func (s *RefSet[T]) slot(index int) **T {
	return &s.sparse[index]
}

func (s *RefSet[T]) holds(gen uint64) bool {
	return gen != 0 && s.guard.Load() == gen
}

func (s *RefSet[T]) release(index int) {
	if v := s.sparse[index]; v != nil {
		s.dense[s.indices[index]].Value = v
	} else {
		s.unlink(index)
	}

	s.guard.Store(0)
	s.mu.Unlock()
}
