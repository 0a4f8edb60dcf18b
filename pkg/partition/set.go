package partition

import (
	"iter"

	"github.com/argus-labs/entitycore/pkg/assert"
	"github.com/argus-labs/entitycore/pkg/sparse"
)

// Set holds one sparse.Set per partition and routes every call by the tag of its Index. The two
// inner sets share no state, so clearing one never touches the other.
type Set[T any] struct {
	global *sparse.Set[T]
	scene  *sparse.Set[T]
}

// NewSet creates a partitioned set with the given per-partition capacities.
func NewSet[T any](globalCap, sceneCap int) *Set[T] {
	assert.That(globalCap <= MaxGlobal, "global capacity %d exceeds %d", globalCap, MaxGlobal)
	assert.That(int64(sceneCap) <= MaxScene, "scene capacity %d exceeds %d", sceneCap, MaxScene)

	return &Set[T]{
		global: sparse.NewSet[T](globalCap),
		scene:  sparse.NewSet[T](sceneCap),
	}
}

// Global returns the inner set of the Global partition.
func (s *Set[T]) Global() *sparse.Set[T] { return s.global }

// Scene returns the inner set of the Scene partition.
func (s *Set[T]) Scene() *sparse.Set[T] { return s.scene }

// Len returns the number of present indices across both partitions.
func (s *Set[T]) Len() int {
	return s.global.Len() + s.scene.Len()
}

// Set stores value at idx.
func (s *Set[T]) Set(idx Index, value T) {
	s.inner(idx).Set(idx.Int(), value)
}

// Get returns the value at idx and whether it is present.
func (s *Set[T]) Get(idx Index) (T, bool) {
	return s.inner(idx).Get(idx.Int())
}

// At returns the raw slot at idx, the zero value when absent.
func (s *Set[T]) At(idx Index) T {
	return s.inner(idx).At(idx.Int())
}

// Has reports whether idx holds a value.
func (s *Set[T]) Has(idx Index) bool {
	return s.inner(idx).Has(idx.Int())
}

// Remove deletes the value at idx and reports whether it was present.
func (s *Set[T]) Remove(idx Index) bool {
	return s.inner(idx).Remove(idx.Int())
}

// GetMut acquires a guard on idx in its partition. See sparse.Set.GetMut.
func (s *Set[T]) GetMut(idx Index) sparse.MutRef[T] {
	return s.inner(idx).GetMut(idx.Int())
}

// Update runs fn against the slot at idx under a guard.
func (s *Set[T]) Update(idx Index, fn func(v *T)) {
	s.inner(idx).Update(idx.Int(), fn)
}

// Clear empties both partitions.
func (s *Set[T]) Clear() {
	s.global.Clear()
	s.scene.Clear()
}

// All iterates the Global partition and then the Scene partition. Each partition is read under
// its own shared lock, so the pair is not a single atomic snapshot.
func (s *Set[T]) All() iter.Seq2[Index, T] {
	return func(yield func(Index, T) bool) {
		for i, v := range s.global.All() {
			if !yield(Global(i), v) {
				return
			}
		}
		for i, v := range s.scene.All() {
			if !yield(Scene(i), v) { //nolint:gosec // bounded by the scene capacity
				return
			}
		}
	}
}

// inner is a type switch rather than Match so routing does not allocate closures.
func (s *Set[T]) inner(idx Index) *sparse.Set[T] {
	switch idx.(type) {
	case Global:
		return s.global
	case Scene:
		return s.scene
	default:
		panic(invalid(idx))
	}
}
