package partition

import (
	"iter"

	"github.com/argus-labs/entitycore/pkg/assert"
	"github.com/argus-labs/entitycore/pkg/sparse"
)

// RefSet is the reference-type counterpart of Set, backed by one sparse.RefSet per partition.
type RefSet[T any] struct {
	global *sparse.RefSet[T]
	scene  *sparse.RefSet[T]
}

// NewRefSet creates a partitioned reference set with the given per-partition capacities.
func NewRefSet[T any](globalCap, sceneCap int) *RefSet[T] {
	assert.That(globalCap <= MaxGlobal, "global capacity %d exceeds %d", globalCap, MaxGlobal)
	assert.That(int64(sceneCap) <= MaxScene, "scene capacity %d exceeds %d", sceneCap, MaxScene)

	return &RefSet[T]{
		global: sparse.NewRefSet[T](globalCap),
		scene:  sparse.NewRefSet[T](sceneCap),
	}
}

// Global returns the inner set of the Global partition.
func (s *RefSet[T]) Global() *sparse.RefSet[T] { return s.global }

// Scene returns the inner set of the Scene partition.
func (s *RefSet[T]) Scene() *sparse.RefSet[T] { return s.scene }

// Len returns the number of present indices across both partitions.
func (s *RefSet[T]) Len() int {
	return s.global.Len() + s.scene.Len()
}

// Set stores value at idx. A nil value removes idx.
func (s *RefSet[T]) Set(idx Index, value *T) {
	s.inner(idx).Set(idx.Int(), value)
}

// Get returns the value at idx, or nil and false when it is absent.
func (s *RefSet[T]) Get(idx Index) (*T, bool) {
	return s.inner(idx).Get(idx.Int())
}

// At returns the value at idx or an error wrapping sparse.ErrNotPresent.
func (s *RefSet[T]) At(idx Index) (*T, error) {
	return s.inner(idx).At(idx.Int())
}

// Has reports whether idx holds a value.
func (s *RefSet[T]) Has(idx Index) bool {
	return s.inner(idx).Has(idx.Int())
}

// Remove deletes the value at idx and reports whether it was present.
func (s *RefSet[T]) Remove(idx Index) bool {
	return s.inner(idx).Remove(idx.Int())
}

// GetMut acquires a guard over idx, creating a zero value there if absent.
func (s *RefSet[T]) GetMut(idx Index) sparse.MutRef[*T] {
	return s.inner(idx).GetMut(idx.Int())
}

// Update runs fn against the slot at idx under a guard. Setting the slot to nil removes idx.
func (s *RefSet[T]) Update(idx Index, fn func(v **T)) {
	s.inner(idx).Update(idx.Int(), fn)
}

// Clear empties both partitions.
func (s *RefSet[T]) Clear() {
	s.global.Clear()
	s.scene.Clear()
}

// All iterates the Global partition and then the Scene partition.
func (s *RefSet[T]) All() iter.Seq2[Index, *T] {
	return func(yield func(Index, *T) bool) {
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

func (s *RefSet[T]) inner(idx Index) *sparse.RefSet[T] {
	switch idx.(type) {
	case Global:
		return s.global
	case Scene:
		return s.scene
	default:
		panic(invalid(idx))
	}
}
