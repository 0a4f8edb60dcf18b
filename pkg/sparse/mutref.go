package sparse

import "github.com/rotisserie/eris"

// guarded is the storage side of a MutRef.
type guarded[T any] interface {
	slot(index int) *T
	holds(gen uint64) bool
	release(index int)
}

// MutRef is a scoped mutable reference to one slot of a set, returned by GetMut.
//
// Writes made through Value or Set land in the sparse slot immediately but reach the dense view
// (and therefore iteration) only on Release. The guard holds the set's write lock from GetMut
// until Release, so it must be released on every path, normally with defer, and must never be
// kept across a blocking call or handed to another goroutine. Skipping Release leaves the set
// locked forever.
//
// Using a MutRef after Release panics with ErrStaleGuard. The zero MutRef is always stale.
type MutRef[T any] struct {
	owner guarded[T]
	index int
	gen   uint64
}

// Index returns the guarded index.
func (r MutRef[T]) Index() int {
	return r.index
}

// Value returns a pointer to the guarded slot. The pointer is only valid until Release.
func (r MutRef[T]) Value() *T {
	r.check()
	return r.owner.slot(r.index)
}

// Get returns the current value of the guarded slot.
func (r MutRef[T]) Get() T {
	return *r.Value()
}

// Set replaces the value of the guarded slot.
func (r MutRef[T]) Set(value T) {
	*r.Value() = value
}

// Release syncs the dense view with the slot and unlocks the set.
func (r MutRef[T]) Release() {
	r.check()
	r.owner.release(r.index)
}

func (r MutRef[T]) check() {
	if r.owner == nil || !r.owner.holds(r.gen) {
		panic(eris.Wrapf(ErrStaleGuard, "index %d", r.index))
	}
}
