package sparse

import "github.com/rotisserie/eris"

var (
	// ErrInvalidIndex is the panic value when a write or guard targets an index outside the
	// set's fixed capacity. It is a programmer error, never a recoverable condition.
	ErrInvalidIndex = eris.New("index out of range")

	// ErrNotPresent is returned by RefSet.At when the slot holds no value.
	ErrNotPresent = eris.New("no value at index")

	// ErrStaleGuard is the panic value when a MutRef is used after it has been released.
	ErrStaleGuard = eris.New("mutable reference used after release")
)
