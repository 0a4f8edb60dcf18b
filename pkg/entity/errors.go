package entity

import "github.com/rotisserie/eris"

var (
	// ErrCapacityExhausted is returned when a partition has no free slot left. Callers must treat
	// it as a hard failure; retrying cannot succeed until something is deactivated.
	ErrCapacityExhausted = eris.New("entity capacity exhausted")

	// ErrInvalidHandle is the panic value for mutations through a zero Entity and for enabling an
	// entity that is not active.
	ErrInvalidHandle = eris.New("invalid entity handle")
)
