package testutils

// Health is a plain value component used by storage tests.
type Health struct {
	Current, Max int
}

// Position is a plain value component used by storage tests.
type Position struct {
	X, Y float64
}

// Label is a heap-allocated component, stored by reference.
type Label struct {
	Text string
}
