package testutils

import "github.com/argus-labs/entitycore/pkg/assert"

// Gen walks every combination of the choices a test makes, one combination per loop iteration:
//
//	for g := testutils.NewGen(); !g.Done(); {
//	    op := g.Intn(2)
//	    ...
//	}
//
// Each call to a choice method records a (value, bound) pair. Done advances to the next
// combination by bumping the rightmost value that is still below its bound and zeroing
// everything after it, so the test body is replayed over the whole choice tree.
//
// See: <https://matklad.github.io/2021/11/07/generate-all-the-things.html>
type Gen struct {
	started bool
	choices [maxChoices]choice
	pos     int // choice consumed next in the current iteration
	depth   int // number of meaningful choices recorded so far
}

const maxChoices = 32

type choice struct{ value, bound uint32 }

// NewGen creates a new exhaustive generator.
func NewGen() *Gen {
	return &Gen{}
}

// Done reports whether every combination has been produced.
func (g *Gen) Done() bool {
	if !g.started {
		g.started = true
		return false
	}
	for i := g.depth - 1; i >= 0; i-- {
		if g.choices[i].value < g.choices[i].bound {
			g.choices[i].value++
			g.depth = i + 1
			g.pos = 0
			return false
		}
	}
	return true
}

func (g *Gen) next(bound uint32) uint32 {
	assert.That(g.pos < maxChoices, "exhaustigen: more than %d choices per iteration", maxChoices)
	if g.pos == g.depth {
		g.choices[g.pos] = choice{}
		g.depth++
	}
	g.choices[g.pos].bound = bound
	g.pos++
	return g.choices[g.pos-1].value
}

// Intn returns an int in [0, bound], inclusive.
func (g *Gen) Intn(bound int) int {
	return int(g.next(uint32(bound))) //nolint:gosec // bound is expected to be small in tests
}

// Index returns a valid index into a slice of the given length.
func (g *Gen) Index(length int) int {
	assert.That(length > 0, "exhaustigen: empty slice")
	return g.Intn(length - 1)
}

// Bool returns false, then true.
func (g *Gen) Bool() bool {
	return g.Intn(1) == 1
}

// Pick returns an element from the slice.
func Pick[T any](g *Gen, slice []T) T {
	return slice[g.Index(len(slice))]
}
