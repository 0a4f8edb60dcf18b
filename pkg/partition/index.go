// Package partition splits entity storage into a small Global partition that survives scene
// resets and a large Scene partition that is cleared by them.
//
// An Index is a closed sum type: the only implementations are Global and Scene, so code that
// receives an Index always knows which partition it addresses and mixing the two widths is a
// compile error rather than an off-by-offset bug.
package partition

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// MaxGlobal is the largest number of Global slots a partition can address.
const MaxGlobal = 1 << 16

// MaxScene is the largest number of Scene slots a partition can address. It is an int64 so the
// bound stays representable where int is 32 bits wide.
const MaxScene int64 = 1 << 32

// Index addresses one slot of either the Global or the Scene partition.
type Index interface {
	// IsGlobal reports whether the index addresses the Global partition.
	IsGlobal() bool
	// Int returns the slot number inside its own partition.
	Int() int
	String() string

	isIndex()
}

// Global is an index into the Global partition.
type Global uint16

// Scene is an index into the Scene partition.
type Scene uint32

var (
	_ Index = Global(0)
	_ Index = Scene(0)
)

func (Global) isIndex() {}
func (Global) IsGlobal() bool { return true }
func (g Global) Int() int { return int(g) }
func (g Global) String() string { return "global:" + strconv.FormatUint(uint64(g), 10) }

func (Scene) isIndex() {}
func (Scene) IsGlobal() bool { return false }
func (s Scene) Int() int { return int(s) }
func (s Scene) String() string { return "scene:" + strconv.FormatUint(uint64(s), 10) }

// Match calls exactly one of onGlobal or onScene depending on the partition of idx and returns
// its result. Panics with ErrInvalidIndex if idx is nil.
func Match[R any](idx Index, onGlobal func(Global) R, onScene func(Scene) R) R {
	switch v := idx.(type) {
	case Global:
		return onGlobal(v)
	case Scene:
		return onScene(v)
	default:
		panic(invalid(idx))
	}
}

// Visit is Match for callbacks that return nothing.
func Visit(idx Index, onGlobal func(Global), onScene func(Scene)) {
	switch v := idx.(type) {
	case Global:
		onGlobal(v)
	case Scene:
		onScene(v)
	default:
		panic(invalid(idx))
	}
}

// Valid reports whether idx is a usable partition index.
func Valid(idx Index) bool {
	switch idx.(type) {
	case Global, Scene:
		return true
	default:
		return false
	}
}

func invalid(idx Index) error {
	return eris.Wrapf(ErrInvalidIndex, "got %T", idx)
}
