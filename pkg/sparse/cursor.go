package sparse

// Cursor is an allocation-free, unsynchronized enumerator over a set's dense view, obtained from
// Set.Cursor or RefSet.Cursor:
//
//	for c := healths.Cursor(); c.Next(); {
//	    total += c.Value().Current
//	}
//
// A Cursor captures the dense view at creation. Any structural write to the set afterwards
// (Set on a new index, Remove, Clear) invalidates it, and reading it concurrently with a writer
// is a data race. Cursor is meant for single-threaded hot loops; use All everywhere else.
type Cursor[T any] struct {
	dense []Entry[T]
	pos   int
}

// Next advances the cursor and reports whether an entry is available.
func (c *Cursor[T]) Next() bool {
	c.pos++
	return c.pos < len(c.dense)
}

// Index returns the sparse index of the current entry.
func (c *Cursor[T]) Index() int {
	return c.dense[c.pos].Index
}

// Value returns the value of the current entry.
func (c *Cursor[T]) Value() T {
	return c.dense[c.pos].Value
}

// Len returns the number of entries the cursor walks.
func (c *Cursor[T]) Len() int {
	return len(c.dense)
}

// Reset rewinds the cursor to before the first entry.
func (c *Cursor[T]) Reset() {
	c.pos = -1
}
