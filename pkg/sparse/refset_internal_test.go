package sparse

import (
	"slices"
	"testing"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/entitycore/pkg/testutils"
)

func TestRefSet_RemovedSlotIsAnError(t *testing.T) {
	t.Parallel()

	s := NewRefSet[string](8)
	a := "a"
	s.Set(5, &a)
	assert.True(t, s.Remove(5))

	got, ok := s.Get(5)
	assert.False(t, ok)
	assert.Nil(t, got)

	got, err := s.At(5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotPresent))
	assert.Nil(t, got)
	requireRefSetInvariants(t, s)
}

func TestRefSet_SetAndOverwrite(t *testing.T) {
	t.Parallel()

	s := NewRefSet[testutils.Label](4)
	first := &testutils.Label{Text: "first"}
	second := &testutils.Label{Text: "second"}

	s.Set(1, first)
	got, err := s.At(1)
	require.NoError(t, err)
	assert.Same(t, first, got)

	s.Set(1, second)
	got, ok := s.Get(1)
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, s.Len())
	assert.Same(t, second, s.dense[0].Value)
	requireRefSetInvariants(t, s)
}

func TestRefSet_SetNilRemoves(t *testing.T) {
	t.Parallel()

	s := NewRefSet[testutils.Label](4)
	s.Set(0, &testutils.Label{Text: "x"})
	s.Set(2, &testutils.Label{Text: "y"})
	s.Set(0, nil)

	assert.False(t, s.Has(0))
	assert.Equal(t, []int{2}, slices.Collect(s.Indices()))

	// Setting nil on an absent slot changes nothing.
	s.Set(3, nil)
	assert.Equal(t, 1, s.Len())
	requireRefSetInvariants(t, s)
}

func TestRefSet_OutOfRange(t *testing.T) {
	t.Parallel()

	s := NewRefSet[int](2)
	_, ok := s.Get(2)
	assert.False(t, ok)
	assert.False(t, s.Has(-1))

	for name, fn := range map[string]func(){
		"Set":    func() { s.Set(2, new(int)) },
		"At":     func() { _, _ = s.At(2) },
		"Remove": func() { s.Remove(5) },
		"GetMut": func() { s.GetMut(-1) },
	} {
		err := recoverError(fn)
		require.Error(t, err, name)
		assert.True(t, eris.Is(err, ErrInvalidIndex), "%s: %v", name, err)
	}
}

func TestRefSet_GetMut(t *testing.T) {
	t.Parallel()

	t.Run("creates a fresh value when absent", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		ref := s.GetMut(3)
		require.NotNil(t, ref.Get())
		ref.Get().Text = "made"
		ref.Release()

		got, err := s.At(3)
		require.NoError(t, err)
		assert.Equal(t, "made", got.Text)
		requireRefSetInvariants(t, s)
	})

	t.Run("swapping the pointer syncs dense on release", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		s.Set(0, &testutils.Label{Text: "old"})
		replacement := &testutils.Label{Text: "new"}

		ref := s.GetMut(0)
		ref.Set(replacement)
		assert.Equal(t, "old", s.dense[0].Value.Text)
		ref.Release()

		assert.Same(t, replacement, s.dense[0].Value)
		requireRefSetInvariants(t, s)
	})

	t.Run("setting nil through the guard removes on release", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		s.Set(0, &testutils.Label{Text: "a"})
		s.Set(1, &testutils.Label{Text: "b"})

		ref := s.GetMut(0)
		ref.Set(nil)
		ref.Release()

		assert.False(t, s.Has(0))
		assert.Equal(t, []int{1}, s.AppendIndices(nil))
		requireRefSetInvariants(t, s)
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		s.Update(2, func(v **testutils.Label) { (*v).Text = "u" })

		got, ok := s.Get(2)
		require.True(t, ok)
		assert.Equal(t, "u", got.Text)
	})

	t.Run("update replaces and removes through the slot", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		s.Set(0, &testutils.Label{Text: "a"})
		s.Set(3, &testutils.Label{Text: "d"})

		replacement := &testutils.Label{Text: "z"}
		s.Update(3, func(v **testutils.Label) { *v = replacement })
		got, ok := s.Get(3)
		require.True(t, ok)
		assert.Same(t, replacement, got)

		s.Update(0, func(v **testutils.Label) { *v = nil })
		assert.False(t, s.Has(0))
		assert.Equal(t, []int{3}, s.AppendIndices(nil))
		for _, v := range s.All() {
			assert.Same(t, replacement, v)
		}
		requireRefSetInvariants(t, s)
	})

	t.Run("stale guard panics", func(t *testing.T) {
		t.Parallel()

		s := NewRefSet[testutils.Label](4)
		ref := s.GetMut(1)
		ref.Release()
		assert.True(t, eris.Is(recoverError(func() { ref.Get() }), ErrStaleGuard))
	})
}

func TestRefSet_ClearAndMask(t *testing.T) {
	t.Parallel()

	s := NewRefSet[int](32)
	for _, i := range []int{1, 9, 31} {
		s.Set(i, &i)
	}

	var mask bitmap.Bitmap
	s.Mask(&mask)
	assert.Equal(t, 3, mask.Count())
	assert.True(t, mask.Contains(31))

	n := 0
	for c := s.Cursor(); c.Next(); {
		assert.Equal(t, c.Index(), *c.Value())
		n++
	}
	assert.Equal(t, 3, n)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 32, s.Cap())
	for i := range 32 {
		assert.Nil(t, s.sparse[i])
	}
	requireRefSetInvariants(t, s)
}

func TestRefSet_ModelBasedFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	const (
		capacity = 256
		opsMax   = 1 << 13
	)

	impl := NewRefSet[int](capacity)
	model := make(map[int]int, capacity)

	for range opsMax {
		key := prng.IntN(capacity)

		switch testutils.RandWeightedOp(prng, setOps) {
		case opSet:
			value := prng.Int()
			impl.Set(key, &value)
			model[key] = value

		case opGet:
			got, ok := impl.Get(key)
			want, wantOK := model[key]
			assert.Equal(t, wantOK, ok, "Get(%d) existence mismatch", key)
			if ok {
				assert.Equal(t, want, *got, "Get(%d) value mismatch", key)
			}

		case opRemove:
			if len(model) > 0 && prng.Float64() < 0.5 {
				key = testutils.RandMapKey(prng, model)
			}
			_, wantOK := model[key]
			delete(model, key)
			assert.Equal(t, wantOK, impl.Remove(key), "Remove(%d) existence mismatch", key)

		case opMut:
			if prng.IntN(4) == 0 {
				ref := impl.GetMut(key)
				ref.Set(nil)
				ref.Release()
				delete(model, key)
				break
			}
			impl.Update(key, func(v **int) { **v++ })
			model[key]++

		case opClear:
			impl.Clear()
			clear(model)

		default:
			panic("unreachable")
		}

		requireRefSetInvariants(t, impl)
		require.Equal(t, len(model), impl.Len())
	}
}

func requireRefSetInvariants[T any](t *testing.T, s *RefSet[T]) {
	t.Helper()

	require.Len(t, s.sparse, cap(s.dense), "capacity must never change")

	present := 0
	for i, v := range s.sparse {
		if v == nil {
			continue
		}
		present++
		d := s.indices[i]
		require.Less(t, d, len(s.dense), "index %d points past dense", i)
		require.Equal(t, i, s.dense[d].Index, "back-pointer of index %d", i)
		require.Same(t, v, s.dense[d].Value, "dense value of index %d", i)
	}
	require.Equal(t, present, len(s.dense), "dense must have no gaps or duplicates")
}
