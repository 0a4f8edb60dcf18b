package partition_test

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/entitycore/pkg/partition"
	"github.com/argus-labs/entitycore/pkg/sparse"
	"github.com/argus-labs/entitycore/pkg/testutils"
)

func TestIndex_Match(t *testing.T) {
	t.Parallel()

	describe := func(idx partition.Index) string {
		return partition.Match(idx,
			func(g partition.Global) string { return "g" + g.String() },
			func(s partition.Scene) string { return "s" + s.String() },
		)
	}

	assert.Equal(t, "gglobal:7", describe(partition.Global(7)))
	assert.Equal(t, "sscene:70000", describe(partition.Scene(70000)))

	assert.True(t, partition.Global(0).IsGlobal())
	assert.False(t, partition.Scene(0).IsGlobal())
	assert.Equal(t, 65535, partition.Global(65535).Int())

	var visited []string
	partition.Visit(partition.Scene(1),
		func(partition.Global) { visited = append(visited, "global") },
		func(partition.Scene) { visited = append(visited, "scene") },
	)
	assert.Equal(t, []string{"scene"}, visited)
}

func TestIndex_Bounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, math.MaxUint16+1, partition.MaxGlobal)
	assert.Equal(t, int64(math.MaxUint32)+1, partition.MaxScene)
	assert.Equal(t, "scene:4294967295", partition.Scene(math.MaxUint32).String())
}

func TestIndex_NilPanics(t *testing.T) {
	t.Parallel()

	assert.False(t, partition.Valid(nil))
	assert.True(t, partition.Valid(partition.Global(0)))

	err := recoverError(func() {
		partition.Match(nil,
			func(partition.Global) int { return 0 },
			func(partition.Scene) int { return 1 },
		)
	})
	assert.True(t, eris.Is(err, partition.ErrInvalidIndex), "got %v", err)

	s := partition.NewSet[int](4, 4)
	err = recoverError(func() { s.Set(nil, 1) })
	assert.True(t, eris.Is(err, partition.ErrInvalidIndex), "got %v", err)
	err = recoverError(func() { s.Has(nil) })
	assert.True(t, eris.Is(err, partition.ErrInvalidIndex), "got %v", err)
}

func TestSet_PartitionIsolation(t *testing.T) {
	t.Parallel()

	s := partition.NewSet[testutils.Health](4, 16)
	s.Set(partition.Global(1), testutils.Health{Current: 1})
	s.Set(partition.Scene(1), testutils.Health{Current: 2})

	// Same slot number, different partitions.
	g, ok := s.Get(partition.Global(1))
	require.True(t, ok)
	sc, ok := s.Get(partition.Scene(1))
	require.True(t, ok)
	assert.Equal(t, 1, g.Current)
	assert.Equal(t, 2, sc.Current)
	assert.Equal(t, 2, s.Len())

	s.Scene().Clear()
	assert.True(t, s.Has(partition.Global(1)))
	assert.False(t, s.Has(partition.Scene(1)))

	s.Update(partition.Global(1), func(h *testutils.Health) { h.Current = 9 })
	assert.Equal(t, 9, s.At(partition.Global(1)).Current)
	assert.Equal(t, testutils.Health{}, s.At(partition.Scene(1)))

	assert.True(t, s.Remove(partition.Global(1)))
	assert.False(t, s.Remove(partition.Global(1)))
	assert.Equal(t, 0, s.Len())
}

func TestSet_AllVisitsGlobalFirst(t *testing.T) {
	t.Parallel()

	s := partition.NewSet[int](4, 4)
	s.Set(partition.Scene(3), 30)
	s.Set(partition.Global(2), 20)
	s.Set(partition.Scene(0), 0)

	var got []partition.Index
	for idx, v := range s.All() {
		got = append(got, idx)
		assert.Equal(t, idx.Int()*10, v)
	}
	assert.Equal(t, []partition.Index{partition.Global(2), partition.Scene(3), partition.Scene(0)}, got)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSet_OutOfRangeRoutesToInnerPanic(t *testing.T) {
	t.Parallel()

	s := partition.NewSet[int](2, 2)
	err := recoverError(func() { s.Set(partition.Global(2), 1) })
	assert.True(t, eris.Is(err, sparse.ErrInvalidIndex), "got %v", err)

	ref := s.GetMut(partition.Scene(1))
	ref.Set(5)
	ref.Release()
	assert.Equal(t, 5, s.At(partition.Scene(1)))
}

func TestRefSet_Routing(t *testing.T) {
	t.Parallel()

	s := partition.NewRefSet[testutils.Label](2, 8)
	s.Set(partition.Global(0), &testutils.Label{Text: "hud"})
	s.Set(partition.Scene(0), &testutils.Label{Text: "tree"})

	got, err := s.At(partition.Global(0))
	require.NoError(t, err)
	assert.Equal(t, "hud", got.Text)

	s.Set(partition.Scene(0), nil)
	_, err = s.At(partition.Scene(0))
	assert.True(t, eris.Is(err, sparse.ErrNotPresent))
	assert.True(t, s.Has(partition.Global(0)))

	s.Update(partition.Scene(5), func(l **testutils.Label) { (*l).Text = "rock" })
	ref := s.GetMut(partition.Scene(5))
	assert.Equal(t, "rock", ref.Get().Text)
	ref.Release()

	var texts []string
	for _, l := range s.All() {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"hud", "rock"}, texts)
	assert.Equal(t, 2, s.Len())

	assert.Same(t, s.Global(), s.Global())
	assert.Equal(t, 8, s.Scene().Cap())

	l, ok := s.Get(partition.Global(0))
	assert.True(t, ok)
	assert.Equal(t, "hud", l.Text)
	assert.True(t, s.Remove(partition.Global(0)))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func recoverError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				e = eris.Errorf("non-error panic: %v", r)
			}
			err = e
		}
	}()
	fn()
	return nil
}
