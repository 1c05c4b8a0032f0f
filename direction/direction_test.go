package direction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllHas27DistinctVectors(t *testing.T) {
	vs := All()
	require.Len(t, vs, 27)
	seen := map[Vector]bool{}
	for _, v := range vs {
		require.False(t, seen[v], "duplicate direction %v", v)
		seen[v] = true
		require.GreaterOrEqual(t, v.X, -1)
		require.LessOrEqual(t, v.X, 1)
	}
}

func TestNeighborsExcludesZero(t *testing.T) {
	ns := Neighbors()
	require.Len(t, ns, 26)
	for _, v := range ns {
		require.NotEqual(t, Zero, v)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	vs := All()
	for _, v := range vs {
		idx := Index(v)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 27)
		require.Equal(t, v, vs[idx])
	}
}

func TestOpposite(t *testing.T) {
	v := Vector{X: 1, Y: -1, Z: 0}
	require.Equal(t, Vector{X: -1, Y: 1, Z: 0}, Opposite(v))
	require.Equal(t, v, Opposite(Opposite(v)))
}

func TestMapDense(t *testing.T) {
	var m Map[int]
	for i, v := range Neighbors() {
		m.Set(v, i)
	}
	count := 0
	m.Each(func(v Vector, val int) { count++ })
	require.Equal(t, 26, count)
	require.False(t, m.Has(Zero))
}
