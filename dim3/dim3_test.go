package dim3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func TestPrimeFactorsProperties(t *testing.T) {
	for n := 1; n <= 200; n++ {
		factors := PrimeFactors(n)
		if n == 1 {
			require.Empty(t, factors)
			continue
		}
		product := 1
		for i, f := range factors {
			require.True(t, isPrime(f), "factor %d of %d is not prime", f, n)
			if i > 0 {
				require.GreaterOrEqual(t, factors[i-1], f, "factors of %d not non-increasing", n)
			}
			product *= f
		}
		require.Equal(t, n, product, "factors of %d do not multiply back to n", n)
	}
}

func TestPrimeFactorsKnown(t *testing.T) {
	require.Equal(t, []int{5, 3, 2, 2}, PrimeFactors(60))
	require.Equal(t, []int{2, 2}, PrimeFactors(4))
	require.Empty(t, PrimeFactors(0))
	require.Empty(t, PrimeFactors(1))
}

func TestWrap(t *testing.T) {
	ext := Dim3{4, 5, 6}
	cases := []Dim3{
		{0, 0, 0}, {-1, -1, -1}, {4, 5, 6}, {-5, 12, -13}, {100, -100, 37},
	}
	for _, v := range cases {
		w := v.Wrap(ext)
		require.GreaterOrEqual(t, w.X, 0)
		require.Less(t, w.X, ext.X)
		require.GreaterOrEqual(t, w.Y, 0)
		require.Less(t, w.Y, ext.Y)
		require.GreaterOrEqual(t, w.Z, 0)
		require.Less(t, w.Z, ext.Z)
		require.Equal(t, 0, wrapOne(w.X-v.X, ext.X))
		require.Equal(t, 0, wrapOne(w.Y-v.Y, ext.Y))
		require.Equal(t, 0, wrapOne(w.Z-v.Z, ext.Z))
	}
}

func TestCubeness(t *testing.T) {
	require.Equal(t, 1.0, Cubeness(3, 3, 3))
	require.InDelta(t, 0.5, Cubeness(2, 4, 4), 1e-9)
	require.Less(t, Cubeness(1, 8, 8), 1.0)
	require.Greater(t, Cubeness(1, 8, 8), 0.0)
}

func TestIndexRoundTrip(t *testing.T) {
	ext := Dim3{3, 4, 5}
	for z := 0; z < ext.Z; z++ {
		for y := 0; y < ext.Y; y++ {
			for x := 0; x < ext.X; x++ {
				v := Dim3{x, y, z}
				idx := v.Index(ext)
				require.Equal(t, v, Unindex(idx, ext))
			}
		}
	}
}

func TestDivCeil(t *testing.T) {
	require.Equal(t, 3, DivCeil(7, 3))
	require.Equal(t, 2, DivCeil(6, 3))
	require.Equal(t, 1, DivCeil(1, 3))
}
