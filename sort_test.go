package spmv

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortTriplesStable(t *testing.T) {
	// Equal keys keep their original relative order; the other array
	// carries the original positions to check it.
	n := 16
	radix := 4
	keys := []int{5, 1, 9, 13, 2, 5, 1, 6, 10, 14}
	nz := len(keys)
	other := make([]int, nz)
	for k := range other {
		other[k] = k
	}
	vals := make([]float64, nz)
	for k := range vals {
		vals[k] = float64(keys[k])
	}

	sortTriples(n, nz, keys, other, vals, radix, keyMod)

	for k := 1; k < nz; k++ {
		require.LessOrEqual(t, keys[k-1]%radix, keys[k]%radix)
		if keys[k-1]%radix == keys[k]%radix {
			require.Less(t, other[k-1], other[k], "tie broken out of order at %d", k)
		}
	}
	for k := range vals {
		require.Equal(t, float64(keys[k]), vals[k], "value not permuted with its key")
	}
}

func TestSortTriplesTwoPassesSortAscending(t *testing.T) {
	// MOD followed by DIV is a radix sort by the full key.
	n := 64
	radix := 8
	rng := rand.New(rand.NewSource(42))
	nz := 200
	keys := make([]int, nz)
	other := make([]int, nz)
	vals := make([]float64, nz)
	for k := range keys {
		keys[k] = rng.Intn(n)
		other[k] = k
		vals[k] = float64(keys[k]) + 0.5
	}
	want := append([]int(nil), keys...)
	sort.Ints(want)

	sortTriples(n, nz, keys, other, vals, radix, keyMod)
	sortTriples(n, nz, keys, other, vals, radix, keyDiv)

	require.Equal(t, want, keys)
	for k := range keys {
		require.Equal(t, float64(keys[k])+0.5, vals[k])
	}
	// Stability of the combined sort: equal keys in original order.
	for k := 1; k < nz; k++ {
		if keys[k-1] == keys[k] {
			require.Less(t, other[k-1], other[k])
		}
	}
}

func TestSortTriplesEmpty(t *testing.T) {
	sortTriples(8, 0, nil, nil, nil, 4, keyMod)
}
