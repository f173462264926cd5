package spmv

import "golang.org/x/exp/constraints"

func ceilDiv[T constraints.Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// groupOffsets turns per-peer counts into exclusive prefix offsets.
func groupOffsets(counts []int) []int {
	offsets := make([]int, len(counts))
	for q := 1; q < len(counts); q++ {
		offsets[q] = offsets[q-1] + counts[q-1]
	}
	return offsets
}

func sum(counts []int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}
