package spmv

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"spmv/comm"
)

// makeDists builds the per-process index maps of a vector of length n from
// a global owner map, assigning local indices in global-index order.
func makeDists(n int, owner []int, p int) []*VecDist {
	ds := make([]*VecDist, p)
	for q := range ds {
		ds[q] = &VecDist{N: n}
	}
	for g, q := range owner {
		ds[q].Index = append(ds[q].Index, g)
	}
	return ds
}

func randomOwners(rng *rand.Rand, n, p int) []int {
	owner := make([]int, n)
	for g := range owner {
		owner[g] = rng.Intn(p)
	}
	return owner
}

// splitCyclic deals the global nonzeros to the processes round-robin, an
// arbitrary two-dimensional partitioning.
func splitCyclic(tr *Triples, p int) []*Triples {
	parts := make([]*Triples, p)
	for q := range parts {
		parts[q] = &Triples{}
	}
	for k := 0; k < tr.Len(); k++ {
		parts[k%p].Append(tr.Row[k], tr.Col[k], tr.Val[k])
	}
	return parts
}

func TestBuildPlanNamesTrueOwners(t *testing.T) {
	const p = 4
	rng := rand.New(rand.NewSource(23))
	n := 19
	parts := splitCyclic(randomTriples(rng, n, 0.2), p)
	vd := makeDists(n, randomOwners(rng, n, p), p)
	ud := makeDists(n, randomOwners(rng, n, p), p)

	w := comm.NewWorld(p)
	err := w.Run(func(pr *comm.Proc) error {
		s := pr.Rank()
		m := TriplesToICRS(n, parts[s])
		pl, err := BuildPlan(pr, n, m, vd[s], ud[s])
		if err != nil {
			return err
		}
		require.Len(t, pl.SrcProc, m.Ncols)
		require.Len(t, pl.DstProc, m.Nrows)
		for c := range pl.SrcProc {
			q := pl.SrcProc[c]
			require.Equal(t, vd[q].Index[pl.SrcInd[c]], m.ColIndex[c],
				"column slot %d of process %d misdirected", c, s)
		}
		for r := range pl.DstProc {
			q := pl.DstProc[r]
			require.Equal(t, ud[q].Index[pl.DstInd[r]], m.RowIndex[r],
				"row slot %d of process %d misdirected", r, s)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBuildPlanSendListsHaveNoDuplicates(t *testing.T) {
	// Each owned v-component appears at most once in the send list toward
	// any one consumer, however many column slots share it there.
	const p = 3
	rng := rand.New(rand.NewSource(31))
	n := 12
	parts := splitCyclic(randomTriples(rng, n, 0.4), p)
	vd := makeDists(n, randomOwners(rng, n, p), p)
	ud := makeDists(n, randomOwners(rng, n, p), p)

	w := comm.NewWorld(p)
	err := w.Run(func(pr *comm.Proc) error {
		s := pr.Rank()
		m := TriplesToICRS(n, parts[s])
		pl, err := BuildPlan(pr, n, m, vd[s], ud[s])
		if err != nil {
			return err
		}
		for q := 0; q < p; q++ {
			seen := make(map[int]bool, len(pl.vSendIdx[q]))
			for _, l := range pl.vSendIdx[q] {
				require.False(t, seen[l],
					"process %d would send v[%d] to process %d twice", s, l, q)
				seen[l] = true
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBuildPlanSchedulesConsistent(t *testing.T) {
	// The inverted schedules agree with the per-slot arrays: every column
	// slot appears in exactly one receive list, under its owning process,
	// and the counts match the slot groupings.
	const p = 3
	rng := rand.New(rand.NewSource(5))
	n := 14
	parts := splitCyclic(randomTriples(rng, n, 0.3), p)
	vd := makeDists(n, randomOwners(rng, n, p), p)
	ud := makeDists(n, randomOwners(rng, n, p), p)

	w := comm.NewWorld(p)
	err := w.Run(func(pr *comm.Proc) error {
		s := pr.Rank()
		m := TriplesToICRS(n, parts[s])
		pl, err := BuildPlan(pr, n, m, vd[s], ud[s])
		if err != nil {
			return err
		}
		seen := make([]bool, m.Ncols)
		for q := 0; q < p; q++ {
			require.Len(t, pl.vRecvSlot[q], pl.vRecvCounts[q])
			for _, c := range pl.vRecvSlot[q] {
				require.Equal(t, q, pl.SrcProc[c])
				require.False(t, seen[c])
				seen[c] = true
			}
		}
		for c := range seen {
			require.True(t, seen[c], "column slot %d of process %d unscheduled", c, s)
		}
		require.Len(t, pl.vbuf, m.Ncols)
		require.Len(t, pl.ubuf, m.Nrows)
		return nil
	})
	require.NoError(t, err)
}
