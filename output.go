package spmv

import (
	"fmt"
	"io"
)

// Print writes a readable dump of the local ICRS matrix, one array per
// line, for inspecting a distribution by hand.
func (m *Matrix) Print(w io.Writer, rank int) {
	fmt.Fprintf(w, "proc=%d n=%d nz=%d nrows=%d ncols=%d\n", rank, m.N, m.Nz, m.Nrows, m.Ncols)

	fmt.Fprintf(w, "rowindex = ")
	for _, i := range m.RowIndex {
		fmt.Fprintf(w, "%2d  ", i)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "colindex = ")
	for _, j := range m.ColIndex {
		fmt.Fprintf(w, "%2d  ", j)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "inc      = ")
	for _, inc := range m.Inc {
		fmt.Fprintf(w, "%2d  ", inc)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "a        = ")
	for _, v := range m.Val {
		fmt.Fprintf(w, "%g  ", v)
	}
	fmt.Fprintln(w)

	m.Walk(func(iglob, jglob int, aij float64) {
		fmt.Fprintf(w, "proc=%d a[%d][%d] = %g\n", rank, iglob, jglob, aij)
	})
}

// Print writes the per-slot plan arrays of a communication plan.
func (pl *Plan) Print(w io.Writer, rank int) {
	fmt.Fprintf(w, "proc=%d v-plan (column slot: owner, remote index)\n", rank)
	for c := range pl.SrcProc {
		fmt.Fprintf(w, "  c=%d: (%d, %d)\n", c, pl.SrcProc[c], pl.SrcInd[c])
	}
	fmt.Fprintf(w, "proc=%d u-plan (row slot: owner, remote index)\n", rank)
	for r := range pl.DstProc {
		fmt.Fprintf(w, "  r=%d: (%d, %d)\n", r, pl.DstProc[r], pl.DstInd[r])
	}
}
