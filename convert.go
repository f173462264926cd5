package spmv

// TriplesToICRS converts a processor's nonzeros from triple format with
// global indices into incremental compressed row storage with local
// indices. The triples may arrive in any order; the result is sorted by
// global row index, ties decided by column index. Conversion takes time
// and memory O(nz + sqrt(n)) per processor.
func TriplesToICRS(n int, t *Triples) *Matrix {
	nz := t.Len()
	ia := append(make([]int, 0, nz+1), t.Row...)
	ja := append(make([]int, 0, nz+1), t.Col...)
	a := append(make([]float64, 0, nz+1), t.Val...)

	// radix is the smallest power of two >= sqrt(n), so the div and mod
	// of the counting sort are cheap and a radix of about sqrt(n)
	// minimizes memory and time.
	radix := 1
	for radix*radix < n {
		radix *= 2
	}

	// Sort nonzeros by global column index.
	sortTriples(n, nz, ja, ia, a, radix, keyMod)
	sortTriples(n, nz, ja, ia, a, radix, keyDiv)

	// Count the local nonempty columns.
	ncols := 0
	jglobLast := -1
	for k := 0; k < nz; k++ {
		if ja[k] != jglobLast {
			ncols++
		}
		jglobLast = ja[k]
	}
	colindex := make([]int, ncols)

	// Register the columns and rewrite ja to local column indices.
	j := 0
	jglobLast = -1
	for k := 0; k < nz; k++ {
		jglob := ja[k]
		if jglob != jglobLast {
			colindex[j] = jglob
			j++
		}
		ja[k] = j - 1 // local index of the last registered column
		jglobLast = jglob
	}

	// Sort nonzeros by global row index. The column sort was stable, so
	// within each row the nonzeros stay in ascending local column order.
	sortTriples(n, nz, ia, ja, a, radix, keyMod)
	sortTriples(n, nz, ia, ja, a, radix, keyDiv)

	// Count the local nonempty rows.
	nrows := 0
	iglobLast := -1
	for k := 0; k < nz; k++ {
		if ia[k] != iglobLast {
			nrows++
		}
		iglobLast = ia[k]
	}
	rowindex := make([]int, nrows)

	// Register the rows and rewrite ia to the column-index increments.
	i := 0
	iglobLast = -1
	for k := 0; k < nz; k++ {
		inck := ja[k]
		if k > 0 {
			inck = ja[k] - ja[k-1]
		}
		iglob := ia[k]
		if iglob != iglobLast {
			rowindex[i] = iglob
			i++
			if k > 0 {
				inck += ncols
			}
		}
		ia[k] = inck
		iglobLast = iglob
	}

	// Sentinels: the final increment wraps the column cursor out of the
	// last row, so the kernel needs no end-of-row test.
	ia = ia[:nz+1]
	ja = ja[:nz+1]
	a = a[:nz+1]
	if nz == 0 {
		ia[nz] = 0
	} else {
		ia[nz] = ncols - ja[nz-1]
	}
	ja[nz] = 0
	a[nz] = 0.0

	return &Matrix{
		N:        n,
		Nz:       nz,
		Nrows:    nrows,
		Ncols:    ncols,
		RowIndex: rowindex,
		ColIndex: colindex,
		Inc:      ia,
		Val:      a,
	}
}
