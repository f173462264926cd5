package spmv

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"spmv/comm"
)

// wordScanner reads whitespace-separated numbers from a file, the way the
// matrix and vector distribution files are laid out.
type wordScanner struct {
	s    *bufio.Scanner
	path string
}

func newWordScanner(r io.Reader, path string) *wordScanner {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &wordScanner{s: s, path: path}
}

func (ws *wordScanner) Int() (int, error) {
	if !ws.s.Scan() {
		if err := ws.s.Err(); err != nil {
			return 0, errors.Wrapf(err, "reading %s", ws.path)
		}
		return 0, errors.Newf("unexpected end of file in %s", ws.path)
	}
	v, err := strconv.Atoi(ws.s.Text())
	if err != nil {
		return 0, errors.Wrapf(err, "invalid integer in %s", ws.path)
	}
	return v, nil
}

func (ws *wordScanner) Float64() (float64, error) {
	if !ws.s.Scan() {
		if err := ws.s.Err(); err != nil {
			return 0, errors.Wrapf(err, "reading %s", ws.path)
		}
		return 0, errors.Newf("unexpected end of file in %s", ws.path)
	}
	v, err := strconv.ParseFloat(ws.s.Text(), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value in %s", ws.path)
	}
	return v, nil
}

// PeekMatrixProcs reads only the header of a matrix distribution file and
// returns the processor count it declares.
func PeekMatrixProcs(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open matrix file")
	}
	defer f.Close()
	ws := newWordScanner(f, path)
	var p int
	for i := 0; i < 4; i++ {
		if p, err = ws.Int(); err != nil {
			return 0, err
		}
	}
	return p, nil
}

// ReadMatrix reads a sparse matrix in distributed Matrix Market format
// without the banner line and hands every process its nonzeros as triples
// with global, zero-based indices, in arbitrary order.
//
// The file holds one line "m n nz p", then p+1 integers Pstart[0..p]
// assigning the contiguous nonzero slice Pstart[q]..Pstart[q+1]-1 to
// process q, then nz lines "i j a" with one-based indices. Process 0 does
// all the reading and sends each process its slice. A processor-count
// mismatch aborts with -8, a non-square matrix with -9.
//
// ReadMatrix is collective.
func ReadMatrix(p *comm.Proc, path string) (n int, t *Triples, err error) {
	size := p.Size()
	s := p.Rank()

	var ws *wordScanner
	var nzCounts []int
	if s == 0 {
		f, ferr := os.Open(path)
		if ferr != nil {
			return 0, nil, errors.Wrapf(ferr, "open matrix file")
		}
		defer f.Close()
		ws = newWordScanner(f, path)

		var m, nzTotal, pA int
		if m, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if n, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if nzTotal, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if pA, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if pA != size {
			p.Abort(AbortMatrixProcMismatch)
		}
		if m != n {
			p.Abort(AbortNotSquare)
		}

		pstart := make([]int, size+1)
		for q := 0; q <= size; q++ {
			if pstart[q], err = ws.Int(); err != nil {
				return 0, nil, err
			}
		}
		if pstart[0] != 0 || pstart[size] != nzTotal {
			return 0, nil, errors.Newf("matrix file %s: Pstart does not cover 0..%d", path, nzTotal)
		}
		nzCounts = make([]int, size)
		for q := 0; q < size; q++ {
			nzCounts[q] = pstart[q+1] - pstart[q]
			if nzCounts[q] < 0 {
				return 0, nil, errors.Newf("matrix file %s: decreasing Pstart", path)
			}
		}
	}

	n = p.BroadcastInt(0, n)
	nz := p.ScatterInts(0, nzCounts, 1)[0]

	// The nonzero slices appear in the file in process order. Process 0
	// keeps the first slice and ships each further slice as it is read,
	// one array per tag.
	t = &Triples{}
	if s == 0 {
		t.Row = make([]int, nz)
		t.Col = make([]int, nz)
		t.Val = make([]float64, nz)
		if err = readTriples(ws, t.Row, t.Col, t.Val); err != nil {
			return 0, nil, err
		}
		for q := 1; q < size; q++ {
			ib := make([]int, nzCounts[q])
			jb := make([]int, nzCounts[q])
			b := make([]float64, nzCounts[q])
			if err = readTriples(ws, ib, jb, b); err != nil {
				return 0, nil, err
			}
			p.SendInts(ib, q, 0)
			p.SendInts(jb, q, 1)
			p.SendFloat64s(b, q, 2)
		}
	} else {
		t.Row = p.RecvInts(0, 0)
		t.Col = p.RecvInts(0, 1)
		t.Val = p.RecvFloat64s(0, 2)
	}
	return n, t, nil
}

// readTriples parses len(ia) nonzeros, converting the one-based indices
// to start from zero.
func readTriples(ws *wordScanner, ia, ja []int, a []float64) error {
	for k := range ia {
		i, err := ws.Int()
		if err != nil {
			return err
		}
		j, err := ws.Int()
		if err != nil {
			return err
		}
		v, err := ws.Float64()
		if err != nil {
			return err
		}
		ia[k] = i - 1
		ja[k] = j - 1
		a[k] = v
	}
	return nil
}

// ReadVecDist reads the distribution of a dense vector and hands every
// process its local index map. The file holds one line "n p", then n
// lines "i proc" with i = 1..n in order, assigning global component i-1
// to process proc-1. Local indices are assigned in order of appearance
// per owner.
//
// Process 0 reads the components in p batches of about n/p and scatters
// each batch in fixed-size slices padded with -1 dummies; a second,
// all-to-all exchange then routes every (global, local) pair to its
// owner. This bounds the buffer memory on process 0 by the largest local
// vector segment. A processor-count mismatch aborts with -10, an
// out-of-order component index with -11.
//
// ReadVecDist is collective.
func ReadVecDist(p *comm.Proc, path string) (n int, d *VecDist, err error) {
	size := p.Size()
	s := p.Rank()

	var ws *wordScanner
	var counters []int
	if s == 0 {
		f, ferr := os.Open(path)
		if ferr != nil {
			return 0, nil, errors.Wrapf(ferr, "open vector file")
		}
		defer f.Close()
		ws = newWordScanner(f, path)

		var pv int
		if n, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if pv, err = ws.Int(); err != nil {
			return 0, nil, err
		}
		if pv != size {
			p.Abort(AbortVectorProcMismatch)
		}
		counters = make([]int, size)
	}
	n = p.BroadcastInt(0, n)

	// Batch sizes: b components per round, slice triples per process.
	b := ceilDiv(n, size)
	slice := ceilDiv(b, size)

	// Each component is recorded as a triple (owner, global, local) and
	// scattered over the processes round by round; slots left over in a
	// round carry the dummy owner -1.
	held := make([]int, 3*size*slice)
	var batch []int
	if s == 0 {
		batch = make([]int, 3*size*slice)
	}
	for q := 0; q < size; q++ {
		if s == 0 {
			for j := range batch {
				batch[j] = -1
			}
			j := 0
			for k := q * b; k < (q+1)*b && k < n; k++ {
				i, ierr := ws.Int()
				if ierr != nil {
					return 0, nil, ierr
				}
				proc, perr := ws.Int()
				if perr != nil {
					return 0, nil, perr
				}
				i--
				proc--
				if i != k {
					p.Abort(AbortIndexOutOfOrder)
				}
				if proc < 0 || proc >= size {
					return 0, nil, errors.Newf("vector file %s: component %d assigned to process %d of %d", path, i+1, proc+1, size)
				}
				batch[j] = proc
				batch[j+1] = i
				batch[j+2] = counters[proc]
				j += 3
				counters[proc]++
			}
		}
		chunk := p.ScatterInts(0, batch, 3*slice)
		copy(held[q*3*slice:], chunk)
	}
	nv := p.ScatterInts(0, counters, 1)[0]

	// Route every (global, local) pair to its owner.
	sendCounts := make([]int, size)
	for j := 0; j < size*slice; j++ {
		if proc := held[3*j]; proc >= 0 {
			sendCounts[proc] += 2
		}
	}
	send := make([]int, sum(sendCounts))
	cursor := groupOffsets(sendCounts)
	for j := 0; j < size*slice; j++ {
		if proc := held[3*j]; proc >= 0 {
			send[cursor[proc]] = held[3*j+1]
			send[cursor[proc]+1] = held[3*j+2]
			cursor[proc] += 2
		}
	}
	pairs, _ := p.AllToAllvInts(send, sendCounts)

	index := make([]int, nv)
	for k := 0; k+1 < len(pairs); k += 2 {
		g, l := pairs[k], pairs[k+1]
		if l < 0 || l >= nv {
			return 0, nil, errors.Newf("vector file %s: local index %d out of range [0,%d) on process %d", path, l, nv, s)
		}
		index[l] = g
	}
	return n, &VecDist{N: n, Index: index}, nil
}
