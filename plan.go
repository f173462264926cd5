package spmv

import (
	"github.com/cockroachdb/errors"

	"spmv/comm"
)

// BuildPlan computes the communication plan of the matrix-vector
// multiplication u = A*v: for every local column slot the owner of the
// corresponding v-component and its local index there, and for every
// local row slot the owner of the corresponding u-component. The
// ownership lookups go through a directory distributed over the
// processors by global index mod p, so no processor does more than
// O(n/p + ncols + nrows) work. The inverted fan-out and fan-in schedules
// are derived immediately afterwards, so the kernel itself only packs,
// exchanges and unpacks.
//
// BuildPlan is collective: every process of the world must call it with
// the same n.
func BuildPlan(p *comm.Proc, n int, m *Matrix, v, u *VecDist) (*Plan, error) {
	srcProc, srcInd, err := resolveOwners(p, n, m.ColIndex, v)
	if err != nil {
		return nil, errors.Wrap(err, "resolving v ownership")
	}
	dstProc, dstInd, err := resolveOwners(p, n, m.RowIndex, u)
	if err != nil {
		return nil, errors.Wrap(err, "resolving u ownership")
	}

	pl := &Plan{
		SrcProc: srcProc,
		SrcInd:  srcInd,
		DstProc: dstProc,
		DstInd:  dstInd,
	}
	if err := pl.buildSchedules(p, v.Len(), u.Len(), m.Nrows, m.Ncols); err != nil {
		return nil, err
	}
	return pl, nil
}

// resolveOwners answers, for every global index in the local index map,
// the query "which processor owns this component, and at which local
// index?". Phase 1 publishes each component this process owns with the
// directory process index mod p; phase 2 sends every entry of index to
// its directory process and collects the authoritative answers.
func resolveOwners(p *comm.Proc, n int, index []int, d *VecDist) (owner, local []int, err error) {
	size := p.Size()
	rank := p.Rank()

	// Phase 1: publish (global, local) pairs of the owned components.
	pubCounts := make([]int, size)
	for _, g := range d.Index {
		pubCounts[g%size] += 2
	}
	pub := make([]int, sum(pubCounts))
	cursor := groupOffsets(pubCounts)
	for l, g := range d.Index {
		q := g % size
		pub[cursor[q]] = g
		pub[cursor[q]+1] = l
		cursor[q] += 2
	}
	recv, recvCounts := p.AllToAllvInts(pub, pubCounts)

	// The directory slice of this process holds the global indices g in
	// [0, n) with g mod p == rank, at slot g div p.
	dirLen := 0
	if rank < n {
		dirLen = ceilDiv(n-rank, size)
	}
	dirOwner := make([]int, dirLen)
	dirInd := make([]int, dirLen)
	for slot := range dirOwner {
		dirOwner[slot] = -1
	}
	pos := 0
	for q := 0; q < size; q++ {
		for c := 0; c < recvCounts[q]; c += 2 {
			g, l := recv[pos], recv[pos+1]
			pos += 2
			if g < 0 || g >= n || g%size != rank {
				return nil, nil, errors.Newf("misrouted ownership entry for global index %d on directory %d", g, rank)
			}
			slot := g / size
			if dirOwner[slot] >= 0 {
				return nil, nil, errors.Newf("global index %d owned by both process %d and process %d", g, dirOwner[slot], q)
			}
			dirOwner[slot] = q
			dirInd[slot] = l
		}
	}

	// Phase 2: query the directory for every entry of the index map. The
	// requests to each directory process are packed in slot order, the
	// answers come back in the same order.
	reqCounts := make([]int, size)
	for _, g := range index {
		reqCounts[g%size]++
	}
	req := make([]int, sum(reqCounts))
	cursor = groupOffsets(reqCounts)
	for _, g := range index {
		q := g % size
		req[cursor[q]] = g
		cursor[q]++
	}
	queries, queryCounts := p.AllToAllvInts(req, reqCounts)

	ansCounts := make([]int, size)
	for q := 0; q < size; q++ {
		ansCounts[q] = 2 * queryCounts[q]
	}
	ans := make([]int, 0, sum(ansCounts))
	for _, g := range queries {
		if g < 0 || g >= n || g%size != rank {
			return nil, nil, errors.Newf("misrouted ownership query for global index %d on directory %d", g, rank)
		}
		slot := g / size
		if dirOwner[slot] < 0 {
			return nil, nil, errors.Newf("global index %d is not owned by any process", g)
		}
		ans = append(ans, dirOwner[slot], dirInd[slot])
	}
	replies, _ := p.AllToAllvInts(ans, ansCounts)

	owner = make([]int, len(index))
	local = make([]int, len(index))
	replyCounts := make([]int, size)
	for q := 0; q < size; q++ {
		replyCounts[q] = 2 * reqCounts[q]
	}
	cursor = groupOffsets(replyCounts)
	for c, g := range index {
		q := g % size
		owner[c] = replies[cursor[q]]
		local[c] = replies[cursor[q]+1]
		cursor[q] += 2
	}
	return owner, local, nil
}

// buildSchedules inverts the per-slot plan arrays into per-peer message
// schedules. For v, the consumer side knows which (owner, local index)
// pairs it needs; one exchange tells each owner which of its components
// to send to whom, so that in the fan-out every component travels at most
// once from its owner to each consumer. Symmetrically for u, each
// producer tells the owner of every row where its partial sums must be
// accumulated.
func (pl *Plan) buildSchedules(p *comm.Proc, nv, nu, nrows, ncols int) error {
	size := p.Size()

	// Fan-out: group the column slots by owning process.
	pl.vRecvSlot = make([][]int, size)
	for c, q := range pl.SrcProc {
		pl.vRecvSlot[q] = append(pl.vRecvSlot[q], c)
	}
	pl.vRecvCounts = make([]int, size)
	needCounts := make([]int, size)
	for q := 0; q < size; q++ {
		pl.vRecvCounts[q] = len(pl.vRecvSlot[q])
		needCounts[q] = len(pl.vRecvSlot[q])
	}
	need := make([]int, 0, sum(needCounts))
	for q := 0; q < size; q++ {
		for _, c := range pl.vRecvSlot[q] {
			need = append(need, pl.SrcInd[c])
		}
	}
	sendIdx, sendCounts := p.AllToAllvInts(need, needCounts)
	pl.vSendIdx = make([][]int, size)
	pl.vSendCounts = make([]int, size)
	pos := 0
	for q := 0; q < size; q++ {
		pl.vSendIdx[q] = sendIdx[pos : pos+sendCounts[q]]
		pl.vSendCounts[q] = sendCounts[q]
		pos += sendCounts[q]
		for _, l := range pl.vSendIdx[q] {
			if l < 0 || l >= nv {
				return errors.Newf("process %d asked process %d for v component %d, have %d", q, p.Rank(), l, nv)
			}
		}
	}

	// Fan-in: group the row slots by the owner of their u-component.
	pl.uSendSlot = make([][]int, size)
	for r, q := range pl.DstProc {
		pl.uSendSlot[q] = append(pl.uSendSlot[q], r)
	}
	pl.uSendCounts = make([]int, size)
	dstCounts := make([]int, size)
	for q := 0; q < size; q++ {
		pl.uSendCounts[q] = len(pl.uSendSlot[q])
		dstCounts[q] = len(pl.uSendSlot[q])
	}
	dst := make([]int, 0, sum(dstCounts))
	for q := 0; q < size; q++ {
		for _, r := range pl.uSendSlot[q] {
			dst = append(dst, pl.DstInd[r])
		}
	}
	recvIdx, recvCounts := p.AllToAllvInts(dst, dstCounts)
	pl.uRecvIdx = make([][]int, size)
	pl.uRecvCounts = make([]int, size)
	pos = 0
	for q := 0; q < size; q++ {
		pl.uRecvIdx[q] = recvIdx[pos : pos+recvCounts[q]]
		pl.uRecvCounts[q] = recvCounts[q]
		pos += recvCounts[q]
		for _, l := range pl.uRecvIdx[q] {
			if l < 0 || l >= nu {
				return errors.Newf("process %d sends process %d a sum for u component %d, have %d", q, p.Rank(), l, nu)
			}
		}
	}

	pl.vSendBuf = make([]float64, sum(pl.vSendCounts))
	pl.uSendBuf = make([]float64, sum(pl.uSendCounts))
	pl.vbuf = make([]float64, ncols)
	pl.ubuf = make([]float64, nrows)
	return nil
}
