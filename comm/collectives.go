package comm

// Internal tags for the collective operations. User tags must be >= 0.
// Every process issues its collectives in the same program order, and
// messages between a fixed (src, dst, tag) triple are delivered in order,
// so one tag per collective kind is sufficient.
const (
	tagBcast = -1 - iota
	tagScatter
	tagGather
	tagAllToAll
	tagAllToAllv
)

// BroadcastInt distributes x from the root process to every process and
// returns the root's value on all of them.
func (p *Proc) BroadcastInt(root, x int) int {
	return p.BroadcastInts(root, []int{x})[0]
}

// BroadcastInts distributes buf from the root process to every process.
// Only the root's buf is consulted; the received slice is returned.
func (p *Proc) BroadcastInts(root int, buf []int) []int {
	p.checkPeer(root)
	if p.rank == root {
		for q := 0; q < p.world.size; q++ {
			if q != root {
				p.SendInts(buf, q, tagBcast)
			}
		}
		return buf
	}
	return p.RecvInts(root, tagBcast)
}

// ScatterInts splits send, which must hold size*chunk elements on the root,
// into per-process chunks and delivers chunk q to process q. Every process
// returns its own chunk. Non-root processes pass send as nil.
func (p *Proc) ScatterInts(root int, send []int, chunk int) []int {
	p.checkPeer(root)
	if p.rank == root {
		for q := 0; q < p.world.size; q++ {
			p.SendInts(send[q*chunk:(q+1)*chunk], q, tagScatter)
		}
	}
	return p.RecvInts(root, tagScatter)
}

// GatherInts collects each process's buf on the root, concatenated in rank
// order. The root returns the gathered slice; everyone else returns nil.
func (p *Proc) GatherInts(root int, buf []int) []int {
	p.checkPeer(root)
	p.SendInts(buf, root, tagGather)
	if p.rank != root {
		return nil
	}
	var all []int
	for q := 0; q < p.world.size; q++ {
		all = append(all, p.RecvInts(q, tagGather)...)
	}
	return all
}

// GatherFloat64s collects each process's buf on the root in rank order.
func (p *Proc) GatherFloat64s(root int, buf []float64) []float64 {
	p.checkPeer(root)
	p.SendFloat64s(buf, root, tagGather)
	if p.rank != root {
		return nil
	}
	var all []float64
	for q := 0; q < p.world.size; q++ {
		all = append(all, p.RecvFloat64s(q, tagGather)...)
	}
	return all
}

// AllToAllInts exchanges one integer with every process: send[q] goes to
// process q, and the returned slice holds one value from each process.
func (p *Proc) AllToAllInts(send []int) []int {
	size := p.world.size
	for q := 0; q < size; q++ {
		p.SendInts(send[q:q+1], q, tagAllToAll)
	}
	recv := make([]int, size)
	for q := 0; q < size; q++ {
		recv[q] = p.RecvInts(q, tagAllToAll)[0]
	}
	return recv
}

// AllToAllvInts performs an all-to-all personalized exchange with variable
// counts. send holds the outgoing elements packed contiguously in rank
// order, counts[q] of them for process q. The incoming elements are
// returned the same way together with the per-source counts.
func (p *Proc) AllToAllvInts(send []int, counts []int) (recv []int, recvCounts []int) {
	size := p.world.size
	recvCounts = p.AllToAllInts(counts)

	off := 0
	for q := 0; q < size; q++ {
		if counts[q] > 0 {
			p.SendInts(send[off:off+counts[q]], q, tagAllToAllv)
		}
		off += counts[q]
	}

	total := 0
	for q := 0; q < size; q++ {
		total += recvCounts[q]
	}
	recv = make([]int, 0, total)
	for q := 0; q < size; q++ {
		if recvCounts[q] > 0 {
			recv = append(recv, p.RecvInts(q, tagAllToAllv)...)
		}
	}
	return recv, recvCounts
}

// AllToAllvFloat64s exchanges float payloads with counts known on both
// sides, as in the matvec fan-out and fan-in where the plan has fixed the
// schedule up front. sendCounts[q] elements of send go to process q;
// recvCounts[q] elements are expected from process q, returned packed in
// rank order.
func (p *Proc) AllToAllvFloat64s(send []float64, sendCounts, recvCounts []int) []float64 {
	size := p.world.size
	off := 0
	for q := 0; q < size; q++ {
		if sendCounts[q] > 0 {
			p.SendFloat64s(send[off:off+sendCounts[q]], q, tagAllToAllv)
		}
		off += sendCounts[q]
	}

	total := 0
	for q := 0; q < size; q++ {
		total += recvCounts[q]
	}
	recv := make([]float64, 0, total)
	for q := 0; q < size; q++ {
		if recvCounts[q] > 0 {
			recv = append(recv, p.RecvFloat64s(q, tagAllToAllv)...)
		}
	}
	return recv
}
