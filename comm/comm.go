// Package comm provides the SPMD message-passing fabric used by the
// distributed matrix-vector multiplication. A World holds p processes that
// run identical code on separate goroutines and communicate exclusively
// through tagged point-to-point messages and collective operations.
//
// The interface follows the usual message-passing shape: every process has a
// rank in [0, size), sends are asynchronous, receives block until a matching
// message arrives, and messages between a fixed (src, dst, tag) triple are
// delivered in order.
package comm

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AbortError is returned from World.Run when any process called Abort.
// The code is one of the distinguished negative configuration-error codes.
type AbortError struct {
	Code int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("job aborted with code %d", e.Code)
}

// abortPanic unwinds a process goroutine after the world has been shut down.
// The recorded abort error is picked up again inside World.Run.
type abortPanic struct{}

type message struct {
	tag    int
	ints   []int
	floats []float64
}

// mailbox buffers the messages sent from one fixed process to another.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []message
}

func newMailbox() *mailbox {
	b := &mailbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// World is a group of p SPMD processes and their communication state.
type World struct {
	size  int
	boxes [][]*mailbox // boxes[dst][src]
	epoch time.Time

	barrierMu   sync.Mutex
	barrierCond *sync.Cond
	barrierCnt  int
	barrierGen  int

	abortMu  sync.Mutex
	abortErr error

	metrics *Metrics
}

// NewWorld creates a communication world of p processes. p >= 1.
func NewWorld(p int) *World {
	if p < 1 {
		panic(fmt.Sprintf("comm: invalid world size %d", p))
	}
	w := &World{
		size:    p,
		boxes:   make([][]*mailbox, p),
		epoch:   time.Now(),
		metrics: newMetrics(p),
	}
	for dst := 0; dst < p; dst++ {
		w.boxes[dst] = make([]*mailbox, p)
		for src := 0; src < p; src++ {
			w.boxes[dst][src] = newMailbox()
		}
	}
	w.barrierCond = sync.NewCond(&w.barrierMu)
	return w
}

// Size returns the number of processes in the world.
func (w *World) Size() int { return w.size }

// Stats returns the traffic counters accumulated so far.
// Call only after Run has returned.
func (w *World) Stats() *Stats { return w.metrics.stats }

// Run executes fn once per rank, each on its own goroutine, and waits for
// all of them. If any process returns an error or calls Abort, the whole
// world is shut down: blocked processes are released and Run returns the
// first recorded error.
func (w *World) Run(fn func(p *Proc) error) error {
	var g errgroup.Group
	for s := 0; s < w.size; s++ {
		proc := &Proc{world: w, rank: s}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(abortPanic); !ok {
						panic(r)
					}
					err = w.abortError()
				}
				if err != nil {
					w.abortWith(err)
				}
			}()
			return fn(proc)
		})
	}
	err := g.Wait()
	if first := w.abortError(); first != nil {
		return first
	}
	return err
}

func (w *World) abortWith(err error) {
	w.abortMu.Lock()
	if w.abortErr == nil {
		w.abortErr = err
	}
	w.abortMu.Unlock()

	// Release every blocked process.
	w.barrierMu.Lock()
	w.barrierCond.Broadcast()
	w.barrierMu.Unlock()
	for _, row := range w.boxes {
		for _, b := range row {
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		}
	}
}

func (w *World) abortError() error {
	w.abortMu.Lock()
	defer w.abortMu.Unlock()
	return w.abortErr
}

func (w *World) aborted() bool { return w.abortError() != nil }

// Proc is the per-rank handle through which a process communicates.
type Proc struct {
	world *World
	rank  int
}

// Rank returns the rank of this process, 0 <= rank < Size().
func (p *Proc) Rank() int { return p.rank }

// Size returns the number of processes in the world.
func (p *Proc) Size() int { return p.world.size }

// WallTime returns the elapsed wall-clock time in seconds since the world
// was created.
func (p *Proc) WallTime() float64 {
	return time.Since(p.world.epoch).Seconds()
}

// Abort shuts the whole world down with the given code. It does not return.
func (p *Proc) Abort(code int) {
	p.world.abortWith(&AbortError{Code: code})
	panic(abortPanic{})
}

func (p *Proc) checkPeer(q int) {
	if q < 0 || q >= p.world.size {
		panic(fmt.Sprintf("comm: rank %d out of range [0,%d)", q, p.world.size))
	}
}

func (p *Proc) send(dst int, m message) {
	p.checkPeer(dst)
	p.world.metrics.count(p.rank, dst, len(m.ints)+len(m.floats))
	b := p.world.boxes[dst][p.rank]
	b.mu.Lock()
	b.pending = append(b.pending, m)
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (p *Proc) recv(src, tag int) message {
	p.checkPeer(src)
	b := p.world.boxes[p.rank][src]
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for i := range b.pending {
			if b.pending[i].tag == tag {
				m := b.pending[i]
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				return m
			}
		}
		if p.world.aborted() {
			panic(abortPanic{})
		}
		b.cond.Wait()
	}
}

// SendInts sends an integer slice to dst under the given tag.
// The send is asynchronous; the buffer is not retained.
func (p *Proc) SendInts(buf []int, dst, tag int) {
	cp := make([]int, len(buf))
	copy(cp, buf)
	p.send(dst, message{tag: tag, ints: cp})
}

// RecvInts blocks until an integer message with the given tag arrives
// from src and returns its payload.
func (p *Proc) RecvInts(src, tag int) []int {
	return p.recv(src, tag).ints
}

// SendFloat64s sends a float slice to dst under the given tag.
func (p *Proc) SendFloat64s(buf []float64, dst, tag int) {
	cp := make([]float64, len(buf))
	copy(cp, buf)
	p.send(dst, message{tag: tag, floats: cp})
}

// RecvFloat64s blocks until a float message with the given tag arrives
// from src and returns its payload.
func (p *Proc) RecvFloat64s(src, tag int) []float64 {
	return p.recv(src, tag).floats
}

// Barrier blocks until every process in the world has entered it.
func (p *Proc) Barrier() {
	w := p.world
	w.barrierMu.Lock()
	gen := w.barrierGen
	w.barrierCnt++
	if w.barrierCnt == w.size {
		w.barrierCnt = 0
		w.barrierGen++
		w.barrierCond.Broadcast()
		w.barrierMu.Unlock()
		return
	}
	for gen == w.barrierGen {
		if w.aborted() {
			w.barrierMu.Unlock()
			panic(abortPanic{})
		}
		w.barrierCond.Wait()
	}
	w.barrierMu.Unlock()
}
