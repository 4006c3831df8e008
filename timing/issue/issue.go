// Package issue holds instructions awaiting operand readiness and, once
// ready, hands them off to the first available execute pipe declared for
// their pipe target.
package issue

import (
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

// Pipe is an execute pipe this IssueQueue may target.
type Pipe interface {
	CanAccept() bool
	InsertInst(r *insts.InstRecord)
}

// Queue holds pending instructions, waking each on scoreboard readiness
// and first-fit dispatching ready ones to a declared Pipe.
type Queue struct {
	size        int
	pipes       []Pipe
	scoreboards []*scoreboard.View // one per regfile consulted for readiness

	waiting map[uint64]*insts.InstRecord
	ready   []*insts.InstRecord

	creditReturn func()
}

// New returns a Queue with the given capacity, consulting sbs (one View
// per register file) for operand readiness. onCredit is called once per
// instruction that leaves the queue (issued or flushed), to refund a
// credit-counted caller. dispatch.Target is pull-based (TryAccept checks
// Full directly), so timing/core wires this nil; onCredit exists for a
// push/credit-style caller instead.
func New(size int, sbs []*scoreboard.View, onCredit func()) *Queue {
	return &Queue{
		size:        size,
		scoreboards: sbs,
		waiting:     make(map[uint64]*insts.InstRecord),
		creditReturn: func() {
			if onCredit != nil {
				onCredit()
			}
		},
	}
}

// AddPipe declares pipe as an eligible destination, in first-fit priority
// order among pipes already added.
func (q *Queue) AddPipe(pipe Pipe) {
	q.pipes = append(q.pipes, pipe)
}

// Len returns the number of instructions currently held (waiting + ready).
func (q *Queue) Len() int {
	return len(q.waiting) + len(q.ready)
}

// Full reports whether the queue is at capacity.
func (q *Queue) Full() bool {
	return q.Len() >= q.size
}

// Push admits r. If every source operand is already ready, r joins the
// ready list immediately; otherwise a scoreboard wakeup callback is
// installed per regfile with a nonempty required bitmask.
func (q *Queue) Push(r *insts.InstRecord) {
	q.waiting[r.UniqueID] = r

	remaining := 0
	for rf := 0; rf < insts.NumRegFiles(); rf++ {
		bits := r.SourceBitmask[rf]
		if bits.Len() == 0 {
			continue
		}
		remaining++
	}
	if remaining == 0 {
		q.promote(r)
		return
	}

	for rf := 0; rf < insts.NumRegFiles(); rf++ {
		bits := r.SourceBitmask[rf]
		if bits.Len() == 0 {
			continue
		}
		sb := q.scoreboards[rf]
		sb.AwaitAll(r.UniqueID, bits, func() {
			remaining--
			if remaining == 0 {
				q.promote(r)
			}
		})
	}
}

func (q *Queue) promote(r *insts.InstRecord) {
	if _, ok := q.waiting[r.UniqueID]; !ok {
		return // already removed, e.g. by a flush racing the wakeup
	}
	delete(q.waiting, r.UniqueID)
	q.ready = append(q.ready, r)
}

// Tick drains the ready list, handing each instruction off to the first
// pipe that reports CanAccept, in declared order. Instructions that find
// no available pipe remain ready and are retried next cycle.
func (q *Queue) Tick() {
	remaining := q.ready[:0]
	for _, r := range q.ready {
		placed := false
		for _, p := range q.pipes {
			if p.CanAccept() {
				p.InsertInst(r)
				q.creditReturn()
				placed = true
				break
			}
		}
		if !placed {
			remaining = append(remaining, r)
		}
	}
	q.ready = remaining
}

// OnFlush implements flush.Listener: it erases every instruction affected
// by c, cancelling any pending scoreboard callback and refunding one
// credit per erased instruction.
func (q *Queue) OnFlush(c flush.Criteria) {
	for id, r := range q.waiting {
		if c.Affects(r) {
			for rf := 0; rf < insts.NumRegFiles(); rf++ {
				if r.SourceBitmask[rf].Len() > 0 {
					q.scoreboards[rf].CancelAwait(r.UniqueID)
				}
			}
			delete(q.waiting, id)
			q.creditReturn()
		}
	}

	kept := q.ready[:0]
	for _, r := range q.ready {
		if c.Affects(r) {
			q.creditReturn()
			continue
		}
		kept = append(kept, r)
	}
	q.ready = kept
}
