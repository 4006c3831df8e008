// Package dispatch fans decoded-and-renamed instructions out to the
// pipe-specific issue queue declared to serve their pipe target, and to
// the ROB, tracking per-pipe stall reasons.
package dispatch

import "github.com/sarchlab/rvooo/insts"

// Target is a single credit-flow-controlled destination a pipe target can
// be routed to.
type Target interface {
	// TryAccept attempts to hand r off; it returns false if the target
	// has no credit this cycle.
	TryAccept(r *insts.InstRecord) bool
}

// ROBTarget is the single reorder-buffer insertion point; every dispatched
// instruction also consumes a ROB credit.
type ROBTarget interface {
	TryInsert(r *insts.InstRecord) bool
	// CompleteImmediately marks a ROB-targeted (e.g. SYS) instruction
	// COMPLETED the instant it is inserted, since it never visits an
	// execute pipe.
	CompleteImmediately(r *insts.InstRecord)
}

// numStallReasons is the stall histogram width. Bins are indexed by
// insts.PipeTarget, so only the first insts.NumPipeTargets() (23) bins
// are ever used; the remaining bins stay zero.
const numStallReasons = 32

// Dispatch routes up to numToDispatch head-of-queue instructions per
// cycle to the IssueQueue(s) declared for their pipe target.
type Dispatch struct {
	numToDispatch int
	targets       map[insts.PipeTarget][]Target
	rob           ROBTarget

	queue []*insts.InstRecord

	// robReserved tracks whether the current head-of-queue instruction
	// has already consumed its ROB slot, so a placement stall that
	// spans multiple Tick calls does not insert it into the ROB twice.
	robReserved bool

	issuedByPipe [numStallReasons]uint64
	stallCycles  [numStallReasons]uint64
}

// New returns a Dispatch that dispatches up to numToDispatch instructions
// per cycle, routing through rob for ROB insertion.
func New(numToDispatch int, rob ROBTarget) *Dispatch {
	return &Dispatch{
		numToDispatch: numToDispatch,
		targets:       make(map[insts.PipeTarget][]Target),
		rob:           rob,
	}
}

// Route declares target as an eligible destination for pipe, in priority
// (tie-break) order among targets already declared for that pipe.
func (d *Dispatch) Route(pipe insts.PipeTarget, target Target) {
	d.targets[pipe] = append(d.targets[pipe], target)
}

// Enqueue appends r to the dispatch-queue, to be considered on a future
// Tick.
func (d *Dispatch) Enqueue(r *insts.InstRecord) {
	d.queue = append(d.queue, r)
}

// QueueLen returns the number of instructions waiting to be dispatched.
func (d *Dispatch) QueueLen() int { return len(d.queue) }

// Tick examines up to numToDispatch head-of-queue instructions, routing
// each to the first Target with credit for its pipe target and to the
// ROB. It stops at the first instruction it cannot place, recording a
// stall reason for that pipe.
func (d *Dispatch) Tick() {
	n := 0
	for n < d.numToDispatch && len(d.queue) > 0 {
		r := d.queue[0]

		if !d.robReserved {
			if !d.rob.TryInsert(r) {
				d.stallCycles[insts.PipeROB]++
				return
			}
			d.robReserved = true
		}

		if r.PipeTarget == insts.PipeROB {
			d.rob.CompleteImmediately(r)
			d.queue = d.queue[1:]
			d.robReserved = false
			n++
			continue
		}

		placed := false
		for _, t := range d.targets[r.PipeTarget] {
			if t.TryAccept(r) {
				placed = true
				break
			}
		}
		if !placed {
			d.stallCycles[r.PipeTarget]++
			return
		}

		d.issuedByPipe[r.PipeTarget]++
		d.queue = d.queue[1:]
		d.robReserved = false
		n++
	}
}

// Issued returns the cumulative number of instructions routed to pipe.
func (d *Dispatch) Issued(pipe insts.PipeTarget) uint64 {
	return d.issuedByPipe[pipe]
}

// StallCycles returns the cumulative number of cycles dispatch stalled
// because pipe had no available credit.
func (d *Dispatch) StallCycles(pipe insts.PipeTarget) uint64 {
	return d.stallCycles[pipe]
}
