// Package rob implements the reorder buffer: an in-order FIFO of
// in-flight instructions that drives retirement and, on a mispredicted
// head, drives the flush.
package rob

import (
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
)

// RenameAcker acks a retiring instruction's rename state.
type RenameAcker interface {
	Retire(r *insts.InstRecord)
}

// StoreAcker acks a retiring store's commit to the store buffer.
type StoreAcker interface {
	AckRetire(r *insts.InstRecord)
}

// ROB is the reorder buffer.
type ROB struct {
	size        int
	numToRetire int
	instLimit   uint64

	entries []*insts.InstRecord

	renameAckers []RenameAcker
	storeAcker   StoreAcker
	flushMgr     *flush.Manager

	retired  uint64
	stopOnce bool
	stopped  bool
}

// New returns an empty ROB of the given size, retiring up to
// numToRetire per cycle, broadcasting mispredict flushes through
// flushMgr, and emitting a one-shot stop once retired reaches
// instLimit (0 disables the limit).
func New(size, numToRetire int, instLimit uint64, flushMgr *flush.Manager) *ROB {
	return &ROB{size: size, numToRetire: numToRetire, instLimit: instLimit, flushMgr: flushMgr}
}

// RegisterRenameAcker adds a per-regfile rename unit to be acked on
// retirement. The ROB does not drive rename rollback on a flush.
func (r *ROB) RegisterRenameAcker(a RenameAcker) {
	r.renameAckers = append(r.renameAckers, a)
}

// RegisterStoreAcker sets the LSU instance acked on store retirement.
func (r *ROB) RegisterStoreAcker(a StoreAcker) {
	r.storeAcker = a
}

// Len returns the number of in-flight instructions.
func (r *ROB) Len() int { return len(r.entries) }

// Full reports whether the ROB is at capacity.
func (r *ROB) Full() bool { return len(r.entries) >= r.size }

// TryInsert appends inst to the tail if there is room.
func (r *ROB) TryInsert(inst *insts.InstRecord) bool {
	if r.Full() {
		return false
	}
	r.entries = append(r.entries, inst)
	return true
}

// CompleteImmediately marks a ROB-targeted instruction (e.g. SYS)
// COMPLETED the instant it is inserted, since it never visits an
// execute pipe.
func (r *ROB) CompleteImmediately(inst *insts.InstRecord) {
	inst.Status = insts.StatusCompleted
}

// Stopped reports whether the one-shot inst-limit notification has
// fired.
func (r *ROB) Stopped() bool { return r.stopped }

// Retired returns the cumulative retired-instruction count.
func (r *ROB) Retired() uint64 { return r.retired }

// Tick retires up to numToRetire instructions from the head. A
// COMPLETED, non-mispredicted head retires, acking every regfile's
// rename unit and the store-buffer acker. A mispredicted head instead
// raises a non-inclusive flush; every entry strictly after it is dropped
// when that flush is broadcast (see OnFlush). The head itself retires on
// a later cycle once its Mispredicted flag is cleared (the branch inst
// completes normally; only younger insts are cancelled).
func (r *ROB) Tick() {
	for i := 0; i < r.numToRetire; i++ {
		if len(r.entries) == 0 {
			return
		}
		head := r.entries[0]

		if head.Mispredicted {
			r.flushMgr.Raise(flush.Criteria{Offending: head, Inclusive: false})
			return
		}

		if head.Status != insts.StatusCompleted {
			return
		}

		head.Status = insts.StatusRetired
		r.entries = r.entries[1:]
		for _, acker := range r.renameAckers {
			acker.Retire(head)
		}
		if r.storeAcker != nil {
			r.storeAcker.AckRetire(head)
		}
		r.retired++

		if !r.stopOnce && r.instLimit > 0 && r.retired >= r.instLimit {
			r.stopOnce = true
			r.stopped = true
		}
	}
}

// OnFlush implements flush.Listener: entries affected by c are dropped
// from the ROB. Rename rollback (restoring rat/freelist) is the
// responsibility of the rename units, driven separately by the core's
// flush-phase wiring so it can walk entries in reverse before they are
// dropped here.
func (r *ROB) OnFlush(c flush.Criteria) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !c.Affects(e) {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Entries returns the live entries, oldest (head) first, for the core's
// flush phase to walk in reverse when undoing rename.
func (r *ROB) Entries() []*insts.InstRecord {
	return r.entries
}
