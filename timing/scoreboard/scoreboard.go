// Package scoreboard tracks per-physical-register readiness and lets
// waiters install a wakeup callback that fires once every register they
// are waiting on becomes ready.
package scoreboard

import "github.com/sarchlab/rvooo/insts"

// callback is a pending wakeup registration.
type callback struct {
	uniqueID uint64
	missing  map[uint32]struct{}
	fn       func()
}

// View is the scoreboard for a single register file: one ready bit per
// physical register, plus at most one pending wakeup callback per
// (uniqueID, regfile).
type View struct {
	regFile insts.RegFile
	ready   []bool
	pending map[uint64]*callback
}

// New returns a View with numPhysRegs physical registers, all initially
// ready (the reset state architectural registers start in).
func New(regFile insts.RegFile, numPhysRegs int) *View {
	ready := make([]bool, numPhysRegs)
	for i := range ready {
		ready[i] = true
	}
	return &View{
		regFile: regFile,
		ready:   ready,
		pending: make(map[uint64]*callback),
	}
}

// RegFile returns the register file this view tracks.
func (v *View) RegFile() insts.RegFile { return v.regFile }

// NumPhysRegs returns the number of physical registers tracked.
func (v *View) NumPhysRegs() int { return len(v.ready) }

// Clear marks reg not-ready. Called by rename on dest allocation.
func (v *View) Clear(reg uint32) {
	v.ready[reg] = false
}

// Set marks reg ready and fires any pending callback whose missing set
// becomes empty as a result. Called by an ExecutePipe on completion.
func (v *View) Set(reg uint32) {
	if v.ready[reg] {
		return
	}
	v.ready[reg] = true
	for id, cb := range v.pending {
		delete(cb.missing, reg)
		if len(cb.missing) == 0 {
			delete(v.pending, id)
			cb.fn()
		}
	}
}

// IsReady reports whether reg is currently ready.
func (v *View) IsReady(reg uint32) bool {
	return v.ready[reg]
}

// AllReady reports whether every register in bits is ready.
func (v *View) AllReady(bits insts.BitSet) bool {
	ready := true
	bits.Each(func(reg uint32) {
		if !v.ready[reg] {
			ready = false
		}
	})
	return ready
}

// Missing returns the subset of bits that is not yet ready.
func (v *View) Missing(bits insts.BitSet) insts.BitSet {
	out := insts.NewBitSet()
	bits.Each(func(reg uint32) {
		if !v.ready[reg] {
			out.Add(reg)
		}
	})
	return out
}

// AwaitAll registers fn to run once every register in bits is ready,
// keyed by uniqueID. Installing a second callback for the same uniqueID
// replaces the first, preserving the at-most-one-callback invariant.
// If bits is already all-ready, fn is called immediately and no callback
// is installed.
func (v *View) AwaitAll(uniqueID uint64, bits insts.BitSet, fn func()) {
	missing := v.Missing(bits)
	if missing.Len() == 0 {
		fn()
		return
	}
	v.pending[uniqueID] = &callback{
		uniqueID: uniqueID,
		missing:  toMap(missing),
		fn:       fn,
	}
}

// CancelAwait removes any pending callback for uniqueID, e.g. on flush.
func (v *View) CancelAwait(uniqueID uint64) {
	delete(v.pending, uniqueID)
}

// HasPendingAwait reports whether uniqueID currently has an installed
// wakeup callback.
func (v *View) HasPendingAwait(uniqueID uint64) bool {
	_, ok := v.pending[uniqueID]
	return ok
}

func toMap(b insts.BitSet) map[uint32]struct{} {
	m := make(map[uint32]struct{}, b.Len())
	b.Each(func(reg uint32) {
		m[reg] = struct{}{}
	})
	return m
}
