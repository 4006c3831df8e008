// Package flush broadcasts flush criteria to every registered component
// and owns the flush-vs-instruction predicate.
package flush

import "github.com/sarchlab/rvooo/insts"

// Criteria describes a flush triggered by a single offending instruction.
// Inclusive flushes cancel the offending instruction itself (e.g. a
// fault); non-inclusive flushes keep it and cancel only younger ones
// (e.g. a resolved branch misprediction, where the branch itself
// completes normally).
type Criteria struct {
	Offending *insts.InstRecord
	Inclusive bool
}

// Affects reports whether r must be cancelled under c, using program
// order (UniqueID) as the cancellation boundary.
func (c Criteria) Affects(r *insts.InstRecord) bool {
	if c.Inclusive {
		return r.UniqueID >= c.Offending.UniqueID
	}
	return r.UniqueID > c.Offending.UniqueID
}

// Listener is implemented by any component that must react to a flush.
type Listener interface {
	OnFlush(c Criteria)
}

// Manager fans a flush out to every registered Listener, in registration
// order.
type Manager struct {
	listeners []Listener
	pending   []Criteria
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds l to the fan-out list.
func (m *Manager) Register(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Raise queues a flush to be broadcast on the next Drain. Multiple raises
// within a cycle are coalesced to the one with the lowest offending
// UniqueID, since it is the most restrictive.
func (m *Manager) Raise(c Criteria) {
	for _, existing := range m.pending {
		if existing.Offending.UniqueID <= c.Offending.UniqueID {
			return
		}
	}
	m.pending = m.pending[:0]
	m.pending = append(m.pending, c)
}

// Pending reports whether a flush has been raised this cycle.
func (m *Manager) Pending() (Criteria, bool) {
	if len(m.pending) == 0 {
		return Criteria{}, false
	}
	return m.pending[0], true
}

// Drain broadcasts any pending flush to every listener and clears it.
// This is the Flush phase of the per-cycle Flush/Update/Tick/PostTick
// order.
func (m *Manager) Drain() {
	if len(m.pending) == 0 {
		return
	}
	c := m.pending[0]
	m.pending = m.pending[:0]
	for _, l := range m.listeners {
		l.OnFlush(c)
	}
}
