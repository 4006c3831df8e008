// Package lsu models the scalar load/store unit and its vector
// counterpart (VLSU), sharing a common memory-responder protocol and
// pipeline-stage ordering: ADDRESS_CALC -> MMU_LOOKUP -> CACHE_LOOKUP ->
// CACHE_READ -> COMPLETE.
package lsu

import (
	"errors"

	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

// Stage is a position in the shared LSU/VLSU pipeline.
type Stage int

const (
	AddressCalc Stage = iota
	MMULookup
	CacheLookup
	CacheRead
	Complete
)

// ErrReplayExhausted names the condition in which an entry's replay count
// exceeds MaxReplays. No LSU method returns it: the LSU reports the
// condition through the onReplayExhausted callback passed to New, and the
// caller (the ROB, via the core's wiring) must flush the offending
// instruction inclusively and restart it.
var ErrReplayExhausted = errors.New("lsu: replay count exhausted")

// ErrStoreBufferFull is returned by TryAccept when the store buffer has
// no room, signalling backpressure upstream.
var ErrStoreBufferFull = errors.New("lsu: store buffer full")

// MaxReplays bounds how many times a single entry may be replayed on a
// cache miss before the core gives up and flushes it.
const MaxReplays = 8

// MemResponder is the protocol both LSU and VLSU speak to their backing
// memory system (cache/MMU), modeled as a credit/response contract
// rather than one unit subclassing the other.
type MemResponder interface {
	// TryRequest issues addr (size bytes) and returns false if the
	// responder has no credit this cycle.
	TryRequest(addr uint64, size int) bool
	// Poll returns (hit, latency) for the most recently issued request
	// once it resolves; ready reports whether a resolution is available
	// yet.
	Poll() (hit bool, latency uint64, ready bool)
}

// entry is one in-flight scalar load or store.
type entry struct {
	inst       *insts.InstRecord
	isStore    bool
	addr       uint64
	size       int
	stage      Stage
	replays    int
	cyclesLeft uint64
}

// storeBufEntry is a committed-to-MMU store awaiting retirement ack.
type storeBufEntry struct {
	inst *insts.InstRecord
	addr uint64
}

// LSU is the scalar load/store unit.
type LSU struct {
	mem         MemResponder
	scoreboards []*scoreboard.View
	replayDelay uint64

	inFlight    []*entry
	replayQueue []*entry
	storeBuffer []storeBufEntry

	onReplayExhausted func(r *insts.InstRecord)
}

// New returns an LSU backed by mem, consulting sbs for dest-ready
// signalling, with replayDelay cycles between a cache-miss replay
// attempt and the next. onReplayExhausted is called (instead of
// returning an error synchronously, since replay exhaustion is detected
// asynchronously during Tick) when an entry gives up after MaxReplays.
func New(mem MemResponder, sbs []*scoreboard.View, replayDelay uint64, onReplayExhausted func(r *insts.InstRecord)) *LSU {
	return &LSU{
		mem:               mem,
		scoreboards:       sbs,
		replayDelay:       replayDelay,
		onReplayExhausted: onReplayExhausted,
	}
}

// storeBufferCapacity bounds the number of uncommitted stores.
const storeBufferCapacity = 64

// TryAccept admits inst (a resolved load/store address from Dispatch) if
// it is a store and the store buffer has room, or always for a load.
// It returns ErrStoreBufferFull if a store cannot be admitted.
func (l *LSU) TryAccept(inst *insts.InstRecord, addr uint64, size int, isStore bool) error {
	if isStore && len(l.storeBuffer) >= storeBufferCapacity {
		return ErrStoreBufferFull
	}
	l.inFlight = append(l.inFlight, &entry{inst: inst, addr: addr, size: size, isStore: isStore, stage: AddressCalc})
	return nil
}

// forwardsFrom reports whether a load at addr/size can be served by a
// pending store to the same address, modeled as a latency shortcut only
// (no value is carried).
func (l *LSU) forwardsFrom(addr uint64) bool {
	for _, s := range l.storeBuffer {
		if s.addr == addr {
			return true
		}
	}
	return false
}

// Tick advances every in-flight entry one pipeline stage, issuing a
// memory request at CacheLookup and completing (raising the dest
// scoreboard bit) at Complete. A cache miss without forwarding pushes
// the entry onto the replay queue.
func (l *LSU) Tick() {
	for _, q := range l.replayQueue {
		if q.cyclesLeft > 0 {
			q.cyclesLeft--
			continue
		}
		l.retry(q)
	}

	remaining := l.inFlight[:0]
	for _, e := range l.inFlight {
		switch e.stage {
		case AddressCalc:
			e.stage = MMULookup
			remaining = append(remaining, e)
		case MMULookup:
			if e.isStore {
				l.storeBuffer = append(l.storeBuffer, storeBufEntry{inst: e.inst, addr: e.addr})
			}
			e.stage = CacheLookup
			remaining = append(remaining, e)
		case CacheLookup:
			if !e.isStore && l.forwardsFrom(e.addr) {
				e.stage = Complete
				l.completeEntry(e)
				continue
			}
			if l.mem.TryRequest(e.addr, e.size) {
				e.stage = CacheRead
			}
			remaining = append(remaining, e)
		case CacheRead:
			hit, latency, ready := l.mem.Poll()
			if !ready {
				remaining = append(remaining, e)
				continue
			}
			if hit {
				e.stage = Complete
				e.cyclesLeft = latency
				l.completeEntry(e)
				continue
			}
			l.enqueueReplay(e)
		default:
			// Complete entries are dropped from in-flight by completeEntry.
		}
	}
	l.inFlight = remaining
}

func (l *LSU) completeEntry(e *entry) {
	for rf := 0; rf < insts.NumRegFiles(); rf++ {
		e.inst.DestBitmask[rf].Each(func(reg uint32) {
			l.scoreboards[rf].Set(reg)
		})
	}
	e.inst.Status = insts.StatusCompleted
}

func (l *LSU) enqueueReplay(e *entry) {
	e.replays++
	if e.replays > MaxReplays {
		if l.onReplayExhausted != nil {
			l.onReplayExhausted(e.inst)
		}
		return
	}
	e.stage = CacheLookup
	e.cyclesLeft = l.replayDelay
	l.replayQueue = append(l.replayQueue, e)
}

func (l *LSU) retry(e *entry) {
	l.removeFromReplayQueue(e)
	l.inFlight = append(l.inFlight, e)
}

func (l *LSU) removeFromReplayQueue(target *entry) {
	kept := l.replayQueue[:0]
	for _, e := range l.replayQueue {
		if e != target {
			kept = append(kept, e)
		}
	}
	l.replayQueue = kept
}

// AckRetire pops the oldest store in the buffer matching inst, in
// program order, once the ROB retires it.
func (l *LSU) AckRetire(inst *insts.InstRecord) {
	for i, s := range l.storeBuffer {
		if s.inst == inst {
			l.storeBuffer = append(l.storeBuffer[:i], l.storeBuffer[i+1:]...)
			return
		}
	}
}

// OnFlush implements flush.Listener: in-flight and replay-queue entries
// affected by c are dropped; store-buffer entries are left intact, since
// a committed store cannot be undone by a later misprediction.
func (l *LSU) OnFlush(c flush.Criteria) {
	keptFlight := l.inFlight[:0]
	for _, e := range l.inFlight {
		if !c.Affects(e.inst) {
			keptFlight = append(keptFlight, e)
		}
	}
	l.inFlight = keptFlight

	keptReplay := l.replayQueue[:0]
	for _, e := range l.replayQueue {
		if !c.Affects(e.inst) {
			keptReplay = append(keptReplay, e)
		}
	}
	l.replayQueue = keptReplay
}

// InFlightLen returns the number of entries currently in the scalar
// pipeline (excluding the replay queue).
func (l *LSU) InFlightLen() int { return len(l.inFlight) }

// StoreBufferLen returns the number of uncommitted stores.
func (l *LSU) StoreBufferLen() int { return len(l.storeBuffer) }

// String implements fmt.Stringer for Stage, used in trace output.
func (s Stage) String() string {
	switch s {
	case AddressCalc:
		return "ADDRESS_CALC"
	case MMULookup:
		return "MMU_LOOKUP"
	case CacheLookup:
		return "CACHE_LOOKUP"
	case CacheRead:
		return "CACHE_READ"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN_STAGE"
	}
}
