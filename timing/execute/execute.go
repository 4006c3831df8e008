// Package execute models a single execution pipe: one in-flight
// instruction at a time, a fixed (or multi-pass, for wide vector ALU ops)
// latency, scoreboard wakeup on completion, and branch-misprediction
// detection.
package execute

import (
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

// MispredictDenominator makes the randomized misprediction probability
// ~1/20, matching the spec's "probability ~1/20" for randomized test
// mode.
const MispredictDenominator = 20

// Rand is the minimal randomness surface a Pipe needs; satisfied by
// *internal/rng.Source.
type Rand interface {
	Intn(n int) int
}

// VsetForwarder receives the resolved vector_config of a blocking vset
// once it executes.
type VsetForwarder interface {
	ForwardVectorConfig(r *insts.InstRecord, cfg insts.VectorConfig)
}

// event is a scheduled callback at a future absolute cycle.
type event struct {
	atCycle uint64
	fn      func()
}

// Pipe is a single execution unit.
type Pipe struct {
	name           string
	isBranchPipe   bool
	randomizedMode bool
	rand           Rand
	vsetForwarder  VsetForwarder
	valuAdderNum   int

	scoreboards []*scoreboard.View
	cycle       uint64

	busy       bool
	inst       *insts.InstRecord
	events     []event
	passesLeft int
}

// New returns an idle Pipe named name, consulting sbs (one View per
// register file) to raise dest-ready bits on completion.
func New(name string, sbs []*scoreboard.View) *Pipe {
	return &Pipe{name: name, scoreboards: sbs, valuAdderNum: 1}
}

// AsBranchPipe marks this pipe as the one that resolves branches, making
// it eligible for randomized-mode misprediction injection.
func (p *Pipe) AsBranchPipe() *Pipe { p.isBranchPipe = true; return p }

// WithRandomizedMispredict enables ~1/20 randomized misprediction using r,
// intended for test-mode exploration rather than a real predictor model.
func (p *Pipe) WithRandomizedMispredict(r Rand) *Pipe {
	p.randomizedMode = true
	p.rand = r
	return p
}

// WithVsetForwarder registers the collaborator notified when a blocking
// vset resolves.
func (p *Pipe) WithVsetForwarder(f VsetForwarder) *Pipe {
	p.vsetForwarder = f
	return p
}

// WithVALUAdderNum sets the number of VALU adders available per pass for
// the vector-INT multi-pass special case.
func (p *Pipe) WithVALUAdderNum(n int) *Pipe {
	if n > 0 {
		p.valuAdderNum = n
	}
	return p
}

// Name returns the pipe's identifying name.
func (p *Pipe) Name() string { return p.name }

// CanAccept reports whether the pipe has a free slot.
func (p *Pipe) CanAccept() bool { return !p.busy }

// InsertInst accepts r, marks it SCHEDULED, and schedules its execute
// event at +latency (or, for a multi-pass vector-INT op, the first of
// several passes).
func (p *Pipe) InsertInst(r *insts.InstRecord) {
	p.busy = true
	p.inst = r
	r.Status = insts.StatusScheduled

	passes := 1
	if r.PipeTarget == insts.PipeVINT && r.VectorConfig != nil {
		elemsPerUop := elemsPerReg(r.VectorConfig.SEW)
		if int(elemsPerUop) > p.valuAdderNum {
			passes = ceilDiv(int(elemsPerUop), p.valuAdderNum)
		}
	}
	p.passesLeft = passes

	p.scheduleAt(r.ExecuteLatency, p.runPass)
}

func elemsPerReg(sew uint32) uint32 {
	if sew == 0 {
		return 1
	}
	return insts.VLEN / sew
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func (p *Pipe) runPass() {
	p.passesLeft--
	if p.passesLeft > 0 {
		p.scheduleAt(1, p.runPass)
		return
	}
	p.executeInst()
}

// executeInst raises every dest regfile's bitmask bits ready, resolves a
// randomized branch misprediction if this is the branch pipe in
// randomized mode, forwards a resolved blocking-vset config, and
// schedules completeInst one cycle later.
func (p *Pipe) executeInst() {
	r := p.inst
	for rf := 0; rf < insts.NumRegFiles(); rf++ {
		r.DestBitmask[rf].Each(func(reg uint32) {
			p.scoreboards[rf].Set(reg)
		})
	}

	if p.isBranchPipe && p.randomizedMode && p.rand != nil && r.PipeTarget == insts.PipeBR {
		if p.rand.Intn(MispredictDenominator) == 0 {
			r.Mispredicted = true
		}
	}

	if r.BlockingVset && p.vsetForwarder != nil && r.VectorConfig != nil {
		p.vsetForwarder.ForwardVectorConfig(r, *r.VectorConfig)
	}

	p.scheduleAt(1, p.completeInst)
}

func (p *Pipe) completeInst() {
	p.inst.Status = insts.StatusCompleted
	p.busy = false
	p.inst = nil
}

func (p *Pipe) scheduleAt(delay uint64, fn func()) {
	p.events = append(p.events, event{atCycle: p.cycle + delay, fn: fn})
}

// Tick advances the pipe's internal clock by one cycle and fires any
// event now due.
func (p *Pipe) Tick() {
	p.cycle++
	var due []event
	remaining := p.events[:0]
	for _, e := range p.events {
		if e.atCycle <= p.cycle {
			due = append(due, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	p.events = remaining
	for _, e := range due {
		e.fn()
	}
}

// OnFlush implements flush.Listener: if the in-flight instruction is
// affected, its pending events are cancelled and the pipe goes idle.
func (p *Pipe) OnFlush(c flush.Criteria) {
	if p.inst == nil || !c.Affects(p.inst) {
		return
	}
	p.events = nil
	p.busy = false
	p.inst = nil
	p.passesLeft = 0
}
