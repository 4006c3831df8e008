// Package core wires every timing unit into a single out-of-order
// pipeline: decode/uop-generation, rename, dispatch, issue, execute,
// memory, and retirement, ticked once per cycle in Flush, Update, Tick,
// PostTick phase order.
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/rvooo/config"
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/internal/rng"
	"github.com/sarchlab/rvooo/timing/branch"
	"github.com/sarchlab/rvooo/timing/cache"
	"github.com/sarchlab/rvooo/timing/dispatch"
	"github.com/sarchlab/rvooo/timing/execute"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/fusion"
	"github.com/sarchlab/rvooo/timing/issue"
	"github.com/sarchlab/rvooo/timing/lsu"
	"github.com/sarchlab/rvooo/timing/rename"
	"github.com/sarchlab/rvooo/timing/rob"
	"github.com/sarchlab/rvooo/timing/scoreboard"
	"github.com/sarchlab/rvooo/timing/uopgen"
)

// replayDelay is the number of cycles an LSU entry waits between a cache
// miss and its next replay attempt.
const replayDelay = 4

// lsuInFlightCap bounds how many loads/stores the LSU admits at once,
// standing in for the issue-pipe backpressure a real memory unit exposes.
const lsuInFlightCap = 16

// fusionWindowCap bounds how many trailing decoded instructions are kept
// around for mnemonic-sequence fusion matching.
const fusionWindowCap = 8

// Stats holds cumulative performance counters for a Core.
type Stats struct {
	Cycles       uint64
	Retired      uint64
	Flushes      uint64
	DecodeStalls uint64
}

// Core is a single out-of-order superscalar core.
type Core struct {
	topo *config.Topology

	pool     *insts.Pool
	flushMgr *flush.Manager

	scoreboards [3]*scoreboard.View
	renames     [3]*rename.State

	rob      *rob.ROB
	dispatch *dispatch.Dispatch

	issueQueues map[string]*issue.Queue
	units       []*unit

	lsUnit  *lsu.LSU
	vlsUnit *lsu.VLSU
	cacheC  *cache.Cache
	mem     *cache.Responder

	uopGen       *uopgen.Generator
	fusionTable  *fusion.Table
	fusionWindow []*insts.InstRecord
	predictor    *branch.Predictor
	mispredRand  *rng.Source

	fetch         []*insts.InstRecord
	fetchIdx      int
	pendingDecode *insts.InstRecord

	vcfg         insts.VectorConfig
	vsetBlocking bool

	halted bool
	stats  Stats
}

// unit is one execute-unit slot declared by a topology's Pipelines entry.
// It may be a generic execute.Pipe, or an adapter over the LSU/VLSU for
// memory-tagged units.
type unit struct {
	tags []string
	pipe issue.Pipe
}

// lsuPipeAdapter presents the scalar LSU as an issue.Pipe.
type lsuPipeAdapter struct {
	lsu     *lsu.LSU
	isStore bool
}

func (a *lsuPipeAdapter) CanAccept() bool { return a.lsu.InFlightLen() < lsuInFlightCap }
func (a *lsuPipeAdapter) InsertInst(r *insts.InstRecord) {
	_ = a.lsu.TryAccept(r, r.TargetVAddr, 8, a.isStore)
}

// vlsuPipeAdapter presents the vector LSU as an issue.Pipe.
type vlsuPipeAdapter struct {
	v *lsu.VLSU
}

func (a *vlsuPipeAdapter) CanAccept() bool { return a.v.InFlightLen() < lsuInFlightCap }
func (a *vlsuPipeAdapter) InsertInst(r *insts.InstRecord) {
	eew := uint32(32)
	vl := uint32(0)
	if r.VectorConfig != nil {
		eew = r.VectorConfig.SEW
		vl = r.VectorConfig.VL
	}
	a.v.Accept(r, lsu.VectorMemConfig{EEW: eew, Mode: lsu.UnitStride, VL: vl}, r.TargetVAddr)
}

// robSysTarget completes SYS-targeted instructions the instant the ROB
// accepts them, since they never visit an execute pipe.
type robSysTarget struct{ rob *rob.ROB }

func (t *robSysTarget) TryAccept(r *insts.InstRecord) bool {
	t.rob.CompleteImmediately(r)
	return true
}

// issueTarget presents an issue.Queue as a dispatch.Target.
type issueTarget struct{ q *issue.Queue }

func (t *issueTarget) TryAccept(r *insts.InstRecord) bool {
	if t.q.Full() {
		return false
	}
	t.q.Push(r)
	return true
}

// pipeTargetByTag reverses insts.PipeTarget.String().
func pipeTargetByTag(tag string) (insts.PipeTarget, bool) {
	for p := insts.PipeTarget(0); int(p) < insts.NumPipeTargets(); p++ {
		if p.String() == tag {
			return p, true
		}
	}
	return 0, false
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewCore builds a Core for topo, driven by the given instruction stream.
func NewCore(topo *config.Topology, program []*insts.InstRecord) *Core {
	c := &Core{
		topo:        topo,
		pool:        insts.NewPool(1),
		flushMgr:    flush.NewManager(),
		issueQueues: make(map[string]*issue.Queue),
		fetch:       program,
		vcfg:        insts.VectorConfig{VL: 0, SEW: 32, LMUL: insts.LMul8Of1},
		predictor:   branch.New(branch.DefaultConfig()),
		mispredRand: rng.New(0),
	}

	c.scoreboards[insts.RegInt] = scoreboard.New(insts.RegInt, topo.NumPhysRegsInt)
	c.scoreboards[insts.RegFloat] = scoreboard.New(insts.RegFloat, topo.NumPhysRegsFloat)
	c.scoreboards[insts.RegVector] = scoreboard.New(insts.RegVector, topo.NumPhysRegsVector)

	c.renames[insts.RegInt] = rename.New(insts.RegInt, 32, topo.NumPhysRegsInt, c.scoreboards[insts.RegInt])
	c.renames[insts.RegFloat] = rename.New(insts.RegFloat, 32, topo.NumPhysRegsFloat, c.scoreboards[insts.RegFloat])
	c.renames[insts.RegVector] = rename.New(insts.RegVector, 32, topo.NumPhysRegsVector, c.scoreboards[insts.RegVector])

	c.rob = rob.New(topo.ROBSize, topo.NumToRetire, uint64(len(program)), c.flushMgr)
	c.flushMgr.Register(c.rob)
	c.rob.RegisterRenameAcker(c.renames[insts.RegInt])
	c.rob.RegisterRenameAcker(c.renames[insts.RegFloat])
	c.rob.RegisterRenameAcker(c.renames[insts.RegVector])

	c.cacheC = cache.New(cache.Config{
		Size:          topo.L1DSizeBytes,
		Associativity: topo.L1DAssociativity,
		BlockSize:     topo.L1DBlockSizeBytes,
		HitLatency:    topo.L1DHitLatency,
		MissLatency:   topo.L1DMissLatency,
	}, cache.NewFlatBacking())
	c.mem = cache.NewResponder(c.cacheC)

	sbs := []*scoreboard.View{c.scoreboards[insts.RegInt], c.scoreboards[insts.RegFloat], c.scoreboards[insts.RegVector]}
	c.lsUnit = lsu.New(c.mem, sbs, replayDelay, func(r *insts.InstRecord) {
		c.flushMgr.Raise(flush.Criteria{Offending: r, Inclusive: true})
	})
	c.flushMgr.Register(c.lsUnit)
	c.rob.RegisterStoreAcker(c.lsUnit)

	c.vlsUnit = lsu.NewVLSU(c.mem, sbs)
	c.flushMgr.Register(c.vlsUnit)

	c.dispatch = dispatch.New(topo.NumToDispatch, c.rob)
	c.dispatch.Route(insts.PipeSYS, &robSysTarget{rob: c.rob})

	for name, tags := range topo.IssueQueueToPipeMap {
		// onCredit is nil: issueTarget.TryAccept is pull-based (checks
		// q.Full() directly), so there is no credit count for the queue
		// to refund back to dispatch.
		q := issue.New(topo.IssueQueueSize, sbs, nil)
		c.issueQueues[name] = q
		c.flushMgr.Register(q)
		for _, tag := range tags {
			if pt, ok := pipeTargetByTag(tag); ok {
				c.dispatch.Route(pt, &issueTarget{q: q})
			}
		}
	}

	for _, tags := range topo.Pipelines {
		u := c.buildUnit(tags, sbs)
		c.units = append(c.units, u)
		if p, ok := u.pipe.(interface{ OnFlush(flush.Criteria) }); ok {
			c.flushMgr.Register(p)
		}
		for name, qTags := range topo.IssueQueueToPipeMap {
			for _, tag := range tags {
				if containsTag(qTags, tag) {
					c.issueQueues[name].AddPipe(u.pipe)
					break
				}
			}
		}
	}

	c.uopGen = uopgen.New(c.pool)
	c.fusionTable = fusion.NewTable()

	return c
}

func (c *Core) buildUnit(tags []string, sbs []*scoreboard.View) *unit {
	name := strings.Join(tags, "+")
	switch {
	case containsTag(tags, "LSU"):
		return &unit{tags: tags, pipe: &lsuPipeAdapter{lsu: c.lsUnit, isStore: false}}
	case containsTag(tags, "VLOAD") || containsTag(tags, "VSTORE"):
		return &unit{tags: tags, pipe: &vlsuPipeAdapter{v: c.vlsUnit}}
	case containsTag(tags, "VSET"):
		p := execute.New(name, sbs).WithVsetForwarder(c)
		return &unit{tags: tags, pipe: p}
	case containsTag(tags, "BR"):
		p := execute.New(name, sbs).AsBranchPipe().WithRandomizedMispredict(c.mispredRand)
		return &unit{tags: tags, pipe: p}
	default:
		return &unit{tags: tags, pipe: execute.New(name, sbs)}
	}
}

// ForwardVectorConfig implements execute.VsetForwarder: the resolved
// vector configuration becomes visible to decode as soon as the vset
// executes in its pipe, unblocking fetch.
func (c *Core) ForwardVectorConfig(r *insts.InstRecord, cfg insts.VectorConfig) {
	c.vcfg = cfg
	c.vsetBlocking = false
}

// Halted reports whether the ROB has retired its instruction limit.
func (c *Core) Halted() bool { return c.halted }

// Stats returns the core's cumulative counters.
func (c *Core) Stats() Stats { return c.stats }

// Tick advances the core by one cycle: Flush, then Update, then Tick,
// then PostTick.
func (c *Core) Tick() {
	c.flushPhase()
	c.updatePhase()
	c.tickPhase()
	c.postTickPhase()
	c.stats.Cycles++

	if c.rob.Stopped() {
		c.halted = true
	}
}

func (c *Core) flushPhase() {
	crit, ok := c.flushMgr.Pending()
	if !ok {
		return
	}
	if b := crit.Offending; b != nil && b.PipeTarget == insts.PipeBR && b.Mispredicted {
		actualTaken := !b.PredictedTaken
		actualTarget := b.PredictedTarget
		if !actualTaken {
			actualTarget = 0
		}
		c.predictor.Update(b.PC, actualTaken, actualTarget)
		b.Mispredicted = false
		b.BranchResolved = true
	}

	c.rollbackRename(crit)
	c.flushMgr.Drain()
	c.stats.Flushes++
	if c.pendingDecode != nil && crit.Affects(c.pendingDecode) {
		c.pendingDecode = nil
	}
	if c.uopGen.Active() {
		c.uopGen.Reset()
	}
}

// rollbackRename walks ROB entries youngest-to-oldest, undoing each
// regfile's rename for every entry crit affects, so the RAT and
// freelists reflect the architectural state as of the flush point.
func (c *Core) rollbackRename(crit flush.Criteria) {
	entries := c.rob.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		r := entries[i]
		if !crit.Affects(r) {
			continue
		}
		c.renames[insts.RegInt].Undo(r)
		c.renames[insts.RegFloat].Undo(r)
		c.renames[insts.RegVector].Undo(r)
	}
}

func (c *Core) updatePhase() {
	c.mem.Tick()
}

func (c *Core) tickPhase() {
	for _, u := range c.units {
		if t, ok := u.pipe.(interface{ Tick() }); ok {
			t.Tick()
		}
	}
	c.lsUnit.Tick()
	c.vlsUnit.Tick()
	for _, q := range c.issueQueues {
		q.Tick()
	}
	var robHead *insts.InstRecord
	if entries := c.rob.Entries(); len(entries) > 0 {
		robHead = entries[0]
	}
	c.rob.Tick()
	if retired := c.rob.Retired(); retired > c.stats.Retired {
		c.stats.Retired = retired
	}
	if robHead != nil && robHead.Status == insts.StatusRetired &&
		robHead.PipeTarget == insts.PipeBR && !robHead.BranchResolved {
		c.predictor.Update(robHead.PC, robHead.PredictedTaken, robHead.PredictedTarget)
	}
	c.dispatch.Tick()
}

func (c *Core) postTickPhase() {
	if c.halted || c.vsetBlocking {
		c.stats.DecodeStalls++
		return
	}

	for n := 0; n < c.topo.NumToDispatch; n++ {
		r := c.nextDecoded()
		if r == nil {
			break
		}
		if !c.renameAndEnqueue(r) {
			c.pendingDecode = r
			c.stats.DecodeStalls++
			break
		}
		if c.vsetBlocking {
			break
		}
	}
}

// nextDecoded returns the next instruction ready to be renamed, draining
// an in-progress uop-generation session before pulling a new macro-op
// from the fetch stream.
func (c *Core) nextDecoded() *insts.InstRecord {
	if c.pendingDecode != nil {
		r := c.pendingDecode
		c.pendingDecode = nil
		return r
	}

	if c.uopGen.Active() {
		if c.uopGen.KeepGoing() {
			u := c.uopGen.GenerateUop()
			u.Status = insts.StatusDecoded
			return u
		}
		c.uopGen.Reset()
	}

	if c.fetchIdx >= len(c.fetch) {
		return nil
	}
	raw := c.fetch[c.fetchIdx]
	c.fetchIdx++

	r := c.pool.Alloc()
	r.ProgramID = raw.ProgramID
	r.PC = raw.PC
	r.TargetVAddr = raw.TargetVAddr
	r.Mnemonic = raw.Mnemonic
	r.Opcode = raw.Opcode
	r.Immediate = raw.Immediate
	r.HasImm = raw.HasImm
	r.SourceOps = append([]insts.Operand(nil), raw.SourceOps...)
	r.DestOps = append([]insts.Operand(nil), raw.DestOps...)
	r.PipeTarget = raw.PipeTarget
	r.ExecuteLatency = raw.ExecuteLatency
	r.UopGenType = raw.UopGenType
	insts.Fill(r)
	r.Status = insts.StatusDecoded
	c.trackFusion(r)

	if r.PipeTarget == insts.PipeVSET {
		resolved := c.vcfg
		resolved.VL = resolved.VLMax()
		if r.HasImm && r.Immediate > 0 && uint32(r.Immediate) < resolved.VLMax() {
			resolved.VL = uint32(r.Immediate)
		}
		r.VectorConfig = &resolved

		if vsetBlocks(r) {
			r.BlockingVset = true
			c.vsetBlocking = true
		} else {
			c.vcfg = resolved
		}
		return r
	}

	if r.UopGenType != insts.UopGenNone {
		cfg := c.vcfg
		r.VectorConfig = &cfg
		extFactor, segCount := uopShape(r.UopGenType, r.Mnemonic)
		if err := c.uopGen.SetInst(r, extFactor, segCount); err != nil {
			panic(fmt.Sprintf("core: uop generation for %q: %v", r.Mnemonic, err))
		}
		if c.uopGen.KeepGoing() {
			u := c.uopGen.GenerateUop()
			u.Status = insts.StatusDecoded
			return u
		}
		return nil
	}

	if r.PipeTarget == insts.PipeBR {
		pred := c.predictor.Predict(r.PC)
		r.PredictedTaken = pred.Taken
		if pred.TargetKnown {
			r.PredictedTarget = pred.Target
		} else {
			r.PredictedTarget = r.TargetVAddr
		}
	}

	return r
}

// trackFusion keeps a bounded trailing window of decoded macro-ops and
// offers it to the fusion table after every decode.
func (c *Core) trackFusion(r *insts.InstRecord) {
	c.fusionWindow = append(c.fusionWindow, r)
	if len(c.fusionWindow) > fusionWindowCap {
		c.fusionWindow = c.fusionWindow[len(c.fusionWindow)-fusionWindowCap:]
	}
	c.fusionTable.Apply(c.fusionWindow)
}

// vsetBlocks reports whether a vector-config instruction must stall
// fetch until it resolves. vsetivli encodes its AVL as an immediate and
// never reads a register, so it always resolves immediately. vsetvli and
// vsetvl only block when rs1 is a real (non-x0) source; with an x0 rs1 no
// register supplies the AVL, and nextDecoded resolves vl to VLMAX at
// decode with no execute-stage round trip.
func vsetBlocks(r *insts.InstRecord) bool {
	switch r.Mnemonic {
	case "vsetvli", "vsetvl":
		return len(r.SourceOps) > 0 && r.SourceOps[0].RegNum != 0
	default:
		return false
	}
}

// uopShape derives the extension factor and segment count a vector
// mnemonic needs from its UopGenType and, for integer extensions and
// segmented loads, from the digit embedded in its mnemonic (e.g.
// "vzext.vf4" -> 4, "vlseg3e32.v" -> 3).
func uopShape(t insts.UopGenType, mnemonic string) (extFactor, segCount uint32) {
	extFactor, segCount = 1, 1
	switch t {
	case insts.UopGenWidening, insts.UopGenWideningMixed, insts.UopGenMACWide, insts.UopGenReductionWide, insts.UopGenNarrowing:
		extFactor = 2
	case insts.UopGenIntExt:
		extFactor = 2
		if i := strings.LastIndex(mnemonic, ".vf"); i >= 0 {
			if n, err := strconv.Atoi(mnemonic[i+3:]); err == nil && n > 0 {
				extFactor = uint32(n)
			}
		}
	case insts.UopGenSegmentedLoad:
		segCount = segCountFromMnemonic(mnemonic)
	}
	return extFactor, segCount
}

func segCountFromMnemonic(mnemonic string) uint32 {
	const prefix = "vlseg"
	if !strings.HasPrefix(mnemonic, prefix) {
		return 1
	}
	rest := mnemonic[len(prefix):]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 1
	}
	n, err := strconv.Atoi(rest[:i])
	if err != nil || n <= 0 {
		return 1
	}
	return uint32(n)
}

// renameAndEnqueue renames r across every regfile and, if every regfile
// had enough free physical registers, enqueues it to dispatch. It returns
// false (leaving r fully unrenamed) if any regfile stalled.
func (c *Core) renameAndEnqueue(r *insts.InstRecord) bool {
	if err := c.renames[insts.RegInt].Rename(r); err != nil {
		return false
	}
	if err := c.renames[insts.RegFloat].Rename(r); err != nil {
		c.renames[insts.RegInt].Undo(r)
		return false
	}
	if err := c.renames[insts.RegVector].Rename(r); err != nil {
		c.renames[insts.RegInt].Undo(r)
		c.renames[insts.RegFloat].Undo(r)
		return false
	}

	r.Status = insts.StatusRenamed
	c.dispatch.Enqueue(r)
	return true
}

// Run ticks the core until it halts, returning the number of cycles
// simulated.
func (c *Core) Run() uint64 {
	for !c.halted {
		c.Tick()
	}
	return c.stats.Cycles
}

// RunCycles ticks the core up to n times or until it halts, whichever
// comes first. It returns true if the core is still running.
func (c *Core) RunCycles(n uint64) bool {
	for i := uint64(0); i < n && !c.halted; i++ {
		c.Tick()
	}
	return !c.halted
}
