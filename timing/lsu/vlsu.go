package lsu

import (
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

// MemAccessMode distinguishes how a vector memory instruction addresses
// its elements.
type MemAccessMode int

const (
	UnitStride MemAccessMode = iota
	Strided
	Indexed
)

// VectorMemConfig is the per-uop vector memory access descriptor.
type VectorMemConfig struct {
	EEW           uint32
	Stride        int64
	Mode          MemAccessMode
	VL            uint32
	DCacheLineBits uint32
}

// TotalRequests returns the number of child memory accesses this config
// fractures into: ceil((vl*eew)/dcache_line_width) for unit-stride, one
// request per element for strided/indexed modes.
func (c VectorMemConfig) TotalRequests() int {
	if c.Mode != UnitStride {
		n := int(c.VL)
		if n == 0 {
			n = 1
		}
		return n
	}
	lineBits := c.DCacheLineBits
	if lineBits == 0 {
		lineBits = 512
	}
	totalBits := uint64(c.VL) * uint64(c.EEW)
	n := int((totalBits + uint64(lineBits) - 1) / uint64(lineBits))
	if n == 0 {
		n = 1
	}
	return n
}

// vecEntry is one in-flight vector memory uop.
type vecEntry struct {
	inst      *insts.InstRecord
	cfg       VectorMemConfig
	total     int
	completed int
	nextAddr  uint64
}

// VLSU is the vector load/store unit. It speaks the same MemResponder
// protocol as LSU, fracturing a uop's element range into total_mem_reqs
// child accesses and completing the uop once every child access
// resolves.
type VLSU struct {
	mem         MemResponder
	scoreboards []*scoreboard.View

	inFlight []*vecEntry
}

// NewVLSU returns a VLSU backed by mem.
func NewVLSU(mem MemResponder, sbs []*scoreboard.View) *VLSU {
	return &VLSU{mem: mem, scoreboards: sbs}
}

// Accept admits a vector memory uop, beginning its element-request
// fracturing at baseAddr.
func (v *VLSU) Accept(inst *insts.InstRecord, cfg VectorMemConfig, baseAddr uint64) {
	v.inFlight = append(v.inFlight, &vecEntry{
		inst:     inst,
		cfg:      cfg,
		total:    cfg.TotalRequests(),
		nextAddr: baseAddr,
	})
}

// Tick issues one child access per in-flight entry per cycle (one at a
// time, matching the spec's "emitted one-by-one"), completing an entry's
// uop once completed==total.
func (v *VLSU) Tick() {
	remaining := v.inFlight[:0]
	for _, e := range v.inFlight {
		if e.completed >= e.total {
			v.completeEntry(e)
			continue
		}
		size := int(e.cfg.EEW / 8)
		if size == 0 {
			size = 1
		}
		if v.mem.TryRequest(e.nextAddr, size) {
			if hit, _, ready := v.mem.Poll(); ready && hit {
				e.completed++
				e.nextAddr += uint64(stride(e.cfg, size))
			}
		}
		if e.completed >= e.total {
			v.completeEntry(e)
			continue
		}
		remaining = append(remaining, e)
	}
	v.inFlight = remaining
}

func stride(cfg VectorMemConfig, elemSize int) int64 {
	if cfg.Mode == Strided {
		return cfg.Stride
	}
	return int64(elemSize)
}

func (v *VLSU) completeEntry(e *vecEntry) {
	for rf := 0; rf < insts.NumRegFiles(); rf++ {
		e.inst.DestBitmask[rf].Each(func(reg uint32) {
			v.scoreboards[rf].Set(reg)
		})
	}
	e.inst.Status = insts.StatusCompleted
}

// OnFlush implements flush.Listener.
func (v *VLSU) OnFlush(c flush.Criteria) {
	kept := v.inFlight[:0]
	for _, e := range v.inFlight {
		if !c.Affects(e.inst) {
			kept = append(kept, e)
		}
	}
	v.inFlight = kept
}

// InFlightLen returns the number of vector memory uops still fracturing.
func (v *VLSU) InFlightLen() int { return len(v.inFlight) }
