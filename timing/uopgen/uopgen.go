// Package uopgen fractures a vector instruction into the sequence of uops
// that touch one VLEN-sized register group each.
package uopgen

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvooo/insts"
)

// ErrInvalidUopGen is returned when the parent's UopGenType is
// insts.UopGenUnknown.
var ErrInvalidUopGen = errors.New("uopgen: invalid uop generation type")

// MaxUops bounds the number of uops a single session may produce.
const MaxUops = 64

// TooManyUopsError reports that the computed uop count exceeds MaxUops.
type TooManyUopsError struct {
	Count int
}

func (e *TooManyUopsError) Error() string {
	return fmt.Sprintf("uopgen: computed %d uops, exceeds ceiling %d", e.Count, MaxUops)
}

// Allocator creates fresh InstRecord uops; satisfied by *insts.Pool.
type Allocator interface {
	Alloc() *insts.InstRecord
}

// Generator runs one vector-instruction-to-uops session at a time.
type Generator struct {
	alloc Allocator

	parent   *insts.InstRecord
	total    int
	index    int
	extFctr  uint32
	segCount uint32 // NF for segmented loads
}

// New returns a Generator that allocates uops from alloc.
func New(alloc Allocator) *Generator {
	return &Generator{alloc: alloc}
}

// Active reports whether a generation session is in progress.
func (g *Generator) Active() bool {
	return g.parent != nil
}

// SetInst begins a new session for v. extFactor is used only for
// UopGenIntExt (2, 4, or 8); segCount is used only for
// UopGenSegmentedLoad (the NF field). It is an error to call SetInst
// while a session is already active.
func (g *Generator) SetInst(v *insts.InstRecord, extFactor, segCount uint32) error {
	if g.parent != nil {
		return fmt.Errorf("uopgen: session already active for unique_id %d", g.parent.UniqueID)
	}
	if v.UopGenType == insts.UopGenUnknown {
		return ErrInvalidUopGen
	}

	n, err := uopCount(v, extFactor, segCount)
	if err != nil {
		return err
	}

	g.parent = v
	g.total = n
	g.index = 0
	g.extFctr = extFactor
	g.segCount = segCount
	return nil
}

// KeepGoing reports whether the session has more uops to produce.
func (g *Generator) KeepGoing() bool {
	return g.parent != nil && g.index < g.total
}

// GenerateUop produces the next uop in the session. Callers must check
// KeepGoing first; calling past the end of the session returns nil.
func (g *Generator) GenerateUop() *insts.InstRecord {
	if !g.KeepGoing() {
		return nil
	}
	k := g.index
	g.index++

	u := g.alloc.Alloc()
	u.ProgramID = g.parent.ProgramID
	u.PC = g.parent.PC
	u.Mnemonic = g.parent.Mnemonic
	u.PipeTarget = g.parent.PipeTarget
	u.ExecuteLatency = g.parent.ExecuteLatency
	u.UopGenType = g.parent.UopGenType
	cfg := *g.parent.VectorConfig
	u.VectorConfig = &cfg
	u.UopParent = g.parent
	u.UopID = k

	u.SourceOps = progressOperands(g.parent.SourceOps, k, g.parent.UopGenType, g.extFctr, true, g.total)
	u.DestOps = progressOperands(g.parent.DestOps, k, g.parent.UopGenType, g.extFctr, false, g.total)

	if isMACLike(g.parent.UopGenType) {
		for _, d := range g.parent.DestOps {
			implicit := d
			implicit.RegNum += uint8(k)
			u.SourceOps = append(u.SourceOps, implicit)
		}
	}

	elemsPerUop := elemsPerReg(g.parent.VectorConfig.SEW)
	u.Tail = uint32(elemsPerUop)*uint32(k+1) > g.parent.VectorConfig.VL

	if !g.KeepGoing() {
		g.parent = nil
	}
	return u
}

// Reset aborts the current session, e.g. on a flush matching the parent.
func (g *Generator) Reset() {
	g.parent = nil
	g.total = 0
	g.index = 0
}

func elemsPerReg(sew uint32) uint32 {
	if sew == 0 {
		return 1
	}
	return insts.VLEN / sew
}

func ceilDiv(a, b uint32) int {
	if b == 0 {
		return 0
	}
	return int((uint64(a) + uint64(b) - 1) / uint64(b))
}

func isWideLike(t insts.UopGenType) bool {
	switch t {
	case insts.UopGenWidening, insts.UopGenWideningMixed, insts.UopGenMACWide, insts.UopGenReductionWide:
		return true
	}
	return false
}

func isMACLike(t insts.UopGenType) bool {
	switch t {
	case insts.UopGenMAC, insts.UopGenMACWide, insts.UopGenReduction, insts.UopGenReductionWide:
		return true
	}
	return false
}

func uopCount(v *insts.InstRecord, extFactor, segCount uint32) (int, error) {
	switch v.UopGenType {
	case insts.UopGenWholeRegister:
		n := int(v.VectorConfig.LMulWhole())
		if n == 0 {
			n = 1
		}
		return boundedCount(n)
	case insts.UopGenSegmentedLoad:
		n := int(segCount)
		if n == 0 {
			n = 1
		}
		return boundedCount(n)
	}

	elemsPerReg := elemsPerReg(v.VectorConfig.SEW)
	n := ceilDiv(v.VectorConfig.VL, elemsPerReg)

	if isWideLike(v.UopGenType) {
		if v.VectorConfig.LMulWhole() > 4 {
			return 0, fmt.Errorf("uopgen: widening requires lmul<=4, got %d", v.VectorConfig.LMulWhole())
		}
		n *= 2
	}

	return boundedCount(n)
}

func boundedCount(n int) (int, error) {
	if n > MaxUops {
		return 0, &TooManyUopsError{Count: n}
	}
	if n <= 0 {
		n = 1
	}
	return n, nil
}

// progressOperands applies the register-number progression rule for
// uopType to a parent operand list at uop index k.
func progressOperands(parent []insts.Operand, k int, uopType insts.UopGenType, extFactor uint32, isSource bool, total int) []insts.Operand {
	out := make([]insts.Operand, len(parent))
	copy(out, parent)

	for i := range out {
		if out[i].Reg != insts.RegVector {
			continue
		}
		switch uopType {
		case insts.UopGenElementwise, insts.UopGenMAC, insts.UopGenReduction:
			out[i].RegNum += uint8(k)
		case insts.UopGenSingleDest:
			if isSource {
				out[i].RegNum += uint8(k)
			}
		case insts.UopGenSingleSrc:
			if !isSource {
				out[i].RegNum += uint8(k)
			}
		case insts.UopGenWidening, insts.UopGenMACWide:
			if isSource {
				out[i].RegNum += uint8(k / 2)
			} else {
				out[i].RegNum += uint8(k)
			}
		case insts.UopGenWideningMixed, insts.UopGenReductionWide:
			if isSource {
				if i == 0 {
					out[i].RegNum += uint8(k)
				} else {
					out[i].RegNum += uint8(k / 2)
				}
			} else {
				out[i].RegNum += uint8(k)
			}
		case insts.UopGenNarrowing:
			if isSource {
				if i == 0 {
					out[i].RegNum += uint8(k)
				}
				// RS2 consumed in pairs is handled by appending RS3 below.
			} else {
				out[i].RegNum += uint8(k)
			}
		case insts.UopGenIntExt:
			if isSource {
				factor := extFactor
				if factor == 0 {
					factor = 2
				}
				out[i].RegNum += uint8(uint32(k) / factor)
			}
		case insts.UopGenSlide1Up, insts.UopGenSlide1Down:
			if !isSource || i > 0 {
				out[i].RegNum += uint8(k)
			}
		}
	}

	if uopType == insts.UopGenNarrowing && isSource && len(parent) >= 2 {
		rs2 := parent[1]
		rs2.RegNum += uint8(k * 2)
		rs2b := parent[1]
		rs2b.RegNum += uint8(k*2 + 1)
		out = append(out, rs2b)
		out[1] = rs2
	}

	if uopType == insts.UopGenSlide1Up && isSource && len(parent) > 0 {
		if k > 0 {
			rs3 := parent[0]
			rs3.RegNum += uint8(k - 1)
			out = append(out, rs3)
		}
	}
	if uopType == insts.UopGenSlide1Down && isSource && len(parent) > 0 {
		if k < total-1 {
			rs3 := parent[0]
			rs3.RegNum += uint8(k + 1)
			out = append(out, rs3)
		}
	}

	return out
}
