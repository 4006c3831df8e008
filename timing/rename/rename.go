// Package rename implements the register-alias table, freelist, and
// refcount bookkeeping that maps architectural registers to physical
// registers, one instance per register file.
package rename

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

// ErrRenameStall is returned when a required freelist is empty; the
// caller must hold the instruction and not consume a dispatch credit.
var ErrRenameStall = errors.New("rename: freelist exhausted")

// zeroArchReg is the INT architectural register that is always ready and
// never renamed.
const zeroArchReg = 0

// State is the per-regfile rename bookkeeping.
type State struct {
	regFile     insts.RegFile
	scoreboard  *scoreboard.View
	rat         []uint32
	freelist    []uint32
	refcount    []uint32
	prevDestOf  []uint32
	hasZeroSkip bool // true for the INT regfile
}

// New builds a State for regFile with numArch architectural registers and
// numPhys physical registers. sb is the scoreboard view this rename unit
// clears on dest allocation. The first numArch physical registers start
// mapped 1:1 by the RAT; the rest start on the freelist.
func New(regFile insts.RegFile, numArch, numPhys int, sb *scoreboard.View) *State {
	s := &State{
		regFile:     regFile,
		scoreboard:  sb,
		rat:         make([]uint32, numArch),
		refcount:    make([]uint32, numPhys),
		prevDestOf:  make([]uint32, numPhys),
		hasZeroSkip: regFile == insts.RegInt,
	}
	for a := 0; a < numArch; a++ {
		s.rat[a] = uint32(a)
	}
	for p := numArch; p < numPhys; p++ {
		s.freelist = append(s.freelist, uint32(p))
	}
	return s
}

// RAT returns the current architectural-to-physical mapping for archReg.
func (s *State) RAT(archReg uint8) uint32 {
	return s.rat[archReg]
}

// FreelistLen returns the number of free physical registers.
func (s *State) FreelistLen() int { return len(s.freelist) }

// skipsRename reports whether archReg in this regfile is never renamed.
func (s *State) skipsRename(archReg uint8) bool {
	return s.hasZeroSkip && archReg == zeroArchReg
}

// Rename renames every source and dest operand of r that belongs to
// regFile, in place. It returns ErrRenameStall, leaving r untouched,
// if there are not enough free physical registers for all of r's dests
// in this regfile.
func (s *State) Rename(r *insts.InstRecord) error {
	need := 0
	for _, d := range r.DestOps {
		if d.Reg == s.regFile && d.Type == insts.OperandReg && !s.skipsRename(d.RegNum) {
			need++
		}
	}
	if need > len(s.freelist) {
		return fmt.Errorf("%w: need %d, have %d free", ErrRenameStall, need, len(s.freelist))
	}

	for i, src := range r.SourceOps {
		if src.Reg != s.regFile || src.Type != insts.OperandReg {
			continue
		}
		if s.skipsRename(src.RegNum) {
			continue
		}
		phys := s.rat[src.RegNum]
		r.SourceOps[i].PhysReg = phys
		s.refcount[phys]++
		r.SourceBitmask[s.regFile].Add(phys)
	}

	for i, dst := range r.DestOps {
		if dst.Reg != s.regFile || dst.Type != insts.OperandReg {
			continue
		}
		if s.skipsRename(dst.RegNum) {
			continue
		}
		newPhys := s.pop()
		prev := s.rat[dst.RegNum]
		s.rat[dst.RegNum] = newPhys
		s.prevDestOf[newPhys] = prev
		s.scoreboard.Clear(newPhys)
		r.DestOps[i].PhysReg = newPhys
		r.DestBitmask[s.regFile].Add(newPhys)
	}

	return nil
}

func (s *State) pop() uint32 {
	n := len(s.freelist)
	p := s.freelist[n-1]
	s.freelist = s.freelist[:n-1]
	return p
}

func (s *State) push(p uint32) {
	s.freelist = append(s.freelist, p)
}

// Retire acks the retirement of r: decrements refcount for every source
// physreg of r in this regfile and, once a refcount hits zero and that
// physreg is no longer the live RAT entry for any architectural register,
// returns it to the freelist. It also frees the prior mapping
// r's dest physregs displaced, since that prior value can never be read
// again once r retires.
func (s *State) Retire(r *insts.InstRecord) {
	r.SourceBitmask[s.regFile].Each(func(p uint32) {
		if s.refcount[p] == 0 {
			return
		}
		s.refcount[p]--
		if s.refcount[p] == 0 && !s.isLiveRAT(p) {
			s.push(p)
		}
	})

	r.DestBitmask[s.regFile].Each(func(newPhys uint32) {
		prev := s.prevDestOf[newPhys]
		if s.refcount[prev] == 0 && !s.isLiveRAT(prev) {
			s.push(prev)
		}
	})
}

func (s *State) isLiveRAT(phys uint32) bool {
	for _, mapped := range s.rat {
		if mapped == phys {
			return true
		}
	}
	return false
}

// Undo reverses the rename of r, as part of a flush rollback: for each
// dest this state renamed, restores rat[archDest] = prevDestOf[newPhys]
// and returns newPhys to the freelist; for each source, decrements the
// refcount it incremented.
func (s *State) Undo(r *insts.InstRecord) {
	for _, dst := range r.DestOps {
		if dst.Reg != s.regFile || dst.Type != insts.OperandReg || s.skipsRename(dst.RegNum) {
			continue
		}
		newPhys := dst.PhysReg
		prev := s.prevDestOf[newPhys]
		s.rat[dst.RegNum] = prev
		s.push(newPhys)
	}

	for _, src := range r.SourceOps {
		if src.Reg != s.regFile || src.Type != insts.OperandReg || s.skipsRename(src.RegNum) {
			continue
		}
		p := src.PhysReg
		if s.refcount[p] > 0 {
			s.refcount[p]--
		}
	}
}
