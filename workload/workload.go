// Package workload loads instruction streams that drive the simulator,
// dispatching by file extension: JSON for hand-written traces, ".stf" for
// binary simulation-trace-format captures.
package workload

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/rvooo/insts"
)

// ParseError carries the offending instruction (if decoded far enough to
// identify one) and the byte offset into the source file where parsing
// failed.
type ParseError struct {
	Path   string
	Offset int64
	Inst   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Inst != "" {
		return fmt.Sprintf("workload: %s: offset %d: inst %q: %v", e.Path, e.Offset, e.Inst, e.Err)
	}
	return fmt.Sprintf("workload: %s: offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// jsonInst mirrors the external JSON instruction shape: mnemonic plus
// optional operand fields per register file.
type jsonInst struct {
	Mnemonic string  `json:"mnemonic"`
	RS1      *uint32 `json:"rs1,omitempty"`
	RS2      *uint32 `json:"rs2,omitempty"`
	RD       *uint32 `json:"rd,omitempty"`
	FS1      *uint32 `json:"fs1,omitempty"`
	FS2      *uint32 `json:"fs2,omitempty"`
	FD       *uint32 `json:"fd,omitempty"`
	VS1      *uint32 `json:"vs1,omitempty"`
	VS2      *uint32 `json:"vs2,omitempty"`
	VD       *uint32 `json:"vd,omitempty"`
	Imm      *int64  `json:"imm,omitempty"`
	VAddr    *uint64 `json:"vaddr,omitempty"`
}

// Load reads a workload from path, dispatching on its extension.
func Load(path string) ([]*insts.InstRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stf":
		return LoadSTF(path)
	default:
		return LoadJSON(path)
	}
}

// LoadJSON reads a JSON array of instruction descriptions.
func LoadJSON(path string) ([]*insts.InstRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var raw []jsonInst
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	records := make([]*insts.InstRecord, 0, len(raw))
	for i, j := range raw {
		r, err := toRecord(j)
		if err != nil {
			return nil, &ParseError{Path: path, Offset: int64(i), Inst: j.Mnemonic, Err: err}
		}
		r.ProgramID = uint64(i)
		records = append(records, r)
	}
	return records, nil
}

func toRecord(j jsonInst) (*insts.InstRecord, error) {
	if j.Mnemonic == "" {
		return nil, fmt.Errorf("missing mnemonic")
	}

	r := &insts.InstRecord{Mnemonic: j.Mnemonic, PipeTarget: insts.PipeINT, ExecuteLatency: 1}
	insts.Fill(r)

	addSrc := func(f insts.RegFile, reg *uint32) {
		if reg == nil {
			return
		}
		r.SourceOps = append(r.SourceOps, insts.Operand{Type: insts.OperandReg, Reg: f, RegNum: uint8(*reg)})
	}
	addDst := func(f insts.RegFile, reg *uint32) {
		if reg == nil {
			return
		}
		r.DestOps = append(r.DestOps, insts.Operand{Type: insts.OperandReg, Reg: f, RegNum: uint8(*reg)})
	}

	addSrc(insts.RegInt, j.RS1)
	addSrc(insts.RegInt, j.RS2)
	addDst(insts.RegInt, j.RD)
	addSrc(insts.RegFloat, j.FS1)
	addSrc(insts.RegFloat, j.FS2)
	addDst(insts.RegFloat, j.FD)
	addSrc(insts.RegVector, j.VS1)
	addSrc(insts.RegVector, j.VS2)
	addDst(insts.RegVector, j.VD)

	if j.Imm != nil {
		r.HasImm = true
		r.Immediate = *j.Imm
	}
	if j.VAddr != nil {
		r.TargetVAddr = *j.VAddr
	}

	return r, nil
}

// stfHeaderMagic identifies a binary simulation-trace-format file: 4 bytes
// "STF1" followed by a uint32 record count, then fixed-width records.
var stfHeaderMagic = [4]byte{'S', 'T', 'F', '1'}

type stfRecord struct {
	Opcode  uint32
	PC      uint64
	VAddr   uint64
	HasMem  uint8
	_       [7]byte // padding to 8-byte alignment
}

// LoadSTF reads a binary simulation-trace-format file.
func LoadSTF(path string) ([]*insts.InstRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return nil, &ParseError{Path: path, Offset: 0, Err: fmt.Errorf("read magic: %w", err)}
	}
	if magic != stfHeaderMagic {
		return nil, &ParseError{Path: path, Offset: 0, Err: fmt.Errorf("bad STF magic %q", magic)}
	}

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, &ParseError{Path: path, Offset: 4, Err: fmt.Errorf("read count: %w", err)}
	}

	records := make([]*insts.InstRecord, 0, count)
	offset := int64(8)
	for i := uint32(0); i < count; i++ {
		var rec stfRecord
		if err := binary.Read(f, binary.LittleEndian, &rec); err != nil {
			return nil, &ParseError{Path: path, Offset: offset, Err: fmt.Errorf("read record %d: %w", i, err)}
		}
		r := &insts.InstRecord{
			Opcode:         rec.Opcode,
			PC:             rec.PC,
			ProgramID:      uint64(i),
			PipeTarget:     insts.PipeINT,
			ExecuteLatency: 1,
		}
		if rec.HasMem != 0 {
			r.TargetVAddr = rec.VAddr
		}
		records = append(records, r)
		offset += int64(binary.Size(rec))
	}
	return records, nil
}
