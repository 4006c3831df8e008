package insts

// ArchInfo is static per-mnemonic metadata: which pipe an instruction
// dispatches to, its nominal execute latency, and (for vector mnemonics)
// how its uops are generated. Workload loaders consult this table to fill
// in fields a trace or JSON stream left unspecified.
type ArchInfo struct {
	Mnemonic   string
	PipeTarget PipeTarget
	Latency    uint64
	UopGenType UopGenType
}

// archInfoTable is a representative RV64GCV mnemonic table. It is not
// exhaustive; workload.Load gives any mnemonic absent from it PipeINT,
// latency 1 and UopGenNone. Workload records carry no pipe, latency or
// uop-gen field of their own, so this table is their only source.
var archInfoTable = map[string]ArchInfo{
	"add": {"add", PipeINT, 1, UopGenNone},
	"sub": {"sub", PipeINT, 1, UopGenNone},
	"and": {"and", PipeINT, 1, UopGenNone},
	"or":  {"or", PipeINT, 1, UopGenNone},
	"xor": {"xor", PipeINT, 1, UopGenNone},
	"sll": {"sll", PipeINT, 1, UopGenNone},
	"srl": {"srl", PipeINT, 1, UopGenNone},
	"sra": {"sra", PipeINT, 1, UopGenNone},
	"slt": {"slt", PipeINT, 1, UopGenNone},

	"addi": {"addi", PipeINT, 1, UopGenNone},
	"andi": {"andi", PipeINT, 1, UopGenNone},
	"ori":  {"ori", PipeINT, 1, UopGenNone},
	"xori": {"xori", PipeINT, 1, UopGenNone},
	"slli": {"slli", PipeINT, 1, UopGenNone},
	"srli": {"srli", PipeINT, 1, UopGenNone},
	"srai": {"srai", PipeINT, 1, UopGenNone},

	"mul":   {"mul", PipeMUL, 3, UopGenNone},
	"mulh":  {"mulh", PipeMUL, 3, UopGenNone},
	"div":   {"div", PipeDIV, 10, UopGenNone},
	"divu":  {"divu", PipeDIV, 10, UopGenNone},
	"rem":   {"rem", PipeDIV, 10, UopGenNone},
	"remu":  {"remu", PipeDIV, 10, UopGenNone},

	"beq":  {"beq", PipeBR, 1, UopGenNone},
	"bne":  {"bne", PipeBR, 1, UopGenNone},
	"blt":  {"blt", PipeBR, 1, UopGenNone},
	"bge":  {"bge", PipeBR, 1, UopGenNone},
	"jal":  {"jal", PipeBR, 1, UopGenNone},
	"jalr": {"jalr", PipeBR, 1, UopGenNone},

	"lb": {"lb", PipeLSU, 4, UopGenNone},
	"lh": {"lh", PipeLSU, 4, UopGenNone},
	"lw": {"lw", PipeLSU, 4, UopGenNone},
	"ld": {"ld", PipeLSU, 4, UopGenNone},
	"sb": {"sb", PipeLSU, 1, UopGenNone},
	"sh": {"sh", PipeLSU, 1, UopGenNone},
	"sw": {"sw", PipeLSU, 1, UopGenNone},
	"sd": {"sd", PipeLSU, 1, UopGenNone},

	"fadd.s": {"fadd.s", PipeFADDSUB, 3, UopGenNone},
	"fsub.s": {"fsub.s", PipeFADDSUB, 3, UopGenNone},
	"fmul.s": {"fmul.s", PipeFMAC, 4, UopGenNone},
	"fmadd.s": {"fmadd.s", PipeFMAC, 5, UopGenNone},
	"fdiv.s": {"fdiv.s", PipeVFDIV, 12, UopGenNone},
	"fcvt.w.s": {"fcvt.w.s", PipeF2I, 3, UopGenNone},
	"fcvt.s.w": {"fcvt.s.w", PipeI2F, 3, UopGenNone},

	"ecall":  {"ecall", PipeSYS, 1, UopGenNone},
	"ebreak": {"ebreak", PipeSYS, 1, UopGenNone},

	"vsetvli":  {"vsetvli", PipeVSET, 1, UopGenNone},
	"vsetivli": {"vsetivli", PipeVSET, 1, UopGenNone},
	"vsetvl":   {"vsetvl", PipeVSET, 1, UopGenNone},

	"vadd.vv":  {"vadd.vv", PipeVINT, 1, UopGenElementwise},
	"vsub.vv":  {"vsub.vv", PipeVINT, 1, UopGenElementwise},
	"vand.vv":  {"vand.vv", PipeVINT, 1, UopGenElementwise},
	"vor.vv":   {"vor.vv", PipeVINT, 1, UopGenElementwise},
	"vmul.vv":  {"vmul.vv", PipeVMUL, 3, UopGenElementwise},
	"vmacc.vv": {"vmacc.vv", PipeVMUL, 4, UopGenMAC},

	"vwadd.vv":  {"vwadd.vv", PipeVINT, 1, UopGenWidening},
	"vwmul.vv":  {"vwmul.vv", PipeVMUL, 3, UopGenWidening},
	"vwadd.wv":  {"vwadd.wv", PipeVINT, 1, UopGenWideningMixed},
	"vwmacc.vv": {"vwmacc.vv", PipeVMUL, 4, UopGenMACWide},

	"vnarrow.wv": {"vnarrow.wv", PipeVINT, 1, UopGenNarrowing},

	"vredsum.vs": {"vredsum.vs", PipeVINT, 4, UopGenReduction},
	"vwredsum.vs": {"vwredsum.vs", PipeVINT, 4, UopGenReductionWide},

	"vzext.vf2": {"vzext.vf2", PipeVINT, 1, UopGenIntExt},
	"vsext.vf2": {"vsext.vf2", PipeVINT, 1, UopGenIntExt},

	"vslide1up.vx":   {"vslide1up.vx", PipeVINT, 1, UopGenSlide1Up},
	"vslide1down.vx": {"vslide1down.vx", PipeVINT, 1, UopGenSlide1Down},

	"vle8.v":  {"vle8.v", PipeVLOAD, 4, UopGenElementwise},
	"vle16.v": {"vle16.v", PipeVLOAD, 4, UopGenElementwise},
	"vle32.v": {"vle32.v", PipeVLOAD, 4, UopGenElementwise},
	"vle64.v": {"vle64.v", PipeVLOAD, 4, UopGenElementwise},
	"vse8.v":  {"vse8.v", PipeVSTORE, 1, UopGenElementwise},
	"vse16.v": {"vse16.v", PipeVSTORE, 1, UopGenElementwise},
	"vse32.v": {"vse32.v", PipeVSTORE, 1, UopGenElementwise},
	"vse64.v": {"vse64.v", PipeVSTORE, 1, UopGenElementwise},

	"vlseg2e32.v": {"vlseg2e32.v", PipeVLOAD, 4, UopGenSegmentedLoad},

	"vl1re8.v": {"vl1re8.v", PipeVLOAD, 4, UopGenWholeRegister},
	"vs1r.v":   {"vs1r.v", PipeVSTORE, 1, UopGenWholeRegister},

	"vmseq.vv": {"vmseq.vv", PipeVMASK, 1, UopGenElementwise},
	"vmand.mm": {"vmand.mm", PipeVMASK, 1, UopGenElementwise},
}

// Lookup returns the static ArchInfo for mnemonic and true if known.
func Lookup(mnemonic string) (ArchInfo, bool) {
	info, ok := archInfoTable[mnemonic]
	return info, ok
}

// Fill applies the table entry for r.Mnemonic to PipeTarget, ExecuteLatency
// and UopGenType. Callers that decoded an explicit pipe/latency/uop-gen
// from the workload source must apply those afterward, since Fill always
// overwrites from the table when the mnemonic is known. It is a no-op for
// unknown mnemonics, leaving the caller's defaults (PipeINT, latency 1,
// UopGenNone) in place.
func Fill(r *InstRecord) {
	info, ok := Lookup(r.Mnemonic)
	if !ok {
		return
	}
	r.PipeTarget = info.PipeTarget
	r.ExecuteLatency = info.Latency
	r.UopGenType = info.UopGenType
}
