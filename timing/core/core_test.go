package core_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/config"
	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/core"
)

func TestCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Core Suite")
}

func reg(f insts.RegFile, n uint8) insts.Operand {
	return insts.Operand{Type: insts.OperandReg, Reg: f, RegNum: n}
}

var _ = Describe("Core", func() {
	It("retires a straight-line scalar program", func() {
		program := []*insts.InstRecord{
			{Mnemonic: "addi", SourceOps: []insts.Operand{reg(insts.RegInt, 0)}, DestOps: []insts.Operand{reg(insts.RegInt, 1)}, HasImm: true, Immediate: 1},
			{Mnemonic: "addi", SourceOps: []insts.Operand{reg(insts.RegInt, 0)}, DestOps: []insts.Operand{reg(insts.RegInt, 2)}, HasImm: true, Immediate: 2},
			{Mnemonic: "add", SourceOps: []insts.Operand{reg(insts.RegInt, 1), reg(insts.RegInt, 2)}, DestOps: []insts.Operand{reg(insts.RegInt, 3)}},
		}
		for _, r := range program {
			insts.Fill(r)
		}

		topo := config.Default()
		c := core.NewCore(topo, program)

		for i := 0; i < 200 && !c.Halted(); i++ {
			c.Tick()
		}

		Expect(c.Halted()).To(BeTrue())
		Expect(c.Stats().Retired).To(Equal(uint64(len(program))))
	})

	It("stalls decode on a blocking vset until it resolves", func() {
		program := []*insts.InstRecord{
			{Mnemonic: "vsetvli", SourceOps: []insts.Operand{reg(insts.RegInt, 4)}, DestOps: []insts.Operand{reg(insts.RegInt, 1)}},
			{
				Mnemonic: "vadd.vv",
				SourceOps: []insts.Operand{reg(insts.RegVector, 4), reg(insts.RegVector, 8)},
				DestOps:   []insts.Operand{reg(insts.RegVector, 12)},
			},
		}
		for _, r := range program {
			insts.Fill(r)
		}

		topo := config.Default()
		c := core.NewCore(topo, program)

		for i := 0; i < 300 && !c.Halted(); i++ {
			c.Tick()
		}

		Expect(c.Halted()).To(BeTrue())
		Expect(c.Stats().Retired).To(BeNumerically(">=", uint64(1)))
	})

	It("resolves vsetivli and a vsetvli with an x0 rs1 without blocking fetch", func() {
		program := []*insts.InstRecord{
			{Mnemonic: "vsetivli", DestOps: []insts.Operand{reg(insts.RegInt, 1)}, HasImm: true, Immediate: 4},
			{Mnemonic: "vsetvli", SourceOps: []insts.Operand{reg(insts.RegInt, 0)}, DestOps: []insts.Operand{reg(insts.RegInt, 2)}},
			{
				Mnemonic:  "vadd.vv",
				SourceOps: []insts.Operand{reg(insts.RegVector, 4), reg(insts.RegVector, 8)},
				DestOps:   []insts.Operand{reg(insts.RegVector, 12)},
			},
		}
		for _, r := range program {
			insts.Fill(r)
		}

		c := core.NewCore(config.Default(), program)

		// Neither vset variant blocks fetch, so all three decode in the
		// very first cycle that has room.
		c.Tick()
		Expect(c.Stats().DecodeStalls).To(Equal(uint64(0)))

		for i := 0; i < 300 && !c.Halted(); i++ {
			c.Tick()
		}
		Expect(c.Halted()).To(BeTrue())
	})

	It("predicts and resolves a branch without stalling retirement", func() {
		program := []*insts.InstRecord{
			{Mnemonic: "beq", SourceOps: []insts.Operand{reg(insts.RegInt, 1), reg(insts.RegInt, 2)}, TargetVAddr: 0x100},
			{Mnemonic: "addi", SourceOps: []insts.Operand{reg(insts.RegInt, 0)}, DestOps: []insts.Operand{reg(insts.RegInt, 3)}, HasImm: true, Immediate: 1},
		}
		for _, r := range program {
			insts.Fill(r)
		}

		c := core.NewCore(config.Default(), program)
		for i := 0; i < 200 && !c.Halted(); i++ {
			c.Tick()
		}

		Expect(c.Halted()).To(BeTrue())
		Expect(c.Stats().Retired).To(BeNumerically(">=", uint64(1)))
	})

	It("runs to completion via Run", func() {
		program := []*insts.InstRecord{
			{Mnemonic: "addi", SourceOps: []insts.Operand{reg(insts.RegInt, 0)}, DestOps: []insts.Operand{reg(insts.RegInt, 5)}, HasImm: true, Immediate: 7},
		}
		for _, r := range program {
			insts.Fill(r)
		}

		c := core.NewCore(config.Default(), program)
		cycles := c.Run()

		Expect(c.Halted()).To(BeTrue())
		Expect(cycles).To(BeNumerically(">", uint64(0)))
	})
})
