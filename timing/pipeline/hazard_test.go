package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/riscvmc/isa"
	"github.com/sarchlab/riscvmc/regfile"
	"github.com/sarchlab/riscvmc/timing/pipeline"
)

var _ = Describe("HazardUnit", func() {
	var (
		hazardUnit *pipeline.HazardUnit
		regs       *regfile.RegisterFile
	)

	BeforeEach(func() {
		hazardUnit = pipeline.NewHazardUnit()
		regs = regfile.New(0)
		regs.WriteReg(5, 111)
	})

	producer := func(rd int, value int32) *isa.Instruction {
		return &isa.Instruction{Rd: rd, HasResult: true, ResultValue: value}
	}

	Describe("ResolveOperand", func() {
		It("returns 0 for NoReg without touching the register file", func() {
			v := hazardUnit.ResolveOperand(isa.NoReg, true, nil, nil, nil, regs)
			Expect(v).To(Equal(int32(0)))
		})

		It("reads register 0 straight from the register file regardless of forwarding", func() {
			wb := []*isa.Instruction{producer(0, 999)}
			v := hazardUnit.ResolveOperand(0, true, wb, nil, nil, regs)
			Expect(v).To(Equal(int32(0)))
		})

		It("reads register 31 straight from the register file regardless of forwarding", func() {
			wb := []*isa.Instruction{producer(31, 999)}
			v := hazardUnit.ResolveOperand(31, true, wb, nil, nil, regs)
			Expect(v).To(Equal(int32(0)))
		})

		It("falls back to the register file when forwarding is disabled", func() {
			wb := []*isa.Instruction{producer(5, 999)}
			v := hazardUnit.ResolveOperand(5, false, wb, nil, nil, regs)
			Expect(v).To(Equal(int32(111)))
		})

		It("falls back to the register file when no queue carries a result", func() {
			v := hazardUnit.ResolveOperand(5, true, nil, nil, nil, regs)
			Expect(v).To(Equal(int32(111)))
		})

		It("prefers a writeback-queue result over the register file", func() {
			wb := []*isa.Instruction{producer(5, 42)}
			v := hazardUnit.ResolveOperand(5, true, wb, nil, nil, regs)
			Expect(v).To(Equal(int32(42)))
		})

		It("prefers writeback over memory when both carry the register", func() {
			wb := []*isa.Instruction{producer(5, 1)}
			mem := []*isa.Instruction{producer(5, 2)}
			v := hazardUnit.ResolveOperand(5, true, wb, mem, nil, regs)
			Expect(v).To(Equal(int32(1)))
		})

		It("prefers memory over execute when writeback has nothing", func() {
			mem := []*isa.Instruction{producer(5, 2)}
			ex := []*isa.Instruction{producer(5, 3)}
			v := hazardUnit.ResolveOperand(5, true, nil, mem, ex, regs)
			Expect(v).To(Equal(int32(2)))
		})

		It("falls through to execute when writeback and memory have nothing", func() {
			ex := []*isa.Instruction{producer(5, 3)}
			v := hazardUnit.ResolveOperand(5, true, nil, nil, ex, regs)
			Expect(v).To(Equal(int32(3)))
		})

		It("ignores a queue entry without a result for the same register", func() {
			ex := []*isa.Instruction{{Rd: 5, HasResult: false}}
			v := hazardUnit.ResolveOperand(5, true, nil, nil, ex, regs)
			Expect(v).To(Equal(int32(111)))
		})

		It("ignores a queue entry whose result is for a different register", func() {
			ex := []*isa.Instruction{producer(6, 999)}
			v := hazardUnit.ResolveOperand(5, true, nil, nil, ex, regs)
			Expect(v).To(Equal(int32(111)))
		})
	})

	Describe("OperandsReady", func() {
		It("is ready when neither source register is pending or blocked", func() {
			inst := &isa.Instruction{Rs1: 1, Rs2: 2}
			ready := hazardUnit.OperandsReady(inst, 10, map[int]int32{}, map[int]uint64{})
			Expect(ready).To(BeTrue())
		})

		It("ignores NoReg and register 0 source operands", func() {
			inst := &isa.Instruction{Rs1: isa.NoReg, Rs2: 0}
			pending := map[int]int32{0: 1}
			ready := hazardUnit.OperandsReady(inst, 10, pending, map[int]uint64{})
			Expect(ready).To(BeTrue())
		})

		It("is not ready when a source register has a pending write", func() {
			inst := &isa.Instruction{Rs1: 3, Rs2: isa.NoReg}
			pending := map[int]int32{3: 7}
			ready := hazardUnit.OperandsReady(inst, 10, pending, map[int]uint64{})
			Expect(ready).To(BeFalse())
		})

		It("is not ready when a source register is not yet available this cycle", func() {
			inst := &isa.Instruction{Rs1: 3, Rs2: isa.NoReg}
			avail := map[int]uint64{3: 12}
			ready := hazardUnit.OperandsReady(inst, 10, map[int]int32{}, avail)
			Expect(ready).To(BeFalse())
		})

		It("is ready once the current cycle reaches the register's available cycle", func() {
			inst := &isa.Instruction{Rs1: 3, Rs2: isa.NoReg}
			avail := map[int]uint64{3: 12}
			ready := hazardUnit.OperandsReady(inst, 12, map[int]int32{}, avail)
			Expect(ready).To(BeTrue())
		})
	})
})
