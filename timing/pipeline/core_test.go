package pipeline_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/timing/barrier"
	"github.com/sarchlab/riscvmc/timing/hierarchy"
	"github.com/sarchlab/riscvmc/timing/latency"
	"github.com/sarchlab/riscvmc/timing/pipeline"
)

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

func newCore(instructions []string, labels map[string]int, lt *latency.Table) *pipeline.PipelinedCore {
	h := hierarchy.New(1, config.Default())
	b := barrier.New(1, h)
	if labels == nil {
		labels = map[string]int{}
	}
	return pipeline.New(0, instructions, labels, map[string]uint64{}, h, b, lt)
}

func runToHalt(core *pipeline.PipelinedCore, maxCycles int) {
	Expect(core.Fetch()).To(Succeed())
	for i := 0; i < maxCycles; i++ {
		if core.Halted() && core.IsEmpty() {
			return
		}
		Expect(core.ClockCycle()).To(Succeed())
		Expect(core.Fetch()).To(Succeed())
	}
	Expect(core.Halted() && core.IsEmpty()).To(BeTrue(), "core did not reach halt within %d cycles", maxCycles)
}

// instRow finds the trace row for the instruction at the given fetch id.
func instRow(ids []int, rows [][]string, id int) []string {
	for i, v := range ids {
		if v == id {
			return rows[i]
		}
	}
	return nil
}

var _ = Describe("PipelinedCore", func() {
	Describe("hazard stall without forwarding", func() {
		It("stalls decode of the dependent add until the addi writes back", func() {
			core := newCore(
				[]string{"addi x1,x0,5", "add x2,x1,x1", "halt"},
				nil,
				latency.NewTable().WithForwarding(false),
			)
			runToHalt(core, 50)

			Expect(core.Registers().ReadReg(2)).To(Equal(int32(10)))

			ids, rows := core.Trace()
			addRow := instRow(ids, rows, 1)
			sawStallBeforeExecute := false
			for _, cell := range addRow {
				if cell == "S" {
					sawStallBeforeExecute = true
				}
				if cell == "E" {
					break
				}
			}
			Expect(sawStallBeforeExecute).To(BeTrue())
		})
	})

	Describe("forwarding removes the stall", func() {
		It("lets the dependent add proceed without a decode stall", func() {
			core := newCore(
				[]string{"addi x1,x0,5", "add x2,x1,x1", "halt"},
				nil,
				latency.NewTable(),
			)
			runToHalt(core, 50)

			Expect(core.Registers().ReadReg(2)).To(Equal(int32(10)))

			ids, rows := core.Trace()
			addRow := instRow(ids, rows, 1)
			sawStallBeforeExecute := false
			for _, cell := range addRow {
				if cell == "S" {
					sawStallBeforeExecute = true
				}
				if cell == "E" {
					break
				}
			}
			Expect(sawStallBeforeExecute).To(BeFalse())
		})
	})

	Describe("multi-cycle mul", func() {
		It("occupies execute for three consecutive cycles and produces the right result", func() {
			cfg := latency.DefaultTimingConfig()
			cfg.MulLatency = 3
			core := newCore(
				[]string{"addi x1,x0,3", "addi x2,x0,4", "mul x3,x1,x2", "halt"},
				nil,
				latency.NewTableWithConfig(cfg),
			)
			runToHalt(core, 50)

			Expect(core.Registers().ReadReg(3)).To(Equal(int32(12)))

			ids, rows := core.Trace()
			mulRow := instRow(ids, rows, 2)
			consecutiveE := 0
			best := 0
			for _, cell := range mulRow {
				if cell == "E" {
					consecutiveE++
					if consecutiveE > best {
						best = consecutiveE
					}
				} else {
					consecutiveE = 0
				}
			}
			Expect(best).To(BeNumerically(">=", 3))
		})
	})

	Describe("branch flush", func() {
		It("discards the fetched instruction on the not-taken path after a taken branch", func() {
			core := newCore(
				[]string{
					"addi x1,x0,1",
					"bne x1,x0,L",
					"addi x2,x0,99",
					"addi x2,x0,7",
					"halt",
				},
				map[string]int{"L": 3},
				latency.NewTable(),
			)
			runToHalt(core, 50)

			Expect(core.Registers().ReadReg(2)).To(Equal(int32(7)))

			ids, rows := core.Trace()
			flushedRow := instRow(ids, rows, 2)
			sawRetire := false
			for _, cell := range flushedRow {
				if cell == "M" || cell == "W" {
					sawRetire = true
				}
			}
			Expect(sawRetire).To(BeFalse())
		})
	})

	Describe("cache miss penalty", func() {
		It("charges the full miss penalty to the core's memory-stall count", func() {
			cfg := config.Default()
			cfg.L1DLatency = 1
			cfg.L2Latency = 10
			cfg.MemLatency = 100

			h := hierarchy.New(1, cfg)
			b := barrier.New(1, h)
			core := pipeline.New(0, []string{"lw x1,0(x0)", "halt"}, map[string]int{}, map[string]uint64{}, h, b, latency.NewTable())

			runToHalt(core, 250)

			l1d, err := h.Stats(hierarchy.CacheTypeL1D, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(l1d.Accesses).To(Equal(uint64(1)))
			Expect(l1d.Misses).To(Equal(uint64(1)))

			l2, err := h.Stats(hierarchy.CacheTypeL2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(l2.Misses).To(BeNumerically(">=", uint64(1)))

			Expect(core.Stats().MemoryStalls).To(BeNumerically(">=", uint64(109)))
		})
	})

	Describe("universally quantified invariants", func() {
		It("leaves x0 and x31 unchanged regardless of targeted writes", func() {
			core := newCore(
				[]string{"addi x0,x0,99", "addi x31,x0,99", "halt"},
				nil,
				latency.NewTable(),
			)
			runToHalt(core, 50)

			Expect(core.Registers().ReadReg(0)).To(Equal(int32(0)))
			Expect(core.Registers().ReadReg(31)).To(Equal(int32(0)))
		})

		It("never lets instructionCount exceed cycles", func() {
			core := newCore(
				[]string{"addi x1,x0,1", "addi x1,x1,1", "addi x1,x1,1", "halt"},
				nil,
				latency.NewTable(),
			)
			runToHalt(core, 50)

			stats := core.Stats()
			Expect(stats.Instructions).To(BeNumerically("<=", stats.Cycles))
			Expect(stats.IPC()).To(BeNumerically(">=", 0.0))
			Expect(stats.IPC()).To(BeNumerically("<=", 1.0))
		})
	})
})
