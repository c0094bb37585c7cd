package report_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/report"
	"github.com/sarchlab/riscvmc/timing/hierarchy"
	"github.com/sarchlab/riscvmc/timing/pipeline"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

var _ = Describe("Write", func() {
	It("formats per-core stats, global totals, cache stats, and the active config", func() {
		cfg := config.Default()
		h := hierarchy.New(2, cfg)

		_, _, err := h.LoadWord(0, 0x10)
		Expect(err).NotTo(HaveOccurred())

		stats := []pipeline.Statistics{
			{Cycles: 10, Instructions: 8, Stalls: 1, MemoryStalls: 2},
			{Cycles: 10, Instructions: 6, Stalls: 0, MemoryStalls: 0},
		}

		var buf bytes.Buffer
		Expect(report.Write(&buf, stats, h, cfg)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("core 0: instructions=8 cycles=10 stalls=1 memory-stalls=2 ipc=0.8000"))
		Expect(out).To(ContainSubstring("core 1: instructions=6 cycles=10 stalls=0 memory-stalls=0 ipc=0.6000"))
		Expect(out).To(ContainSubstring("instructions=14 cycles=10"))
		Expect(out).To(ContainSubstring("L1I[0]:"))
		Expect(out).To(ContainSubstring("L1D[0]: accesses=1"))
		Expect(out).To(ContainSubstring("L2:"))
		Expect(out).To(ContainSubstring("Active configuration:"))
	})

	It("reports zero overall IPC when no cycles ran", func() {
		cfg := config.Default()
		h := hierarchy.New(1, cfg)

		var buf bytes.Buffer
		Expect(report.Write(&buf, []pipeline.Statistics{{}}, h, cfg)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("overall-ipc=0.0000"))
	})
})
