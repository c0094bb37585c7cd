// Package report formats end-of-run simulator statistics: per-core
// instruction/cycle/stall counts and IPC, global totals, cache
// statistics, and the active cache configuration.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/timing/hierarchy"
	"github.com/sarchlab/riscvmc/timing/pipeline"
)

// Write formats a complete end-of-run report to w: one section per core
// (instructions, cycles, stalls, memory-stalls, IPC), a global totals
// section, per-level cache statistics, and an echo of the active cache
// configuration.
func Write(w io.Writer, coreStats []pipeline.Statistics, h *hierarchy.CacheHierarchy, cfg config.CacheConfig) error {
	var totalInstructions, totalCycles, totalStalls, totalMemoryStalls uint64

	fmt.Fprintf(w, "Per-core statistics:\n")
	for id, s := range coreStats {
		fmt.Fprintf(w, "  core %d: instructions=%d cycles=%d stalls=%d memory-stalls=%d ipc=%.4f\n",
			id, s.Instructions, s.Cycles, s.Stalls, s.MemoryStalls, s.IPC())
		totalInstructions += s.Instructions
		if s.Cycles > totalCycles {
			totalCycles = s.Cycles
		}
		totalStalls += s.Stalls
		totalMemoryStalls += s.MemoryStalls
	}

	overallIPC := 0.0
	if totalCycles > 0 {
		overallIPC = float64(totalInstructions) / float64(totalCycles)
	}
	fmt.Fprintf(w, "\nGlobal totals:\n")
	fmt.Fprintf(w, "  instructions=%d cycles=%d stalls=%d memory-stalls=%d overall-ipc=%.4f\n",
		totalInstructions, totalCycles, totalStalls, totalMemoryStalls, overallIPC)

	fmt.Fprintf(w, "\nCache statistics:\n")
	for id := range coreStats {
		if err := writeCacheLine(w, h, hierarchy.CacheTypeL1I, fmt.Sprintf("L1I[%d]", id), id); err != nil {
			return err
		}
		if err := writeCacheLine(w, h, hierarchy.CacheTypeL1D, fmt.Sprintf("L1D[%d]", id), id); err != nil {
			return err
		}
	}
	if err := writeCacheLine(w, h, hierarchy.CacheTypeL2, "L2", 0); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nActive configuration:\n")
	fmt.Fprintf(w, "  L1I: size=%d block=%d assoc=%d latency=%d policy=%v\n",
		cfg.L1ISize, cfg.L1IBlockSize, cfg.L1IAssoc, cfg.L1ILatency, cfg.L1IPolicy)
	fmt.Fprintf(w, "  L1D: size=%d block=%d assoc=%d latency=%d policy=%v\n",
		cfg.L1DSize, cfg.L1DBlockSize, cfg.L1DAssoc, cfg.L1DLatency, cfg.L1DPolicy)
	fmt.Fprintf(w, "  L2: size=%d block=%d assoc=%d latency=%d policy=%v\n",
		cfg.L2Size, cfg.L2BlockSize, cfg.L2Assoc, cfg.L2Latency, cfg.L2Policy)
	fmt.Fprintf(w, "  MEM: latency=%d\n", cfg.MemLatency)
	fmt.Fprintf(w, "  SPM: size=%d latency=%d\n", cfg.SPMSize, cfg.SPMLatency)

	return nil
}

func writeCacheLine(w io.Writer, h *hierarchy.CacheHierarchy, cacheType hierarchy.CacheType, label string, coreID int) error {
	stats, err := h.Stats(cacheType, coreID)
	if err != nil {
		return fmt.Errorf("report: %s stats: %w", label, err)
	}
	fmt.Fprintf(w, "  %s: accesses=%d hits=%d misses=%d evictions=%d writebacks=%d\n",
		label, stats.Accesses, stats.Hits, stats.Misses, stats.Evictions, stats.Writebacks)
	return nil
}
