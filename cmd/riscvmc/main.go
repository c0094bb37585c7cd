// Package main provides the riscvmc CLI: a cobra root command that loads
// an assembly program, runs it to completion, and prints the end-of-run
// report, optionally alongside a per-core CSV pipeline trace.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/loader"
	"github.com/sarchlab/riscvmc/report"
	"github.com/sarchlab/riscvmc/sim"
	"github.com/sarchlab/riscvmc/timing/latency"
	"github.com/sarchlab/riscvmc/timing/pipeline"
	"github.com/sarchlab/riscvmc/tracer"
)

var (
	numCores         int
	cacheConfigPath  string
	timingConfigPath string
	noForwarding     bool
	traceDir         string
)

var rootCmd = &cobra.Command{
	Use:   "riscvmc <program.asm>",
	Short: "riscvmc simulates a small multi-core RISC-V-like pipeline",
	Long: `riscvmc runs an assembly program through a cycle-accurate
simulator: a five-stage in-order pipeline per core, a shared L1I/L1D/L2
cache hierarchy, per-core scratchpad memory, and a cross-core SYNC
barrier. It prints an end-of-run statistics report and, if --trace is
given, writes a per-core CSV pipeline trace.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().IntVar(&numCores, "cores", 1, "number of cores to simulate")
	rootCmd.Flags().StringVar(&cacheConfigPath, "cache-config", "", "path to a cache geometry config file")
	rootCmd.Flags().StringVar(&timingConfigPath, "timing-config", "", "path to an arithmetic timing config file")
	rootCmd.Flags().BoolVar(&noForwarding, "no-forwarding", false, "disable operand forwarding")
	rootCmd.Flags().StringVar(&traceDir, "trace", "", "directory to write per-core pipeline_core<id>.csv traces into")
}

func run(cmd *cobra.Command, args []string) error {
	prog, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	cacheCfg := config.Default()
	if cacheConfigPath != "" {
		cacheCfg, err = config.Load(cacheConfigPath)
		if err != nil {
			return err
		}
	}

	timingCfg := latency.DefaultTimingConfig()
	if timingConfigPath != "" {
		timingCfg, err = latency.LoadConfig(timingConfigPath)
		if err != nil {
			return err
		}
	}
	lt := latency.NewTableWithConfig(timingCfg)
	if noForwarding {
		lt = lt.WithForwarding(false)
	}

	s, err := sim.New(numCores, prog, cacheCfg, lt)
	if err != nil {
		return err
	}

	if err := s.Run(); err != nil {
		return err
	}

	if traceDir != "" {
		t := tracer.New(traceDir)
		for _, core := range s.Cores() {
			ids, rows := core.Trace()
			if err := t.WriteCore(core.CoreID(), ids, rows); err != nil {
				return err
			}
		}
		t.Close()
		fmt.Printf("Pipeline traces written to %s\n", t.Dir())
	}

	return report.Write(os.Stdout, coreStats(s), s.Hierarchy(), cacheCfg)
}

func coreStats(s *sim.Simulator) []pipeline.Statistics {
	stats := make([]pipeline.Statistics, len(s.Cores()))
	for i, c := range s.Cores() {
		stats[i] = c.Stats()
	}
	return stats
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
