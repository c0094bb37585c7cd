// Package main provides a profiling wrapper for riscvmc, to identify
// performance bottlenecks in the cycle loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/loader"
	"github.com/sarchlab/riscvmc/sim"
	"github.com/sarchlab/riscvmc/timing/latency"
)

var (
	numCores     = flag.Int("cores", 1, "number of cores to simulate")
	noForwarding = flag.Bool("no-forwarding", false, "disable operand forwarding")
	cpuProfile   = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile   = flag.String("memprofile", "", "write memory profile to file")
	duration     = flag.Duration("duration", 30*time.Second, "max duration to run before giving up")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.asm>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)

	lt := latency.NewTable()
	if *noForwarding {
		lt = lt.WithForwarding(false)
	}

	s, err := sim.New(*numCores, prog, config.Default(), lt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building simulator: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()

	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	if err := s.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running simulator: %v\n", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	var instrCount uint64
	for _, c := range s.Cores() {
		instrCount += c.Stats().Instructions
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Cores: %d\n", *numCores)
	fmt.Printf("Cycles: %d\n", s.Cycles())
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}
