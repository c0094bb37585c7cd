// Package main provides the entry point for riscvmc.
// riscvmc is a cycle-accurate multi-core RISC-V-like pipeline simulator.
//
// For the full CLI, use: go run ./cmd/riscvmc
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("riscvmc - multi-core pipeline simulator")
	fmt.Println("")
	fmt.Println("Usage: riscvmc [options] <program.asm>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --cores           Number of cores to simulate")
	fmt.Println("  --cache-config    Path to a cache geometry config file")
	fmt.Println("  --timing-config   Path to an arithmetic timing config file")
	fmt.Println("  --no-forwarding   Disable operand forwarding")
	fmt.Println("  --trace           Directory to write per-core pipeline CSV traces into")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/riscvmc' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/riscvmc' instead.")
	}
}
