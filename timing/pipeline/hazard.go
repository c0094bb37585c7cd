package pipeline

import (
	"github.com/sarchlab/riscvmc/isa"
	"github.com/sarchlab/riscvmc/regfile"
)

// ForwardSource indicates where a forwarded operand value came from.
type ForwardSource int

// Forwarding sources, in search priority order (writeback first).
const (
	ForwardNone ForwardSource = iota
	ForwardFromWriteback
	ForwardFromMemory
	ForwardFromExecute
	ForwardFromRegisterFile
)

// HazardUnit resolves operand values with forwarding and detects whether an
// instruction's sources are still in flight.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard/forwarding resolution unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// ResolveOperand returns the value register reg should read this cycle.
// With forwarding enabled, the first in-flight instruction found carrying a
// result for reg — searched writeback, then memory, then execute, each
// queue from its head — wins over the architectural register file. Register 0 and 31 never need
// forwarding; their register-file read is already authoritative.
func (h *HazardUnit) ResolveOperand(
	reg int,
	forwarding bool,
	writebackQueue, memoryQueue, executeQueue []*isa.Instruction,
	regs *regfile.RegisterFile,
) int32 {
	if reg == isa.NoReg {
		return 0
	}
	if reg == 0 || reg == 31 || !forwarding {
		return regs.ReadReg(reg)
	}

	if v, ok := searchForResult(writebackQueue, reg); ok {
		return v
	}
	if v, ok := searchForResult(memoryQueue, reg); ok {
		return v
	}
	if v, ok := searchForResult(executeQueue, reg); ok {
		return v
	}
	return regs.ReadReg(reg)
}

func searchForResult(queue []*isa.Instruction, reg int) (int32, bool) {
	for _, inst := range queue {
		if inst.HasResult && inst.Rd == reg {
			return inst.ResultValue, true
		}
	}
	return 0, false
}

// OperandsReady reports whether inst's source registers are available for
// use without forwarding: neither staged in pendingWrites nor behind a
// registerAvailableCycle barrier still in the future. Only meaningful when
// forwarding is disabled; decode calls it to decide whether to stall.
func (h *HazardUnit) OperandsReady(
	inst *isa.Instruction,
	cycle uint64,
	pendingWrites map[int]int32,
	registerAvailableCycle map[int]uint64,
) bool {
	for _, reg := range []int{inst.Rs1, inst.Rs2} {
		if reg <= 0 {
			continue
		}
		if _, pending := pendingWrites[reg]; pending {
			return false
		}
		if avail, ok := registerAvailableCycle[reg]; ok && cycle < avail {
			return false
		}
	}
	return true
}
