// Package latency provides the shared per-opcode execute-stage latency
// table used by every core's pipeline.
package latency

import (
	"github.com/sarchlab/riscvmc/isa"
)

// Table provides instruction latency lookups and carries the pipeline-wide
// forwarding flag: whether a consumer may read a producer's result before
// it has been committed to the register file.
type Table struct {
	config     *TimingConfig
	forwarding bool
}

// NewTable creates a new latency table with the default all-opcodes-1
// timing values and forwarding enabled.
func NewTable() *Table {
	return &Table{
		config:     DefaultTimingConfig(),
		forwarding: true,
	}
}

// NewTableWithConfig creates a new latency table with a custom timing
// configuration and forwarding enabled.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config:     config,
		forwarding: true,
	}
}

// WithForwarding returns a copy of t with the forwarding flag set to
// enabled.
func (t *Table) WithForwarding(enabled bool) *Table {
	clone := *t
	clone.forwarding = enabled
	return &clone
}

// ForwardingEnabled reports whether operand forwarding is active.
func (t *Table) ForwardingEnabled() bool {
	return t.forwarding
}

// GetLatency returns the execute-stage latency in cycles for inst. Only
// arithmetic opcodes carry a configurable multi-cycle latency; every
// other opcode resolves in the stage's base 1 cycle (memory ops add the
// cache hierarchy's latency separately, once the address is known).
func (t *Table) GetLatency(inst *isa.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case isa.OpAdd:
		return t.config.AddLatency
	case isa.OpAddi:
		return t.config.AddiLatency
	case isa.OpSub:
		return t.config.SubLatency
	case isa.OpSlt:
		return t.config.SltLatency
	case isa.OpMul:
		return t.config.MulLatency
	default:
		return 1
	}
}

// IsMemoryOp returns true if the instruction accesses memory (cache
// hierarchy or scratchpad).
func (t *Table) IsMemoryOp(inst *isa.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsMemory
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *isa.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == isa.OpLw || inst.Op == isa.OpLwSPM
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *isa.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == isa.OpSw || inst.Op == isa.OpSwSPM
}

// IsBranchOp returns true if the instruction is a branch or jump
// operation.
func (t *Table) IsBranchOp(inst *isa.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsBranch || inst.IsJump
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
