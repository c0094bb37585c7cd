// Package pipeline implements the per-core five-stage in-order pipeline:
// stage queues, hazard detection, operand forwarding, multi-cycle
// functional units, and the control-flush semantics that keep branches,
// jumps, halt, and SYNC correct under reverse-order stage advancement.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/sarchlab/riscvmc/isa"
	"github.com/sarchlab/riscvmc/regfile"
	"github.com/sarchlab/riscvmc/timing/barrier"
	"github.com/sarchlab/riscvmc/timing/hierarchy"
	"github.com/sarchlab/riscvmc/timing/latency"
)

// queueCapacity is the bound on every stage queue; a stage that would push
// a third entry into the next queue stalls instead.
const queueCapacity = 2

// fetchEntry is a centralized-fetch-produced raw instruction line, still
// unparsed, waiting to be decoded.
type fetchEntry struct {
	FetchID int
	Raw     string
}

// Statistics holds a core's end-of-run counters.
type Statistics struct {
	Cycles       uint64
	Instructions uint64
	Stalls       uint64
	MemoryStalls uint64
}

// IPC returns instructions retired per cycle, 0 if no cycles ran.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// PipelinedCore is one core's five-stage pipeline: fetch, decode, execute,
// memory, writeback, each a bounded queue of in-flight instructions.
// Centralized fetch (driven by sim.Simulator) is the only stage not owned
// by the core itself.
type PipelinedCore struct {
	coreID int

	regs      *regfile.RegisterFile
	hierarchy *hierarchy.CacheHierarchy
	barrier   *barrier.SyncBarrier
	latencies *latency.Table
	hazards   *HazardUnit
	parser    *isa.Parser

	program    []string
	textLabels map[string]int
	dataLabels map[string]uint64

	pc           int
	fetchCounter int

	fetchQueue     []fetchEntry
	decodeQueue    []*isa.Instruction
	executeQueue   []*isa.Instruction
	memoryQueue    []*isa.Instruction
	writebackQueue []*isa.Instruction

	pendingWrites          map[int]int32
	registerAvailableCycle map[int]uint64

	cycleCount         uint64
	cycleStallOccurred bool
	halted             bool

	stats Statistics

	trace map[int][]string
}

// New constructs a PipelinedCore for coreID, sharing program/textLabels/
// dataLabels (produced once by the loader) and the hierarchy/barrier/
// latency table (shared across every core in the simulation).
func New(
	coreID int,
	program []string,
	textLabels map[string]int,
	dataLabels map[string]uint64,
	h *hierarchy.CacheHierarchy,
	b *barrier.SyncBarrier,
	lt *latency.Table,
) *PipelinedCore {
	return &PipelinedCore{
		coreID:                 coreID,
		regs:                   regfile.New(coreID),
		hierarchy:              h,
		barrier:                b,
		latencies:              lt,
		hazards:                NewHazardUnit(),
		parser:                 isa.NewParser(),
		program:                program,
		textLabels:             textLabels,
		dataLabels:             dataLabels,
		pendingWrites:          make(map[int]int32),
		registerAvailableCycle: make(map[int]uint64),
		trace:                  make(map[int][]string),
	}
}

// CoreID returns the core's immutable id.
func (c *PipelinedCore) CoreID() int { return c.coreID }

// Halted reports whether this core has retired a halt instruction.
func (c *PipelinedCore) Halted() bool { return c.halted }

// PC returns the current program counter (an instruction index, not a byte
// address).
func (c *PipelinedCore) PC() int { return c.pc }

// Registers returns the core's register file, for end-of-run reporting.
func (c *PipelinedCore) Registers() *regfile.RegisterFile { return c.regs }

// Stats returns the core's accumulated statistics.
func (c *PipelinedCore) Stats() Statistics {
	s := c.stats
	s.Cycles = c.cycleCount
	return s
}

// IsEmpty reports whether every stage queue is empty — the condition the
// simulator waits for, alongside Halted, before ending the run.
func (c *PipelinedCore) IsEmpty() bool {
	return len(c.fetchQueue) == 0 && len(c.decodeQueue) == 0 &&
		len(c.executeQueue) == 0 && len(c.memoryQueue) == 0 &&
		len(c.writebackQueue) == 0
}

// IsStalled reports whether this core stalled somewhere this cycle, or any
// of its downstream queues (fetch/decode/memory/writeback) is already at
// capacity — used by centralized fetch to decide whether to skip this core.
func (c *PipelinedCore) IsStalled() bool {
	return c.cycleStallOccurred ||
		len(c.fetchQueue) >= queueCapacity ||
		len(c.decodeQueue) >= queueCapacity ||
		len(c.memoryQueue) >= queueCapacity ||
		len(c.writebackQueue) >= queueCapacity
}

// CanFetch reports whether centralized fetch may seed this core's fetch
// queue this cycle: not halted, queue has room, program has instructions
// remaining.
func (c *PipelinedCore) CanFetch() bool {
	return !c.halted && len(c.fetchQueue) < queueCapacity && c.pc < len(c.program)
}

// Fetch issues one centralized-fetch request: a word read through this
// core's L1I at the PC's instruction address, enqueued raw for Decode to
// parse next cycle. A cache miss charges the excess latency to this core's
// memory-stall counter without blocking the PC's forward progress.
func (c *PipelinedCore) Fetch() error {
	if !c.CanFetch() || c.IsStalled() {
		return nil
	}

	addr := uint64(c.pc) * 4
	lat, _, err := c.hierarchy.FetchInstruction(c.coreID, addr)
	if err != nil {
		return fmt.Errorf("pipeline: core %d fetch: %w", c.coreID, err)
	}
	if lat > 1 {
		c.stats.MemoryStalls += lat - 1
	}

	id := c.fetchCounter
	c.fetchCounter++
	c.fetchQueue = append(c.fetchQueue, fetchEntry{FetchID: id, Raw: c.program[c.pc]})
	c.recordStage(id, "F")
	c.pc++
	return nil
}

// ClockCycle advances the core by one cycle. Stages run in reverse order
// (writeback, memory, execute, decode) so a value a stage produces this
// cycle is visible to earlier stages only from next cycle onward.
func (c *PipelinedCore) ClockCycle() error {
	if c.halted {
		return nil
	}

	c.cycleStallOccurred = false

	if err := c.writeback(); err != nil {
		return err
	}
	if err := c.memoryAccess(); err != nil {
		return err
	}
	if err := c.execute(); err != nil {
		return err
	}
	if err := c.decode(); err != nil {
		return err
	}

	c.cycleCount++

	if !c.latencies.ForwardingEnabled() {
		for reg, value := range c.pendingWrites {
			c.regs.WriteReg(reg, value)
			c.registerAvailableCycle[reg] = c.cycleCount
		}
		c.pendingWrites = make(map[int]int32)
	}

	return nil
}

// recordStage appends one stage-token cell to instID's trace row. Each call
// is a distinct column, in call order — matching the original's push_back
// semantics — so a fetch and the decode that consumes it next cycle never
// collide on the same cell even though both happen while this core's
// cycleCount is mid-update.
func (c *PipelinedCore) recordStage(instID int, stage string) {
	c.trace[instID] = append(c.trace[instID], stage)
}

func (c *PipelinedCore) flushYoungerQueues() {
	c.fetchQueue = nil
	c.decodeQueue = nil
	c.executeQueue = nil
	c.memoryQueue = nil
}

// decode pops one fetch entry, parses it, resolves core-id dispatch and
// arithmetic latency, and — when forwarding is disabled — stalls until its
// operands are no longer in flight.
func (c *PipelinedCore) decode() error {
	if c.halted || c.cycleStallOccurred || len(c.fetchQueue) == 0 {
		return nil
	}

	entry := c.fetchQueue[0]

	if len(c.decodeQueue) >= queueCapacity {
		c.cycleStallOccurred = true
		c.recordStage(entry.FetchID, "S")
		return nil
	}

	inst, err := c.parser.Parse(entry.Raw, c.coreID)
	if err != nil {
		return fmt.Errorf("pipeline: core %d decode: %w", c.coreID, err)
	}
	inst.InstID = entry.FetchID
	inst.ShouldExecute = true
	if inst.UseCoreIDDispatch {
		inst.ShouldExecute = c.coreID == inst.Rs2
	}
	if inst.IsArithmetic {
		inst.ExecuteLatency = c.latencies.GetLatency(&inst)
	}

	if !c.latencies.ForwardingEnabled() {
		ready := c.hazards.OperandsReady(&inst, c.cycleCount, c.pendingWrites, c.registerAvailableCycle)
		// An older in-flight instruction that writes a source register is a
		// hazard too, until its result reaches pendingWrites.
		srcs := []int{inst.Rs1, inst.Rs2}
		if inst.UseCoreIDDispatch {
			srcs = srcs[:1] // Rs2 is a core id literal, not a register
		}
		for _, q := range [][]*isa.Instruction{c.decodeQueue, c.executeQueue, c.memoryQueue, c.writebackQueue} {
			for _, p := range q {
				if p.Rd > 0 && p.Rd != 31 && (p.Rd == srcs[0] || (len(srcs) > 1 && p.Rd == srcs[1])) {
					ready = false
				}
			}
		}
		if !ready {
			c.cycleStallOccurred = true
			c.recordStage(entry.FetchID, "S")
			return nil
		}
	}

	c.fetchQueue = c.fetchQueue[1:]
	c.decodeQueue = append(c.decodeQueue, &inst)
	c.recordStage(entry.FetchID, "D")
	return nil
}

// resolve reads reg with forwarding applied, per the configured policy.
func (c *PipelinedCore) resolve(reg int) int32 {
	return c.hazards.ResolveOperand(reg, c.latencies.ForwardingEnabled(),
		c.writebackQueue, c.memoryQueue, c.executeQueue, c.regs)
}

// execute pulls from its own queue first (continuing a multi-cycle op),
// else from decode. See SPEC_FULL.md §4.3 for the per-opcode contract.
func (c *PipelinedCore) execute() error {
	if c.halted {
		return nil
	}

	var inst *isa.Instruction
	fromExecuteQueue := len(c.executeQueue) > 0
	if fromExecuteQueue {
		inst = c.executeQueue[0]
	} else if len(c.decodeQueue) > 0 {
		inst = c.decodeQueue[0]
	} else {
		return nil
	}

	if len(c.memoryQueue) >= queueCapacity {
		c.cycleStallOccurred = true
		c.recordStage(inst.InstID, "S")
		return nil
	}

	popSource := func() {
		if fromExecuteQueue {
			c.executeQueue = c.executeQueue[1:]
		} else {
			c.decodeQueue = c.decodeQueue[1:]
		}
	}

	if !inst.ShouldExecute {
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		c.recordStage(inst.InstID, "E")
		return nil
	}

	switch {
	case inst.IsHalt:
		c.recordStage(inst.InstID, "E")
		popSource()
		// Only fetch and decode hold younger instructions here; the memory
		// queue holds older ones, which still complete ahead of the halt.
		c.fetchQueue = nil
		c.decodeQueue = nil
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil

	case inst.IsSync:
		c.barrier.Arrive(c.coreID)
		if !c.barrier.CanProceed(c.coreID) {
			c.cycleStallOccurred = true
			c.recordStage(inst.InstID, "S")
			if !fromExecuteQueue {
				c.decodeQueue = c.decodeQueue[1:]
				c.executeQueue = append([]*isa.Instruction{inst}, c.executeQueue...)
			}
			return nil
		}
		c.recordStage(inst.InstID, "E")
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil

	case inst.IsArithmetic:
		return c.executeArithmetic(inst, fromExecuteQueue, popSource)

	case inst.IsMemory:
		rs1 := c.resolve(inst.Rs1)
		inst.ResultValue = rs1 + inst.Immediate
		if inst.Op == isa.OpSw || inst.Op == isa.OpSwSPM {
			inst.StoreValue = c.resolve(inst.Rs2)
		}
		c.recordStage(inst.InstID, "E")
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil

	case inst.IsInvldL1D:
		c.recordStage(inst.InstID, "E")
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil

	case inst.IsBranch:
		return c.executeBranch(inst, popSource)

	case inst.IsJump:
		return c.executeJump(inst, popSource)

	case inst.Op == isa.OpLa:
		if addr, ok := c.dataLabels[inst.Label]; ok {
			inst.ResultValue = int32(addr)
		} else {
			inst.ResultValue = 0
		}
		inst.HasResult = true
		c.recordStage(inst.InstID, "E")
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil

	default:
		c.recordStage(inst.InstID, "E")
		popSource()
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil
	}
}

func (c *PipelinedCore) executeArithmetic(inst *isa.Instruction, fromExecuteQueue bool, popSource func()) error {
	rs1 := c.resolve(inst.Rs1)
	rs2 := c.resolve(inst.Rs2)

	var result int32
	switch inst.Op {
	case isa.OpAdd:
		result = rs1 + rs2
	case isa.OpSub:
		result = rs1 - rs2
	case isa.OpSlt:
		if rs1 < rs2 {
			result = 1
		}
	case isa.OpMul:
		result = rs1 * rs2
	case isa.OpAddi:
		result = rs1 + inst.Immediate
	}

	inst.CyclesInExecute++
	c.recordStage(inst.InstID, "E")

	if inst.ExecuteLatency == 0 {
		inst.ExecuteLatency = 1
	}
	if inst.CyclesInExecute < inst.ExecuteLatency {
		if !fromExecuteQueue {
			c.decodeQueue = c.decodeQueue[1:]
			c.executeQueue = append(c.executeQueue, inst)
		}
		return nil
	}

	inst.ResultValue = result
	inst.HasResult = true
	popSource()
	c.memoryQueue = append(c.memoryQueue, inst)
	return nil
}

func (c *PipelinedCore) executeBranch(inst *isa.Instruction, popSource func()) error {
	var taken bool
	if inst.UseCoreIDDispatch {
		taken = c.coreID == inst.Rs2
	} else {
		rs1 := c.resolve(inst.Rs1)
		rs2 := c.resolve(inst.Rs2)
		switch inst.Op {
		case isa.OpBeq:
			taken = rs1 == rs2
		case isa.OpBne:
			taken = rs1 != rs2
		case isa.OpBlt:
			taken = rs1 < rs2
		case isa.OpBge:
			taken = rs1 >= rs2
		}
	}

	c.recordStage(inst.InstID, "E")
	popSource()

	if taken {
		target, ok := c.textLabels[inst.Label]
		if !ok {
			// Unresolved label: fail-open, treated as not taken.
			c.memoryQueue = append(c.memoryQueue, inst)
			return nil
		}
		inst.TargetPC = target
		c.pc = target
		c.flushYoungerQueues()
	}

	c.memoryQueue = append(c.memoryQueue, inst)
	return nil
}

func (c *PipelinedCore) executeJump(inst *isa.Instruction, popSource func()) error {
	target, ok := c.textLabels[inst.Label]

	c.recordStage(inst.InstID, "E")
	popSource()

	if !ok {
		c.memoryQueue = append(c.memoryQueue, inst)
		return nil
	}

	if inst.Op == isa.OpJal && inst.Rd != isa.NoReg {
		inst.ResultValue = int32(c.pc + 1)
		inst.HasResult = true
	}

	inst.TargetPC = target
	c.pc = target
	c.flushYoungerQueues()
	c.memoryQueue = append(c.memoryQueue, inst)
	return nil
}

// memoryAccess services lw/sw/lw_spm/sw_spm through the hierarchy or
// scratchpad, stalling in place for any latency beyond the first cycle.
func (c *PipelinedCore) memoryAccess() error {
	if c.halted || len(c.memoryQueue) == 0 {
		return nil
	}

	inst := c.memoryQueue[0]

	if len(c.writebackQueue) >= queueCapacity {
		c.cycleStallOccurred = true
		c.recordStage(inst.InstID, "S")
		return nil
	}

	if !inst.ShouldExecute {
		c.memoryQueue = c.memoryQueue[1:]
		c.writebackQueue = append(c.writebackQueue, inst)
		return nil
	}

	if inst.WaitingForMemory {
		inst.MemoryLatency--
		c.stats.MemoryStalls++
		if inst.MemoryLatency > 0 {
			c.cycleStallOccurred = true
			c.recordStage(inst.InstID, "S")
			return nil
		}
		inst.WaitingForMemory = false
		c.memoryQueue = c.memoryQueue[1:]
		c.writebackQueue = append(c.writebackQueue, inst)
		return nil
	}

	stall := func(lat uint64) bool {
		if lat <= 1 {
			return false
		}
		inst.MemoryLatency = lat - 1
		inst.WaitingForMemory = true
		c.cycleStallOccurred = true
		c.stats.MemoryStalls++
		c.recordStage(inst.InstID, "S")
		return true
	}

	switch inst.Op {
	case isa.OpLw:
		lat, word, err := c.hierarchy.LoadWord(c.coreID, uint64(inst.ResultValue))
		if err != nil {
			return fmt.Errorf("pipeline: core %d memory: %w", c.coreID, err)
		}
		inst.ResultValue = word
		inst.HasResult = true
		if stall(lat) {
			return nil
		}
	case isa.OpSw:
		lat, err := c.hierarchy.StoreWord(c.coreID, uint64(inst.ResultValue), inst.StoreValue)
		if err != nil {
			return fmt.Errorf("pipeline: core %d memory: %w", c.coreID, err)
		}
		if stall(lat) {
			return nil
		}
	case isa.OpLwSPM:
		lat, word, err := c.hierarchy.LoadWordFromSPM(c.coreID, uint64(inst.ResultValue))
		if err != nil {
			return fmt.Errorf("pipeline: core %d memory: %w", c.coreID, err)
		}
		inst.ResultValue = word
		inst.HasResult = true
		if stall(lat) {
			return nil
		}
	case isa.OpSwSPM:
		lat, err := c.hierarchy.StoreWordToSPM(c.coreID, uint64(inst.ResultValue), inst.StoreValue)
		if err != nil {
			return fmt.Errorf("pipeline: core %d memory: %w", c.coreID, err)
		}
		if stall(lat) {
			return nil
		}
	case isa.OpInvld1:
		if err := c.hierarchy.InvalidateL1D(c.coreID); err != nil {
			return fmt.Errorf("pipeline: core %d memory: %w", c.coreID, err)
		}
	}

	c.recordStage(inst.InstID, "M")
	c.memoryQueue = c.memoryQueue[1:]
	c.writebackQueue = append(c.writebackQueue, inst)
	return nil
}

// writeback retires one instruction: commits its register result (or
// stages it for end-of-cycle commit when forwarding is disabled), retires
// a SYNC at the barrier, or, for halt, flushes this core's pipeline and the
// whole hierarchy and marks the core done.
func (c *PipelinedCore) writeback() error {
	if c.halted || len(c.writebackQueue) == 0 {
		return nil
	}

	inst := c.writebackQueue[0]
	c.writebackQueue = c.writebackQueue[1:]

	if inst.IsHalt {
		c.recordStage(inst.InstID, "W")
		c.flushYoungerQueues()
		c.writebackQueue = nil
		c.hierarchy.FlushAll()
		c.halted = true
		c.stats.Instructions++
		return nil
	}

	if !inst.ShouldExecute {
		return nil
	}

	c.recordStage(inst.InstID, "W")

	if inst.IsSync {
		if err := c.barrier.Retire(c.coreID); err != nil {
			return fmt.Errorf("pipeline: core %d writeback: %w", c.coreID, err)
		}
		c.stats.Instructions++
		return nil
	}

	if inst.HasResult && inst.Rd != isa.NoReg && inst.Rd != 0 && inst.Rd != 31 {
		if c.latencies.ForwardingEnabled() {
			c.regs.WriteReg(inst.Rd, inst.ResultValue)
			c.registerAvailableCycle[inst.Rd] = c.cycleCount + 1
		} else {
			c.pendingWrites[inst.Rd] = inst.ResultValue
			c.registerAvailableCycle[inst.Rd] = c.cycleCount
		}
	}

	c.stats.Instructions++
	return nil
}

// Trace returns a stage-token matrix for every fetched instruction, sorted
// by instruction id: row[i] holds one cell per recorded stage event for
// that instruction, in the order they occurred, padded with the empty
// string up to the longest row so every row has the same length on export.
func (c *PipelinedCore) Trace() (ids []int, rows [][]string) {
	ids = make([]int, 0, len(c.trace))
	for id := range c.trace {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	maxLen := 0
	for _, id := range ids {
		if len(c.trace[id]) > maxLen {
			maxLen = len(c.trace[id])
		}
	}

	rows = make([][]string, len(ids))
	for i, id := range ids {
		row := make([]string, maxLen)
		copy(row, c.trace[id])
		rows[i] = row
	}
	return ids, rows
}
