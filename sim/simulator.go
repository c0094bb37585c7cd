// Package sim drives the cycle loop: centralized fetch before and after
// each round of per-core clock cycles, until every core has halted and
// emptied its pipeline, then a final hierarchy flush.
package sim

import (
	"fmt"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/loader"
	"github.com/sarchlab/riscvmc/timing/barrier"
	"github.com/sarchlab/riscvmc/timing/hierarchy"
	"github.com/sarchlab/riscvmc/timing/latency"
	"github.com/sarchlab/riscvmc/timing/pipeline"
)

// Simulator owns the shared hierarchy and barrier and every core's
// pipeline, and drives them one cycle at a time.
type Simulator struct {
	cores     []*pipeline.PipelinedCore
	hierarchy *hierarchy.CacheHierarchy
	barrier   *barrier.SyncBarrier
	cycles    uint64
}

// New builds a Simulator for numCores cores executing prog's shared
// instruction stream, with caches configured per cfg and arithmetic
// timing/forwarding per lt. prog's data section is installed into main
// memory before the first cycle.
func New(numCores int, prog *loader.Program, cfg config.CacheConfig, lt *latency.Table) (*Simulator, error) {
	h := hierarchy.New(numCores, cfg)
	if err := prog.InstallData(h.MainMemory()); err != nil {
		return nil, fmt.Errorf("sim: installing data section: %w", err)
	}

	b := barrier.New(numCores, h)

	cores := make([]*pipeline.PipelinedCore, numCores)
	for i := range cores {
		cores[i] = pipeline.New(i, prog.Instructions, prog.TextLabels, prog.DataLabels, h, b, lt)
	}

	return &Simulator{cores: cores, hierarchy: h, barrier: b}, nil
}

// Cores returns every core, for end-of-run statistics and trace export.
func (s *Simulator) Cores() []*pipeline.PipelinedCore {
	return s.cores
}

// Hierarchy returns the shared cache hierarchy, for end-of-run statistics.
func (s *Simulator) Hierarchy() *hierarchy.CacheHierarchy {
	return s.hierarchy
}

// Cycles returns the number of cycles the simulator ran.
func (s *Simulator) Cycles() uint64 {
	return s.cycles
}

// Run executes the cycle loop until every core has halted and emptied its
// pipeline, then performs the final hierarchy flush.
func (s *Simulator) Run() error {
	if err := s.fetchAll(); err != nil {
		return err
	}

	for !s.done() {
		for _, c := range s.cores {
			if err := c.ClockCycle(); err != nil {
				return err
			}
		}
		s.cycles++

		if err := s.fetchAll(); err != nil {
			return err
		}
	}

	s.hierarchy.FlushAll()
	return nil
}

func (s *Simulator) fetchAll() error {
	for _, c := range s.cores {
		if err := c.Fetch(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) done() bool {
	for _, c := range s.cores {
		if !c.Halted() || !c.IsEmpty() {
			return false
		}
	}
	return true
}
