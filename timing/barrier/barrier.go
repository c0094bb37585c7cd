// Package barrier implements the two-phase cross-core SYNC rendezvous.
package barrier

import "github.com/sarchlab/riscvmc/timing/hierarchy"

// SyncBarrier coordinates a two-phase rendezvous across numCores cores:
// an "arrive" phase entered from Execute, and a "retire" phase entered
// from Writeback. The last core to retire triggers a write-back-and-
// invalidate of every core's L1D, preserving coherence across the
// barrier.
type SyncBarrier struct {
	numCores    int
	arrived     []bool
	retired     []bool
	arriveCount int
	retireCount int

	hierarchy *hierarchy.CacheHierarchy
}

// New constructs a SyncBarrier for numCores cores, coupled to h for the
// coherence flush triggered on final retirement.
func New(numCores int, h *hierarchy.CacheHierarchy) *SyncBarrier {
	return &SyncBarrier{
		numCores:  numCores,
		arrived:   make([]bool, numCores),
		retired:   make([]bool, numCores),
		hierarchy: h,
	}
}

// Arrive marks coreID as having reached the barrier in its Execute
// stage. Idempotent: arriving twice before a reset has no further
// effect.
func (b *SyncBarrier) Arrive(coreID int) {
	if !b.arrived[coreID] {
		b.arrived[coreID] = true
		b.arriveCount++
	}
}

// AllArrived reports whether every core has arrived.
func (b *SyncBarrier) AllArrived() bool {
	return b.arriveCount == b.numCores
}

// CanProceed reports whether coreID may proceed past the barrier —
// true once every core has arrived.
func (b *SyncBarrier) CanProceed(coreID int) bool {
	return b.AllArrived()
}

// Retire marks coreID as having retired its SYNC instruction in
// Writeback. Once every core has retired, every core's L1D is written
// back and invalidated, and the barrier resets for its next use.
func (b *SyncBarrier) Retire(coreID int) error {
	if !b.retired[coreID] {
		b.retired[coreID] = true
		b.retireCount++
	}

	if b.retireCount != b.numCores {
		return nil
	}

	for c := 0; c < b.numCores; c++ {
		if err := b.hierarchy.FlushL1D(c); err != nil {
			return err
		}
	}

	b.Reset()
	return nil
}

// Reset clears all arrival and retirement state, ready for the next
// SYNC.
func (b *SyncBarrier) Reset() {
	for i := range b.arrived {
		b.arrived[i] = false
		b.retired[i] = false
	}
	b.arriveCount = 0
	b.retireCount = 0
}

// ArriveCount returns the number of cores that have arrived since the
// last reset.
func (b *SyncBarrier) ArriveCount() int {
	return b.arriveCount
}

// RetireCount returns the number of cores that have retired since the
// last reset.
func (b *SyncBarrier) RetireCount() int {
	return b.retireCount
}
