// Package hierarchy wires the per-core L1 caches and shared L2 cache to
// main memory, and each core's private scratchpad alongside it.
package hierarchy

import (
	"fmt"

	"github.com/sarchlab/riscvmc/config"
	"github.com/sarchlab/riscvmc/mem"
	"github.com/sarchlab/riscvmc/timing/cache"
)

// CacheType selects which per-core cache a statistics query targets.
type CacheType int

// Cache type selectors for Stats.
const (
	CacheTypeL1I CacheType = iota
	CacheTypeL1D
	CacheTypeL2
)

// CacheHierarchy wires per-core L1I/L1D caches to a shared L2 backed by
// main memory, with an independent per-core scratchpad.
type CacheHierarchy struct {
	mainMemory *mem.MainMemory
	l2         *cache.Cache
	l1I        []*cache.Cache
	l1D        []*cache.Cache
	spm        []*mem.Scratchpad
	numCores   int
}

// New builds a CacheHierarchy for numCores cores from cfg, per
// setupMemoryHierarchy's topology: MainMemory → L2 → per-core L1I/L1D,
// with scratchpads wired independently of the cache chain.
func New(numCores int, cfg config.CacheConfig) *CacheHierarchy {
	mainMemory := mem.NewMainMemory(4*1024, cfg.MemLatency)

	l2 := cache.New(cache.Config{
		Name:          "L2",
		Size:          cfg.L2Size,
		BlockSize:     cfg.L2BlockSize,
		Associativity: cfg.L2Assoc,
		HitLatency:    cfg.L2Latency,
		Policy:        cfg.L2Policy,
	}, mainMemory)
	l2Next := cacheAsNextLevel{c: l2}

	h := &CacheHierarchy{
		mainMemory: mainMemory,
		l2:         l2,
		l1I:        make([]*cache.Cache, numCores),
		l1D:        make([]*cache.Cache, numCores),
		spm:        make([]*mem.Scratchpad, numCores),
		numCores:   numCores,
	}

	for i := 0; i < numCores; i++ {
		h.l1I[i] = cache.New(cache.Config{
			Name:          fmt.Sprintf("L1I[%d]", i),
			Size:          cfg.L1ISize,
			BlockSize:     cfg.L1IBlockSize,
			Associativity: cfg.L1IAssoc,
			HitLatency:    cfg.L1ILatency,
			Policy:        cfg.L1IPolicy,
		}, l2Next)
		h.l1D[i] = cache.New(cache.Config{
			Name:          fmt.Sprintf("L1D[%d]", i),
			Size:          cfg.L1DSize,
			BlockSize:     cfg.L1DBlockSize,
			Associativity: cfg.L1DAssoc,
			HitLatency:    cfg.L1DLatency,
			Policy:        cfg.L1DPolicy,
		}, l2Next)
		h.spm[i] = mem.NewScratchpad(cfg.SPMSize, cfg.SPMLatency)
	}

	return h
}

// cacheAsNextLevel adapts *cache.Cache's Read/Write (which return
// cache.AccessResult) to the cache.NextLevel interface (which returns bare
// latency/data), so a Cache can back another Cache the same way a
// mem.MainMemory does.
type cacheAsNextLevel struct {
	c *cache.Cache
}

func (a cacheAsNextLevel) Read(addr uint64, size int) (uint64, []byte) {
	result := a.c.Read(addr, size)
	return result.Latency, result.Data
}

func (a cacheAsNextLevel) Write(addr uint64, data []byte) uint64 {
	result := a.c.Write(addr, data)
	return result.Latency
}

func (h *CacheHierarchy) checkCoreID(coreID int) error {
	if coreID < 0 || coreID >= h.numCores {
		return fmt.Errorf("hierarchy: core id %d out of range [0,%d)", coreID, h.numCores)
	}
	return nil
}

func alignDown(addr uint64) uint64 {
	return addr &^ 0x3
}

func wordFromBytes(data []byte) int32 {
	return int32(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
}

func bytesFromWord(value int32) []byte {
	return []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
}

// FetchInstruction reads the 32-bit word at address through coreId's L1I,
// word-aligning the address down first.
func (h *CacheHierarchy) FetchInstruction(coreID int, address uint64) (uint64, int32, error) {
	if err := h.checkCoreID(coreID); err != nil {
		return 0, 0, err
	}
	result := h.l1I[coreID].Read(alignDown(address), 4)
	return result.Latency, wordFromBytes(result.Data), nil
}

// LoadWord reads the 32-bit word at address through coreId's L1D.
func (h *CacheHierarchy) LoadWord(coreID int, address uint64) (uint64, int32, error) {
	if err := h.checkCoreID(coreID); err != nil {
		return 0, 0, err
	}
	result := h.l1D[coreID].Read(alignDown(address), 4)
	return result.Latency, wordFromBytes(result.Data), nil
}

// StoreWord writes value as a 32-bit word at address through coreId's
// L1D.
func (h *CacheHierarchy) StoreWord(coreID int, address uint64, value int32) (uint64, error) {
	if err := h.checkCoreID(coreID); err != nil {
		return 0, err
	}
	result := h.l1D[coreID].Write(alignDown(address), bytesFromWord(value))
	return result.Latency, nil
}

// LoadWordFromSPM reads a word from coreId's scratchpad, bypassing the
// cache hierarchy entirely.
func (h *CacheHierarchy) LoadWordFromSPM(coreID int, address uint64) (uint64, int32, error) {
	if err := h.checkCoreID(coreID); err != nil {
		return 0, 0, err
	}
	word, err := h.spm[coreID].LoadWord(alignDown(address))
	if err != nil {
		return 0, 0, fmt.Errorf("hierarchy: core %d: %w", coreID, err)
	}
	return h.spm[coreID].Latency(), word, nil
}

// StoreWordToSPM writes a word into coreId's scratchpad, bypassing the
// cache hierarchy entirely.
func (h *CacheHierarchy) StoreWordToSPM(coreID int, address uint64, value int32) (uint64, error) {
	if err := h.checkCoreID(coreID); err != nil {
		return 0, err
	}
	if err := h.spm[coreID].StoreWord(alignDown(address), value); err != nil {
		return 0, fmt.Errorf("hierarchy: core %d: %w", coreID, err)
	}
	return h.spm[coreID].Latency(), nil
}

// FlushL1D writes back and invalidates coreId's L1D — the coherence
// operation triggered by the last core to retire a SYNC barrier.
func (h *CacheHierarchy) FlushL1D(coreID int) error {
	if err := h.checkCoreID(coreID); err != nil {
		return err
	}
	h.l1D[coreID].WriteBackAndInvalidate()
	return nil
}

// InvalidateL1D invalidates coreId's L1D without writing back dirty
// lines — the semantics of the explicit invld1 opcode.
func (h *CacheHierarchy) InvalidateL1D(coreID int) error {
	if err := h.checkCoreID(coreID); err != nil {
		return err
	}
	h.l1D[coreID].InvalidateAll()
	return nil
}

// FlushAll writes back and invalidates every L1I and L1D, then flushes
// any dirty lines remaining in L2 — run at the end of simulation.
func (h *CacheHierarchy) FlushAll() {
	for i := 0; i < h.numCores; i++ {
		h.l1I[i].WriteBackAndInvalidate()
		h.l1D[i].WriteBackAndInvalidate()
	}
	h.l2.Flush()
}

// ResetStatistics zeroes every cache's cumulative counters.
func (h *CacheHierarchy) ResetStatistics() {
	for i := 0; i < h.numCores; i++ {
		h.l1I[i].ResetStatistics()
		h.l1D[i].ResetStatistics()
	}
	h.l2.ResetStatistics()
}

// Stats returns the accumulated statistics for the selected cache type.
// coreID is ignored for CacheTypeL2.
func (h *CacheHierarchy) Stats(cacheType CacheType, coreID int) (cache.Statistics, error) {
	switch cacheType {
	case CacheTypeL1I:
		if err := h.checkCoreID(coreID); err != nil {
			return cache.Statistics{}, err
		}
		return h.l1I[coreID].Stats(), nil
	case CacheTypeL1D:
		if err := h.checkCoreID(coreID); err != nil {
			return cache.Statistics{}, err
		}
		return h.l1D[coreID].Stats(), nil
	case CacheTypeL2:
		return h.l2.Stats(), nil
	default:
		return cache.Statistics{}, fmt.Errorf("hierarchy: invalid cache type %d", cacheType)
	}
}

// MainMemory returns the backing main memory, used by the loader to lay
// down the initial program image and by the report to dump raw memory.
func (h *CacheHierarchy) MainMemory() *mem.MainMemory {
	return h.mainMemory
}

// NumCores returns the number of cores the hierarchy was built for.
func (h *CacheHierarchy) NumCores() int {
	return h.numCores
}
