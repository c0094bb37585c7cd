package mem

import "fmt"

// Scratchpad is a per-core word-addressable fast local memory that bypasses
// the cache hierarchy entirely. Accesses are checked for both bounds and
// word alignment; either violation is fatal per the simulator's error
// handling policy.
type Scratchpad struct {
	bytes   []byte
	latency uint64
}

// NewScratchpad creates a Scratchpad of the given capacity in bytes.
func NewScratchpad(size int, latency uint64) *Scratchpad {
	return &Scratchpad{
		bytes:   make([]byte, size),
		latency: latency,
	}
}

// Latency returns the fixed access latency in cycles.
func (s *Scratchpad) Latency() uint64 {
	return s.latency
}

// Capacity returns the scratchpad's size in bytes.
func (s *Scratchpad) Capacity() int {
	return len(s.bytes)
}

func (s *Scratchpad) checkAccess(addr uint64) error {
	if addr%4 != 0 {
		return fmt.Errorf("mem: misaligned scratchpad access at address 0x%x", addr)
	}
	if addr+3 >= uint64(len(s.bytes)) {
		return fmt.Errorf("mem: scratchpad access out of bounds at address 0x%x", addr)
	}
	return nil
}

// LoadWord reads a 32-bit little-endian word at a word-aligned address.
func (s *Scratchpad) LoadWord(addr uint64) (int32, error) {
	if err := s.checkAccess(addr); err != nil {
		return 0, err
	}
	word := uint32(s.bytes[addr]) |
		uint32(s.bytes[addr+1])<<8 |
		uint32(s.bytes[addr+2])<<16 |
		uint32(s.bytes[addr+3])<<24
	return int32(word), nil
}

// StoreWord writes a 32-bit little-endian word at a word-aligned address.
func (s *Scratchpad) StoreWord(addr uint64, value int32) error {
	if err := s.checkAccess(addr); err != nil {
		return err
	}
	s.bytes[addr] = byte(value)
	s.bytes[addr+1] = byte(value >> 8)
	s.bytes[addr+2] = byte(value >> 16)
	s.bytes[addr+3] = byte(value >> 24)
	return nil
}
