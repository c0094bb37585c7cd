package latency

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/riscvmc/isa"
)

// TimingConfig holds the per-opcode execute latency, in cycles, for every
// arithmetic opcode. Every other opcode's latency is fixed by the
// pipeline itself (memory ops take their latency from the cache
// hierarchy; branches, jumps, sync, and halt all resolve in one cycle).
type TimingConfig struct {
	AddLatency uint64 `json:"add_latency"`
	SubLatency uint64 `json:"sub_latency"`
	SltLatency uint64 `json:"slt_latency"`
	MulLatency uint64 `json:"mul_latency"`
	AddiLatency uint64 `json:"addi_latency"`
}

// DefaultTimingConfig returns the all-opcodes-latency-1 default matching
// the simulator's stock instructionLatencies table.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		AddLatency:  1,
		SubLatency:  1,
		SltLatency:  1,
		MulLatency:  1,
		AddiLatency: 1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("latency: reading config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("latency: parsing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("latency: serializing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("latency: writing config file: %w", err)
	}

	return nil
}

// Validate checks that every latency is at least 1 cycle.
func (c *TimingConfig) Validate() error {
	for name, v := range map[string]uint64{
		"add_latency": c.AddLatency, "sub_latency": c.SubLatency,
		"slt_latency": c.SltLatency, "mul_latency": c.MulLatency,
		"addi_latency": c.AddiLatency,
	} {
		if v == 0 {
			return fmt.Errorf("latency: %s must be > 0", name)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}

// Set overrides the latency for a single arithmetic opcode by mnemonic;
// any other mnemonic is an error.
func (c *TimingConfig) Set(opcode string, latency uint64) error {
	switch opcode {
	case isa.OpAdd.String():
		c.AddLatency = latency
	case isa.OpSub.String():
		c.SubLatency = latency
	case isa.OpSlt.String():
		c.SltLatency = latency
	case isa.OpMul.String():
		c.MulLatency = latency
	case isa.OpAddi.String():
		c.AddiLatency = latency
	default:
		return fmt.Errorf("latency: unknown opcode %q", opcode)
	}
	return nil
}
