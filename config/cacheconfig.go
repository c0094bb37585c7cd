// Package config loads the cache hierarchy's geometry and policy settings
// from a key=value text file, falling back to hard-coded defaults for any
// key the file omits or when the file itself is missing.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/riscvmc/timing/cache"
)

// CacheConfig holds the resolved geometry, block size, associativity,
// latency, and policy for every level of the hierarchy, plus the
// scratchpad's size and latency.
type CacheConfig struct {
	L1ISize, L1DSize, L2Size                   int
	L1IBlockSize, L1DBlockSize, L2BlockSize     int
	L1IAssoc, L1DAssoc, L2Assoc                 int
	L1ILatency, L1DLatency, L2Latency, MemLatency uint64
	SPMSize                                     int
	SPMLatency                                  uint64
	L1IPolicy, L1DPolicy, L2Policy              cache.Policy
}

// Default returns the hard-coded defaults used when no configuration file
// is present.
func Default() CacheConfig {
	return CacheConfig{
		L1ISize: 256, L1DSize: 256, L2Size: 2048,
		L1IBlockSize: 16, L1DBlockSize: 16, L2BlockSize: 32,
		L1IAssoc: 4, L1DAssoc: 4, L2Assoc: 8,
		L1ILatency: 1, L1DLatency: 1, L2Latency: 10, MemLatency: 100,
		SPMSize: 256, SPMLatency: 1,
		L1IPolicy: cache.LRU, L1DPolicy: cache.LRU, L2Policy: cache.LRU,
	}
}

// Load reads key=value pairs from path, overriding the defaults for any
// key recognized. A missing file is not an error; it simply yields the
// defaults. A malformed value for a recognized key is an error, since
// the assembled cache geometry is a configuration error per the
// simulator's error handling policy.
func Load(path string) (CacheConfig, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := apply(&cfg, key, value); err != nil {
			return cfg, fmt.Errorf("config: %s line %d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return cfg, nil
}

func apply(cfg *CacheConfig, key, value string) error {
	switch key {
	case "L1I_SIZE":
		return setInt(&cfg.L1ISize, value)
	case "L1D_SIZE":
		return setInt(&cfg.L1DSize, value)
	case "L2_SIZE":
		return setInt(&cfg.L2Size, value)
	case "L1I_BLOCK_SIZE":
		return setInt(&cfg.L1IBlockSize, value)
	case "L1D_BLOCK_SIZE":
		return setInt(&cfg.L1DBlockSize, value)
	case "L2_BLOCK_SIZE":
		return setInt(&cfg.L2BlockSize, value)
	case "L1I_ASSOC":
		return setInt(&cfg.L1IAssoc, value)
	case "L1D_ASSOC":
		return setInt(&cfg.L1DAssoc, value)
	case "L2_ASSOC":
		return setInt(&cfg.L2Assoc, value)
	case "L1I_LATENCY":
		return setUint64(&cfg.L1ILatency, value)
	case "L1D_LATENCY":
		return setUint64(&cfg.L1DLatency, value)
	case "L2_LATENCY":
		return setUint64(&cfg.L2Latency, value)
	case "MEM_LATENCY":
		return setUint64(&cfg.MemLatency, value)
	case "SPM_SIZE":
		return setInt(&cfg.SPMSize, value)
	case "SPM_LATENCY":
		return setUint64(&cfg.SPMLatency, value)
	case "L1I_POLICY":
		return setPolicy(&cfg.L1IPolicy, value)
	case "L1D_POLICY":
		return setPolicy(&cfg.L1DPolicy, value)
	case "L2_POLICY":
		return setPolicy(&cfg.L2Policy, value)
	default:
		return nil // unknown keys are ignored
	}
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("bad integer %q: %w", value, err)
	}
	*dst = n
	return nil
}

func setUint64(dst *uint64, value string) error {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("bad integer %q: %w", value, err)
	}
	*dst = n
	return nil
}

func setPolicy(dst *cache.Policy, value string) error {
	switch value {
	case "LRU":
		*dst = cache.LRU
	case "FIFO":
		*dst = cache.FIFO
	default:
		return fmt.Errorf("unknown replacement policy %q", value)
	}
	return nil
}
