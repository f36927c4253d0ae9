// Package latency provides per-instruction cycle cost tables for the timing
// model.
package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds cycle cost values for the ACC timing model.
// Values approximate a small in-order accumulator machine plus the
// translator's own dispatch costs.
type Config struct {
	// ALULatency is the cost of the simple register operations
	// (CLRA, INC3A, DECA, SETL). Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the cost of BACK7 and JACC. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// DivideLatency is the cost of DIVL. Default: 10 cycles.
	DivideLatency uint64 `json:"divide_latency"`

	// HaltLatency is the cost of HALT. Default: 1 cycle.
	HaltLatency uint64 `json:"halt_latency"`

	// InterpretOverhead is the per-instruction decode-and-dispatch cost on
	// the interpreter path. Default: 4 cycles.
	InterpretOverhead uint64 `json:"interpret_overhead"`

	// NativeBlockOverhead is the per-block cost of entering and leaving a
	// compiled routine. Default: 2 cycles.
	NativeBlockOverhead uint64 `json:"native_block_overhead"`
}

// DefaultConfig returns the default cost values.
func DefaultConfig() *Config {
	return &Config{
		ALULatency:          1,
		BranchLatency:       1,
		DivideLatency:       10,
		HaltLatency:         1,
		InterpretOverhead:   4,
		NativeBlockOverhead: 2,
	}
}

// LoadConfig reads cost values from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}
	return config, nil
}
