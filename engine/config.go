package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/dbtvm/translation"
)

// Config holds the tunable policy values of the translation engine.
type Config struct {
	// CompileThreshold is the number of interpreted executions after which a
	// block is compiled. The default of 1 compiles a block right after its
	// first interpreted execution, so the second visit already runs native.
	// Larger values avoid compiling cold blocks at the cost of staying in
	// the interpreter longer.
	CompileThreshold uint64 `json:"compile_threshold"`

	// MaxBlockInsts is the safety valve on basic-block length. Exceeding it
	// is treated as a host bug, not a guest condition.
	MaxBlockInsts int `json:"max_block_insts"`

	// CacheSize is the translation-cache capacity in blocks.
	CacheSize int `json:"cache_size"`
}

// DefaultConfig returns the engine defaults: compile-on-second-visit, a
// 1024-instruction block limit, and a 32-block cache.
func DefaultConfig() *Config {
	return &Config{
		CompileThreshold: 1,
		MaxBlockInsts:    translation.DefaultMaxBlockInsts,
		CacheSize:        translation.DefaultCacheSize,
	}
}

// LoadConfig reads a JSON config file. Missing fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.CompileThreshold == 0 {
		return fmt.Errorf("compile_threshold must be >= 1, got %d", c.CompileThreshold)
	}
	if c.MaxBlockInsts <= 0 {
		return fmt.Errorf("max_block_insts must be positive, got %d", c.MaxBlockInsts)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	return nil
}
