package latency

import "github.com/sarchlab/dbtvm/insts"

// Table resolves per-opcode execution costs from a Config.
type Table struct {
	config *Config
}

// NewTable creates a table with default costs.
func NewTable() *Table {
	return NewTableWithConfig(DefaultConfig())
}

// NewTableWithConfig creates a table from explicit costs.
func NewTableWithConfig(config *Config) *Table {
	if config == nil {
		config = DefaultConfig()
	}
	return &Table{config: config}
}

// Config returns the underlying cost values.
func (t *Table) Config() *Config {
	return t.config
}

// OpCycles returns the execution cost of one opcode, excluding fetch and
// dispatch overheads.
func (t *Table) OpCycles(op insts.Op) uint64 {
	switch op {
	case insts.OpHALT:
		return t.config.HaltLatency
	case insts.OpBACK7, insts.OpJACC:
		return t.config.BranchLatency
	case insts.OpDIVL:
		return t.config.DivideLatency
	default:
		return t.config.ALULatency
	}
}

// InterpretOverhead returns the per-instruction interpreter dispatch cost.
func (t *Table) InterpretOverhead() uint64 {
	return t.config.InterpretOverhead
}

// NativeBlockOverhead returns the per-block compiled-routine entry cost.
func (t *Table) NativeBlockOverhead() uint64 {
	return t.config.NativeBlockOverhead
}
