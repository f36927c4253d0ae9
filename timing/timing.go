// Package timing provides an optional block-granularity timing model for the
// translator. It consumes the engine's block-execution events and estimates
// guest cycles: interpreted blocks pay per-instruction fetch and dispatch
// costs, compiled blocks pay a per-block entry cost, and both pay the
// instructions' execution latencies.
package timing

import (
	"github.com/sarchlab/dbtvm/engine"
	"github.com/sarchlab/dbtvm/timing/icache"
	"github.com/sarchlab/dbtvm/timing/latency"
)

// Stats holds the accumulated timing estimate.
type Stats struct {
	// Cycles is the estimated total cycle count.
	Cycles uint64
	// Instructions is the number of instructions accounted.
	Instructions uint64
	// Blocks is the number of block executions accounted.
	Blocks uint64
	// InterpretedBlocks and NativeBlocks split Blocks by execution path.
	InterpretedBlocks uint64
	NativeBlocks      uint64
	// Fetch carries the instruction-cache statistics.
	Fetch icache.Stats
}

// Model accumulates a cycle estimate from block-execution events.
type Model struct {
	table  *latency.Table
	icache *icache.Cache
	stats  Stats
}

// NewModel creates a timing model. A nil table or cache selects defaults.
func NewModel(table *latency.Table, ic *icache.Cache) *Model {
	if table == nil {
		table = latency.NewTable()
	}
	if ic == nil {
		ic = icache.New(icache.DefaultConfig())
	}
	return &Model{table: table, icache: ic}
}

// Listener returns the block-execution observer to register on the engine.
func (m *Model) Listener() engine.BlockListener {
	return m.onBlock
}

func (m *Model) onBlock(ev engine.BlockEvent) {
	m.stats.Blocks++

	if ev.Native {
		m.stats.NativeBlocks++
		// Compiled code is host-resident: no guest instruction fetches,
		// only the routine entry cost.
		m.stats.Cycles += m.table.NativeBlockOverhead()
	} else {
		m.stats.InterpretedBlocks++
	}

	for _, in := range ev.Block.Instructions() {
		m.stats.Instructions++
		m.stats.Cycles += m.table.OpCycles(in.Op)
		if !ev.Native {
			m.stats.Cycles += m.table.InterpretOverhead()
			m.stats.Cycles += m.icache.FetchRange(in.Addr, in.Size)
		}
	}
}

// Stats returns the accumulated estimate.
func (m *Model) Stats() Stats {
	s := m.stats
	s.Fetch = m.icache.Stats()
	return s
}
