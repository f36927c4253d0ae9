package profile

import "github.com/sarchlab/dbtvm/engine"

// Collector accumulates block execution counts during one run.
type Collector struct {
	counts map[uint64]uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{counts: make(map[uint64]uint64)}
}

// Listener returns the block-execution observer to register on the engine.
func (c *Collector) Listener() engine.BlockListener {
	return func(ev engine.BlockEvent) {
		c.counts[ev.Block.StartAddr()]++
	}
}

// Counts returns the per-address execution counts collected so far.
func (c *Collector) Counts() map[uint64]uint64 {
	return c.counts
}

// FlushTo accumulates the collected counts into a store and clears the
// collector.
func (c *Collector) FlushTo(s *Store) error {
	if err := s.Add(c.counts); err != nil {
		return err
	}
	c.counts = make(map[uint64]uint64)
	return nil
}
