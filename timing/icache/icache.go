// Package icache models the guest instruction cache using Akita cache
// components. The model tracks tags and replacement only; instruction bytes
// always come from guest memory.
package icache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds instruction-cache model parameters.
type Config struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// LineSize in bytes.
	LineSize int
	// HitLatency in cycles.
	HitLatency uint64
	// MissLatency in cycles (includes the memory access).
	MissLatency uint64
}

// DefaultConfig returns a small i-cache fitting the 64KB guest address
// space: 1KB, 2-way, 16-byte lines.
func DefaultConfig() Config {
	return Config{
		Size:          1024,
		Associativity: 2,
		LineSize:      16,
		HitLatency:    1,
		MissLatency:   20,
	}
}

// Stats holds instruction-cache statistics.
type Stats struct {
	Fetches   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is the instruction-cache model. Fetches are read-only; there is no
// dirty state and no writeback.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Stats
}

// New creates an instruction-cache model.
func New(config Config) *Cache {
	numSets := config.Size / (config.Associativity * config.LineSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.LineSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Fetch models one instruction fetch at addr and returns its latency.
func (c *Cache) Fetch(addr uint64) uint64 {
	c.stats.Fetches++

	lineAddr := (addr / uint64(c.config.LineSize)) * uint64(c.config.LineSize)

	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.config.HitLatency
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(lineAddr)
	if victim == nil {
		return c.config.MissLatency
	}
	if victim.IsValid {
		c.stats.Evictions++
	}

	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return c.config.MissLatency
}

// FetchRange models fetching size consecutive bytes starting at addr and
// returns the accumulated latency. Each cache line in the range is charged
// once.
func (c *Cache) FetchRange(addr uint64, size uint64) uint64 {
	if size == 0 {
		return 0
	}

	var total uint64
	line := uint64(c.config.LineSize)
	first := (addr / line) * line
	last := ((addr + size - 1) / line) * line

	for a := first; a <= last; a += line {
		total += c.Fetch(a)
	}
	return total
}

// Reset invalidates all lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Stats{}
}
