package translation

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the default translation-cache capacity in blocks.
const DefaultCacheSize = 32

// ErrRoutineInstalled reports an InstallRoutine call on an entry that is
// already compiled. An entry compiles at most once; a second install is a
// logic error in the caller.
var ErrRoutineInstalled = errors.New("routine already installed for block")

// Entry is a translation block: one cached basic block with its execution
// counter and, once compiled, its native routine handle.
type Entry struct {
	block          *BasicBlock
	execCount      uint64
	routine        Routine
	compileBlocked bool
}

// Block returns the basic-block descriptor.
func (e *Entry) Block() *BasicBlock {
	return e.block
}

// ExecCount returns the number of interpreted executions recorded so far.
func (e *Entry) ExecCount() uint64 {
	return e.execCount
}

// Routine returns the compiled routine handle, or nil if the block has not
// been compiled.
func (e *Entry) Routine() Routine {
	return e.routine
}

// DisableCompile marks the entry as permanently interpreted. Used after the
// compiler rejects the block, so compilation is not retried on every visit.
func (e *Entry) DisableCompile() {
	e.compileBlocked = true
}

// CompileDisabled reports whether compilation has been permanently disabled
// for this entry.
func (e *Entry) CompileDisabled() bool {
	return e.compileBlocked
}

// Cache maps guest block-start addresses to translation-block entries. It
// exclusively owns the entries and their routine handles. Capacity is
// bounded by an adaptive-replacement (ARC) policy; evicted entries release
// their routines and are rebuilt from scratch on the next dispatch.
type Cache struct {
	entries *lru.ARCCache
}

// NewCache creates a translation cache holding at most capacity blocks.
// Zero selects DefaultCacheSize.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	arc, err := lru.NewARC(capacity)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	return &Cache{entries: arc}, nil
}

// Lookup returns the entry for a block-start address, if present.
func (c *Cache) Lookup(addr uint64) (*Entry, bool) {
	v, ok := c.entries.Get(addr)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// GetOrCreate returns the existing entry for addr, or builds the block via
// the builder, inserts a fresh entry, and returns it. Construction happens
// at most once per live address: repeated calls return the same entry.
func (c *Cache) GetOrCreate(addr uint64, builder *Builder) (*Entry, error) {
	if e, ok := c.Lookup(addr); ok {
		return e, nil
	}

	block, err := builder.Build(addr)
	if err != nil {
		return nil, err
	}

	e := &Entry{block: block}
	c.entries.Add(addr, e)
	return e, nil
}

// RecordExecution increments the entry's execution counter and returns the
// new count.
func (c *Cache) RecordExecution(e *Entry) uint64 {
	e.execCount++
	return e.execCount
}

// InstallRoutine publishes the compiled routine for an entry. Installing
// over an existing routine is rejected with ErrRoutineInstalled and the
// entry is left unchanged.
func (c *Cache) InstallRoutine(e *Entry, r Routine) error {
	if e.routine != nil {
		return fmt.Errorf("block %#04x: %w", e.block.StartAddr(), ErrRoutineInstalled)
	}
	e.routine = r
	return nil
}

// Invalidate evicts the entry at a block-start address, releasing its
// routine handle.
func (c *Cache) Invalidate(addr uint64) {
	c.entries.Remove(addr)
}

// InvalidateCovering evicts every entry whose block byte range covers addr.
// The guest memory write path calls this so that compiled code never goes
// stale under self-modifying code.
func (c *Cache) InvalidateCovering(addr uint64) {
	for _, k := range c.entries.Keys() {
		v, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		if v.(*Entry).block.Covers(addr) {
			c.entries.Remove(k)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}
