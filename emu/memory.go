package emu

import (
	"errors"
	"fmt"
)

// MemorySize is the size of guest memory in bytes (64KB).
const MemorySize = 64 * 1024

// ErrOutOfRange is returned for accesses outside mapped guest memory.
var ErrOutOfRange = errors.New("address out of mapped guest memory")

// WriteObserver is notified after every guest memory write. The translation
// layer registers one to invalidate compiled code covering the written
// address (self-modifying code).
type WriteObserver func(addr uint64)

// Memory is the flat byte-addressable guest memory.
type Memory struct {
	data     []byte
	observer WriteObserver
}

// NewMemory creates a zeroed guest memory.
func NewMemory() *Memory {
	return &Memory{data: make([]byte, MemorySize)}
}

// SetWriteObserver installs the write-notification hook. Passing nil removes
// the hook.
func (m *Memory) SetWriteObserver(o WriteObserver) {
	m.observer = o
}

// Read8 reads one byte at addr.
func (m *Memory) Read8(addr uint64) (byte, error) {
	if addr >= uint64(len(m.data)) {
		return 0, fmt.Errorf("read at %#x: %w", addr, ErrOutOfRange)
	}
	return m.data[addr], nil
}

// ReadBytes reads n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) ([]byte, error) {
	if n < 0 || addr >= uint64(len(m.data)) || addr+uint64(n) > uint64(len(m.data)) {
		return nil, fmt.Errorf("read %d bytes at %#x: %w", n, addr, ErrOutOfRange)
	}
	return m.data[addr : addr+uint64(n)], nil
}

// Write8 writes one byte at addr and notifies the write observer.
func (m *Memory) Write8(addr uint64, value byte) error {
	if addr >= uint64(len(m.data)) {
		return fmt.Errorf("write at %#x: %w", addr, ErrOutOfRange)
	}
	m.data[addr] = value
	if m.observer != nil {
		m.observer(addr)
	}
	return nil
}

// LoadImage copies a program image to the start of guest memory.
// Loading bypasses the write observer; it happens before execution starts.
func (m *Memory) LoadImage(image []byte) error {
	if len(image) > len(m.data) {
		return fmt.Errorf("image of %d bytes exceeds %d-byte memory: %w",
			len(image), len(m.data), ErrOutOfRange)
	}
	copy(m.data, image)
	return nil
}
