// Package emu provides functional ACC guest emulation.
package emu

import "fmt"

// Status describes whether the guest machine is executing normally or has
// taken a trap.
type Status uint8

// Machine status values.
const (
	// StatusOK means the guest is executing normally.
	StatusOK Status = iota
	// StatusTrapped means the guest took a trap; TrapCause and TrapAddr
	// describe it.
	StatusTrapped
)

// State is the guest machine state: registers, program counter, and flags.
//
// Exactly one State instance exists per emulated execution context. Both the
// interpreter and compiled routines read and write the same instance; it is
// passed explicitly everywhere and never copied during execution.
type State struct {
	// Acc is the accumulator register.
	Acc int32

	// LC is the loop counter register.
	LC int32

	// PC is the program counter (byte address into guest memory).
	PC uint64

	// Halted is set when the guest executes HALT.
	Halted bool

	// Status records whether the guest trapped. Compiled routines cannot
	// return errors, so traps from both execution paths are published here.
	Status Status

	// TrapCause classifies the trap when Status is StatusTrapped.
	TrapCause TrapCause

	// TrapAddr is the address of the faulting instruction when Status is
	// StatusTrapped.
	TrapAddr uint64
}

// String returns a one-line dump of the register state.
func (s *State) String() string {
	return fmt.Sprintf("PC: %#04x, ACC: %4d, LC: %4d, halted: %v",
		s.PC, s.Acc, s.LC, s.Halted)
}

// Trap records a guest trap at addr with the given cause. The PC is left at
// the faulting instruction.
func (s *State) Trap(addr uint64, cause TrapCause) {
	s.Status = StatusTrapped
	s.TrapCause = cause
	s.TrapAddr = addr
	s.PC = addr
}

// PendingTrap returns the trap recorded in the state, or nil if the guest is
// executing normally.
func (s *State) PendingTrap() *GuestTrap {
	if s.Status != StatusTrapped {
		return nil
	}
	return &GuestTrap{Addr: s.TrapAddr, Cause: s.TrapCause}
}
