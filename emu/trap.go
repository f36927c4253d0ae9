package emu

import "fmt"

// TrapCause classifies guest-level faults.
type TrapCause uint8

// Guest trap causes.
const (
	// TrapDivideByZero is raised by DIVL when LC is zero.
	TrapDivideByZero TrapCause = iota
	// TrapBranchUnderflow is raised by BACK7 when the branch target would
	// fall below address zero.
	TrapBranchUnderflow
	// TrapBadJumpTarget is raised by JACC when the accumulator does not hold
	// a valid address.
	TrapBadJumpTarget
)

func (c TrapCause) String() string {
	switch c {
	case TrapDivideByZero:
		return "divide by zero"
	case TrapBranchUnderflow:
		return "branch target underflow"
	case TrapBadJumpTarget:
		return "bad jump target"
	}
	return "unknown"
}

// GuestTrap reports a guest-program-level fault. It represents guest
// behavior, not a host bug, and is recoverable by the driver.
type GuestTrap struct {
	// Addr is the address of the faulting instruction.
	Addr uint64
	// Cause classifies the fault.
	Cause TrapCause
}

func (e *GuestTrap) Error() string {
	return fmt.Sprintf("guest trap at %#04x: %v", e.Addr, e.Cause)
}
