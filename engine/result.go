package engine

import "github.com/sarchlab/dbtvm/emu"

// RunState is the dispatcher's state-machine state.
type RunState uint8

// Dispatcher states.
const (
	// StateInterpreting means the current block runs on the interpreter.
	StateInterpreting RunState = iota
	// StateInvoking means the current block runs as a compiled routine.
	StateInvoking
	// StateHalted means the guest requested termination.
	StateHalted
	// StateFaulted means an unrecovered guest trap or decode error ended the
	// run.
	StateFaulted
)

func (s RunState) String() string {
	switch s {
	case StateInterpreting:
		return "interpreting"
	case StateInvoking:
		return "invoking"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// Outcome tags how a run ended, so callers can react differently to normal
// guest termination, guest faults, and host-side errors.
type Outcome uint8

// Run outcomes.
const (
	// OutcomeHalted means the guest executed HALT.
	OutcomeHalted Outcome = iota
	// OutcomeFaulted means the guest faulted (trap or decode error).
	OutcomeFaulted
	// OutcomeStopped means the external stop signal ended the run at a block
	// boundary.
	OutcomeStopped
	// OutcomeHostError means a host-side invariant was violated (for example
	// an over-long block); the run result is not trustworthy guest behavior.
	OutcomeHostError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHalted:
		return "halted"
	case OutcomeFaulted:
		return "faulted"
	case OutcomeStopped:
		return "stopped"
	case OutcomeHostError:
		return "host error"
	}
	return "unknown"
}

// Stats counts what the dispatch loop did during a run.
type Stats struct {
	// Blocks is the total number of block executions (both paths).
	Blocks uint64
	// Instructions is the total number of guest instructions executed.
	Instructions uint64
	// InterpretedBlocks counts block executions on the interpreter path.
	InterpretedBlocks uint64
	// NativeBlocks counts block executions through compiled routines.
	NativeBlocks uint64
	// CompiledBlocks counts successful compilations.
	CompiledBlocks uint64
	// CompileFailures counts blocks the backend rejected; those blocks stay
	// on the interpreter permanently.
	CompileFailures uint64
}

// Result is the tagged outcome of a run.
type Result struct {
	// Outcome tags the run ending.
	Outcome Outcome

	// Trap describes the guest fault when Outcome is OutcomeFaulted and the
	// fault was a trap (it is nil for decode faults; see Err).
	Trap *emu.GuestTrap

	// Err carries the decode error for decode faults, the violated
	// invariant for host errors, or the context error for stopped runs.
	Err error

	// Stats summarizes the run.
	Stats Stats
}
