package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dbtvm/insts"
)

// ErrUnsupportedInstruction is returned when the interpreter encounters an
// instruction it has no semantics for.
var ErrUnsupportedInstruction = errors.New("unsupported instruction")

// Interpreter executes decoded ACC instructions against a State.
// It is the guaranteed-correct baseline execution path; compiled routines
// must be side-effect-identical to it.
type Interpreter struct{}

// NewInterpreter creates an interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Run executes the instructions of one basic block in order, applying each
// instruction's semantic effect to the state, and leaves the program counter
// at the resolved successor address.
//
// A guest-level fault is published in the state and returned as *GuestTrap;
// the PC is left at the faulting instruction and the remainder of the block
// is not executed.
func (it *Interpreter) Run(block []insts.Instruction, s *State) error {
	for _, in := range block {
		if err := it.step(in, s); err != nil {
			return err
		}
	}
	return nil
}

func (it *Interpreter) step(in insts.Instruction, s *State) error {
	switch in.Op {
	case insts.OpHALT:
		s.Halted = true
		s.PC = in.Addr + in.Size

	case insts.OpCLRA:
		s.Acc = 0
		s.PC = in.Addr + in.Size

	case insts.OpINC3A:
		s.Acc += 3
		s.PC = in.Addr + in.Size

	case insts.OpDECA:
		s.Acc--
		s.PC = in.Addr + in.Size

	case insts.OpSETL:
		s.LC = s.Acc
		s.PC = in.Addr + in.Size

	case insts.OpBACK7:
		s.LC--
		if s.LC > 0 {
			if in.Addr < insts.BackBranchDisplacement {
				s.Trap(in.Addr, TrapBranchUnderflow)
				return s.PendingTrap()
			}
			s.PC = in.Addr - insts.BackBranchDisplacement
		} else {
			s.PC = in.Addr + in.Size
		}

	case insts.OpJACC:
		if s.Acc < 0 {
			s.Trap(in.Addr, TrapBadJumpTarget)
			return s.PendingTrap()
		}
		s.PC = uint64(s.Acc)

	case insts.OpDIVL:
		if s.LC == 0 {
			s.Trap(in.Addr, TrapDivideByZero)
			return s.PendingTrap()
		}
		s.Acc /= s.LC
		s.PC = in.Addr + in.Size

	default:
		return fmt.Errorf("%w: %v at %#04x", ErrUnsupportedInstruction, in.Op, in.Addr)
	}

	return nil
}
