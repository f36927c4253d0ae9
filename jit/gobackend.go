package jit

import (
	"github.com/sarchlab/dbtvm/emu"
	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/translation"
)

// step executes one compiled instruction. It returns false when the routine
// must stop early because the guest trapped; the trap is already published
// in the state.
type step func(*emu.State) bool

// GoCompiler is the default backend. It emits one step function per
// instruction and fuses them into a single routine, eliminating the
// per-instruction decode and dispatch of the interpreter.
type GoCompiler struct{}

// NewGoCompiler creates the default backend.
func NewGoCompiler() *GoCompiler {
	return &GoCompiler{}
}

// Compile generates a routine for the block. The routine follows the
// dispatch calling contract: it mutates the guest state in place and leaves
// the PC at the successor address (or at the faulting instruction on a
// trap).
func (c *GoCompiler) Compile(block *translation.BasicBlock) (translation.Routine, error) {
	steps := make([]step, 0, block.Len())

	for _, in := range block.Instructions() {
		st, err := c.emit(block, in)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}

	return func(s *emu.State) {
		for _, st := range steps {
			if !st(s) {
				return
			}
		}
	}, nil
}

// emit generates the step function for one instruction. The instruction's
// address and size are baked into the closure, so the step never consults
// the decoder at run time.
func (c *GoCompiler) emit(block *translation.BasicBlock, in insts.Instruction) (step, error) {
	next := in.Addr + in.Size

	switch in.Op {
	case insts.OpHALT:
		return func(s *emu.State) bool {
			s.Halted = true
			s.PC = next
			return true
		}, nil

	case insts.OpCLRA:
		return func(s *emu.State) bool {
			s.Acc = 0
			s.PC = next
			return true
		}, nil

	case insts.OpINC3A:
		return func(s *emu.State) bool {
			s.Acc += 3
			s.PC = next
			return true
		}, nil

	case insts.OpDECA:
		return func(s *emu.State) bool {
			s.Acc--
			s.PC = next
			return true
		}, nil

	case insts.OpSETL:
		return func(s *emu.State) bool {
			s.LC = s.Acc
			s.PC = next
			return true
		}, nil

	case insts.OpBACK7:
		addr := in.Addr
		underflows := addr < insts.BackBranchDisplacement
		taken := addr - insts.BackBranchDisplacement
		return func(s *emu.State) bool {
			s.LC--
			if s.LC > 0 {
				if underflows {
					s.Trap(addr, emu.TrapBranchUnderflow)
					return false
				}
				s.PC = taken
			} else {
				s.PC = next
			}
			return true
		}, nil

	case insts.OpJACC:
		addr := in.Addr
		return func(s *emu.State) bool {
			if s.Acc < 0 {
				s.Trap(addr, emu.TrapBadJumpTarget)
				return false
			}
			s.PC = uint64(s.Acc)
			return true
		}, nil

	case insts.OpDIVL:
		addr := in.Addr
		return func(s *emu.State) bool {
			if s.LC == 0 {
				s.Trap(addr, emu.TrapDivideByZero)
				return false
			}
			s.Acc /= s.LC
			s.PC = next
			return true
		}, nil

	default:
		return nil, &CompileError{BlockAddr: block.StartAddr(), Op: in.Op}
	}
}
