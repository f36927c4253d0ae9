// Package translation provides basic-block discovery and the translation
// cache that maps guest block-start addresses to optionally compiled native
// routines.
package translation

import (
	"fmt"
	"strings"

	"github.com/sarchlab/dbtvm/emu"
	"github.com/sarchlab/dbtvm/insts"
)

// Routine is an invocable compiled routine for one basic block.
//
// Calling contract: the routine reads and writes the guest state through the
// same fields the interpreter uses, and leaves state.PC at the correct
// successor address before returning. Guest traps are published through the
// state's trap fields. The translation cache exclusively owns routine
// handles; no other component retains one beyond a single dispatch step.
type Routine func(*emu.State)

// BasicBlock is a maximal straight-line instruction sequence: it starts at a
// guest address and ends at the first control-flow-terminating instruction,
// inclusive. Immutable after construction.
type BasicBlock struct {
	start  uint64
	instrs []insts.Instruction
}

// StartAddr returns the guest address of the first instruction.
func (b *BasicBlock) StartAddr() uint64 {
	return b.start
}

// EndAddr returns the address one past the last instruction byte.
func (b *BasicBlock) EndAddr() uint64 {
	last := b.instrs[len(b.instrs)-1]
	return last.Addr + last.Size
}

// Len returns the number of instructions in the block.
func (b *BasicBlock) Len() int {
	return len(b.instrs)
}

// Instructions returns the decoded instructions in execution order.
// Callers must not modify the returned slice.
func (b *BasicBlock) Instructions() []insts.Instruction {
	return b.instrs
}

// Terminator returns the control-flow-terminating instruction that ends the
// block.
func (b *BasicBlock) Terminator() insts.Instruction {
	return b.instrs[len(b.instrs)-1]
}

// Successors returns the statically known successor addresses of the block:
// none for a halt, two (taken, fallthrough) for a conditional branch, and
// none for an indirect branch, whose target is re-resolved from guest state
// at the next dispatch.
func (b *BasicBlock) Successors() []uint64 {
	t := b.Terminator()
	switch t.Op.Class() {
	case insts.ClassCondBranch:
		succ := make([]uint64, 0, 2)
		if t.Addr >= insts.BackBranchDisplacement {
			succ = append(succ, t.Addr-insts.BackBranchDisplacement)
		}
		succ = append(succ, t.Addr+t.Size)
		return succ
	default:
		return nil
	}
}

// Covers reports whether addr falls inside the block's byte range.
func (b *BasicBlock) Covers(addr uint64) bool {
	return addr >= b.start && addr < b.EndAddr()
}

// String returns the block as a mnemonic listing.
func (b *BasicBlock) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "block %#04x:", b.start)
	for _, in := range b.instrs {
		fmt.Fprintf(&sb, " %s", in.Op)
	}
	return sb.String()
}
