// Package insts provides ACC instruction definitions and decoding.
//
// The ACC ISA is a byte-coded accumulator machine: every instruction is a
// single opcode byte with no operand fields. This package decodes guest
// memory bytes into structured instructions and classifies their control
// flow, which is what the block builder uses to find basic-block boundaries.
//
// Usage:
//
//	decoder := insts.NewDecoder(mem)
//	inst, err := decoder.Decode(0x10)
//	fmt.Printf("Op: %v, Class: %v\n", inst.Op, inst.Op.Class())
package insts

import "fmt"

// Op represents an ACC opcode.
type Op uint8

// ACC opcodes. The constant values are the on-wire encoding bytes.
const (
	// OpHALT stops the machine: Halted = true, PC += 1.
	OpHALT Op = 0
	// OpCLRA clears the accumulator: ACC = 0.
	OpCLRA Op = 1
	// OpINC3A adds three to the accumulator: ACC += 3.
	OpINC3A Op = 2
	// OpDECA decrements the accumulator: ACC -= 1.
	OpDECA Op = 3
	// OpSETL copies the accumulator into the loop counter: LC = ACC.
	OpSETL Op = 4
	// OpBACK7 decrements LC and branches back seven bytes while LC > 0:
	// LC -= 1; if LC > 0 { PC -= 6 } else { PC += 1 }.
	OpBACK7 Op = 5
	// OpJACC jumps to the address held in the accumulator: PC = ACC.
	// A negative accumulator is a guest trap.
	OpJACC Op = 6
	// OpDIVL divides the accumulator by the loop counter: ACC /= LC.
	// Division by zero is a guest trap.
	OpDIVL Op = 7

	numOps = 8
)

// Class represents the control-flow classification of an instruction.
type Class uint8

// Control-flow classes.
const (
	// ClassSequential instructions fall through to the next address.
	ClassSequential Class = iota
	// ClassCondBranch instructions have two statically known successors.
	ClassCondBranch
	// ClassIndirectBranch instructions have a runtime-computed successor.
	ClassIndirectBranch
	// ClassHalt instructions terminate guest execution and have no successor.
	ClassHalt
)

var opNames = [numOps]string{"HALT", "CLRA", "INC3A", "DECA", "SETL", "BACK7", "JACC", "DIVL"}

var opClasses = [numOps]Class{
	OpHALT:  ClassHalt,
	OpCLRA:  ClassSequential,
	OpINC3A: ClassSequential,
	OpDECA:  ClassSequential,
	OpSETL:  ClassSequential,
	OpBACK7: ClassCondBranch,
	OpJACC:  ClassIndirectBranch,
	OpDIVL:  ClassSequential,
}

// String returns the mnemonic of the opcode.
func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("UNK(%d)", uint8(o))
	}
	return opNames[o]
}

// Class returns the control-flow classification of the opcode.
func (o Op) Class() Class {
	return opClasses[o]
}

// IsTerminator reports whether the opcode ends a basic block.
func (o Op) IsTerminator() bool {
	return o.Class() != ClassSequential
}

// String returns a readable name for the class.
func (c Class) String() string {
	switch c {
	case ClassSequential:
		return "sequential"
	case ClassCondBranch:
		return "cond-branch"
	case ClassIndirectBranch:
		return "indirect-branch"
	case ClassHalt:
		return "halt"
	}
	return "unknown"
}

// BackBranchDisplacement is how far an OpBACK7 terminator moves the PC
// backwards when the loop is taken, measured from the instruction address.
const BackBranchDisplacement = 6

// Instruction represents a decoded ACC instruction.
// Instructions are immutable once decoded.
type Instruction struct {
	// Op is the operation code.
	Op Op

	// Addr is the guest address the instruction was decoded from.
	Addr uint64

	// Size is the encoded length in bytes. Always >= 1.
	Size uint64
}

// String returns the mnemonic with its address.
func (i Instruction) String() string {
	return fmt.Sprintf("%#04x: %s", i.Addr, i.Op)
}
