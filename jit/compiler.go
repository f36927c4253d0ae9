// Package jit provides the compiler boundary of the translator: the
// capability that turns a basic block into an invocable routine honoring the
// dispatch calling contract.
//
// The default backend compiles a block into a chain of per-instruction step
// functions fused into a single routine. Each step encodes its instruction's
// semantics independently of the interpreter, so interpreter/compiled
// equivalence is a real, testable property rather than shared code.
package jit

import (
	"fmt"

	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/translation"
)

// Compiler turns basic blocks into invocable routines.
//
// A failed compilation is recoverable: the dispatcher falls back to
// permanently interpreting the block. Implementations must not mutate the
// block.
type Compiler interface {
	Compile(block *translation.BasicBlock) (translation.Routine, error)
}

// CompileError reports a block the backend cannot generate code for.
type CompileError struct {
	// BlockAddr is the start address of the rejected block.
	BlockAddr uint64
	// Op is the instruction the backend has no code generator for.
	Op insts.Op
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile block %#04x: no code generator for %v", e.BlockAddr, e.Op)
}
