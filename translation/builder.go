package translation

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dbtvm/insts"
)

// DefaultMaxBlockInsts is the default safety valve on block length.
// The ACC ISA's largest real blocks are a handful of instructions; a block
// anywhere near this long means the decoder failed to recognize a
// terminator.
const DefaultMaxBlockInsts = 1024

// ErrBlockTooLarge reports a block exceeding the configured maximum
// instruction count. This is a correctness-assumption violation on the host
// side, not a recoverable guest condition; the dispatcher does not resume
// after it.
var ErrBlockTooLarge = errors.New("basic block exceeds maximum instruction count")

// Builder discovers basic blocks by walking the decoder forward from a start
// address until the first control-flow-terminating instruction.
type Builder struct {
	decoder  *insts.Decoder
	maxInsts int
}

// NewBuilder creates a block builder. maxInsts bounds the instruction count
// per block; zero selects DefaultMaxBlockInsts.
func NewBuilder(decoder *insts.Decoder, maxInsts int) *Builder {
	if maxInsts <= 0 {
		maxInsts = DefaultMaxBlockInsts
	}
	return &Builder{decoder: decoder, maxInsts: maxInsts}
}

// Build decodes the basic block starting at start. Decode failures propagate
// as *insts.DecodeError; a block longer than the configured maximum fails
// with ErrBlockTooLarge.
func (b *Builder) Build(start uint64) (*BasicBlock, error) {
	block := &BasicBlock{start: start}
	addr := start

	for {
		in, err := b.decoder.Decode(addr)
		if err != nil {
			return nil, err
		}

		block.instrs = append(block.instrs, in)

		if in.Op.IsTerminator() {
			return block, nil
		}

		if len(block.instrs) >= b.maxInsts {
			return nil, fmt.Errorf("block at %#04x: %w (max %d)",
				start, ErrBlockTooLarge, b.maxInsts)
		}

		addr += in.Size
	}
}
