// Package benchmarks provides generated guest scenarios for exercising the
// translator: seeded pseudo-random ACC programs whose loops are guaranteed
// to terminate, paired with initial register values.
package benchmarks

import (
	"math/rand"

	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/loader"
)

// loopBodyLen is the number of sequential instructions preceding each BACK7
// terminator, fixed by the BACK7 displacement.
const loopBodyLen = insts.BackBranchDisplacement

// Generator produces random but well-formed ACC programs.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed, so scenarios are
// reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateLoops builds a program of numLoops back-branch loops followed by
// HALT. Loop bodies contain only CLRA/INC3A/DECA, so LC strictly decreases
// across iterations and every loop terminates.
func (g *Generator) GenerateLoops(numLoops int) *loader.Program {
	body := []insts.Op{insts.OpCLRA, insts.OpINC3A, insts.OpDECA}

	code := make([]byte, 0, numLoops*(loopBodyLen+1)+1)
	for i := 0; i < numLoops; i++ {
		for j := 0; j < loopBodyLen; j++ {
			code = append(code, byte(body[g.rng.Intn(len(body))]))
		}
		code = append(code, byte(insts.OpBACK7))
	}
	code = append(code, byte(insts.OpHALT))

	return loader.New(code, int32(g.rng.Intn(100)), int32(g.rng.Intn(10)))
}

// GenerateLinear builds a straight-line program of n sequential instructions
// followed by HALT. SETL is included; DIVL is not, so the program never
// traps.
func (g *Generator) GenerateLinear(n int) *loader.Program {
	ops := []insts.Op{insts.OpCLRA, insts.OpINC3A, insts.OpDECA, insts.OpSETL}

	code := make([]byte, 0, n+1)
	for i := 0; i < n; i++ {
		code = append(code, byte(ops[g.rng.Intn(len(ops))]))
	}
	code = append(code, byte(insts.OpHALT))

	return loader.New(code, int32(g.rng.Intn(100))-50, int32(g.rng.Intn(20)))
}
