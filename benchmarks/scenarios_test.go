package benchmarks_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dbtvm/benchmarks"
	"github.com/sarchlab/dbtvm/emu"
	"github.com/sarchlab/dbtvm/engine"
	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/jit"
	"github.com/sarchlab/dbtvm/loader"
	"github.com/sarchlab/dbtvm/translation"
)

func TestBenchmarks(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Benchmarks Suite")
}

// interpOnlyCompiler refuses every block, pinning the engine to the
// interpreter.
type interpOnlyCompiler struct{}

func (interpOnlyCompiler) Compile(block *translation.BasicBlock) (translation.Routine, error) {
	return nil, &jit.CompileError{BlockAddr: block.StartAddr(), Op: block.Terminator().Op}
}

// runToHalt executes a program and returns the final guest state.
func runToHalt(prog *loader.Program, opts ...engine.Option) emu.State {
	e, err := engine.New(opts...)
	Expect(err).NotTo(HaveOccurred())
	Expect(e.LoadProgram(prog)).To(Succeed())

	result := e.Run(context.Background())
	Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
	return *e.State()
}

var _ = Describe("Generator", func() {
	It("should be reproducible for a fixed seed", func() {
		a := benchmarks.NewGenerator(42).GenerateLoops(5)
		b := benchmarks.NewGenerator(42).GenerateLoops(5)

		Expect(a).To(Equal(b))
	})

	It("should produce well-formed loop programs", func() {
		prog := benchmarks.NewGenerator(7).GenerateLoops(4)

		Expect(prog.Code).To(HaveLen(4*7 + 1))
		for i := 0; i < 4; i++ {
			Expect(prog.Code[i*7+6]).To(Equal(byte(insts.OpBACK7)))
		}
		Expect(prog.Code[len(prog.Code)-1]).To(Equal(byte(insts.OpHALT)))
	})

	It("should produce trap-free straight-line programs", func() {
		prog := benchmarks.NewGenerator(7).GenerateLinear(40)

		Expect(prog.Code).To(HaveLen(41))
		for _, b := range prog.Code[:40] {
			Expect(insts.Op(b).IsTerminator()).To(BeFalse())
			Expect(insts.Op(b)).NotTo(Equal(insts.OpDIVL))
		}
	})
})

var _ = Describe("generated scenarios", func() {
	It("should reach the same final state compiled and interpreted", func() {
		for seed := int64(0); seed < 10; seed++ {
			prog := benchmarks.NewGenerator(seed).GenerateLoops(6)

			mixed := runToHalt(prog)
			interpreted := runToHalt(prog,
				engine.WithCompiler(interpOnlyCompiler{}))

			Expect(mixed).To(Equal(interpreted),
				"seed %d must not diverge between execution paths", seed)
		}
	})

	It("should halt straight-line programs without traps", func() {
		for seed := int64(0); seed < 10; seed++ {
			prog := benchmarks.NewGenerator(seed).GenerateLinear(100)

			state := runToHalt(prog)
			Expect(state.Halted).To(BeTrue())
			Expect(state.Status).To(Equal(emu.StatusOK))
			Expect(state.PC).To(Equal(uint64(len(prog.Code))))
		}
	})
})
