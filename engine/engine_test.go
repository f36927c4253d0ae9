package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dbtvm/emu"
	"github.com/sarchlab/dbtvm/engine"
	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/jit"
	"github.com/sarchlab/dbtvm/loader"
	"github.com/sarchlab/dbtvm/translation"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

// spyCompiler wraps the default backend and records compile requests.
type spyCompiler struct {
	inner jit.Compiler
	calls int
	addrs []uint64
}

func newSpyCompiler() *spyCompiler {
	return &spyCompiler{inner: jit.NewGoCompiler()}
}

func (s *spyCompiler) Compile(block *translation.BasicBlock) (translation.Routine, error) {
	s.calls++
	s.addrs = append(s.addrs, block.StartAddr())
	return s.inner.Compile(block)
}

// failCompiler rejects every block.
type failCompiler struct {
	calls int
}

func (f *failCompiler) Compile(block *translation.BasicBlock) (translation.Routine, error) {
	f.calls++
	return nil, &jit.CompileError{BlockAddr: block.StartAddr(), Op: block.Terminator().Op}
}

// newEngine builds an engine for a program, failing the test on any setup
// error.
func newEngine(prog *loader.Program, opts ...engine.Option) *engine.Engine {
	e, err := engine.New(opts...)
	Expect(err).NotTo(HaveOccurred())
	Expect(e.LoadProgram(prog)).To(Succeed())
	return e
}

var _ = Describe("Engine", func() {
	Describe("guest scenarios", func() {
		It("should run six INC3A through a double BACK7 loop", func() {
			// Two passes over the loop body, then fall through both BACK7s.
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			state := e.State()
			Expect(state.Acc).To(Equal(int32(36)))
			Expect(state.LC).To(Equal(int32(-1)))
			Expect(state.PC).To(Equal(uint64(9)))
			Expect(state.Halted).To(BeTrue())
		})

		It("should run the SETL-prefixed variant", func() {
			prog := loader.New([]byte{4, 2, 2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			state := e.State()
			Expect(state.Acc).To(Equal(int32(21)))
			Expect(state.LC).To(Equal(int32(-2)))
			Expect(state.PC).To(Equal(uint64(11)))
		})

		It("should follow an indirect jump resolved from the accumulator", func() {
			// JACC at 0 jumps to the HALT at address 3.
			prog := loader.New([]byte{6, 2, 2, 0}, 3, 0)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			Expect(e.State().PC).To(Equal(uint64(4)))
			Expect(e.State().Acc).To(Equal(int32(3)))
		})
	})

	Describe("compilation policy", func() {
		It("should invoke the compiled routine from the second visit on", func() {
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			spy := newSpyCompiler()
			e := newEngine(prog, engine.WithCompiler(spy))

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			// Loop body interpreted once, invoked natively once; the two
			// trailing one-instruction blocks run once each.
			Expect(result.Stats.Blocks).To(Equal(uint64(4)))
			Expect(result.Stats.NativeBlocks).To(Equal(uint64(1)))
			Expect(result.Stats.InterpretedBlocks).To(Equal(uint64(3)))
			Expect(result.Stats.CompiledBlocks).To(Equal(uint64(3)))
		})

		It("should compile a block exactly when its counter reaches the threshold", func() {
			// The loop body executes five times (LC 5 -> 0).
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 5)
			spy := newSpyCompiler()
			config := engine.DefaultConfig()
			config.CompileThreshold = 3
			e := newEngine(prog, engine.WithCompiler(spy), engine.WithConfig(config))

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			// Three interpreted executions, then two native invocations.
			Expect(result.Stats.InterpretedBlocks).To(Equal(uint64(5)))
			Expect(result.Stats.NativeBlocks).To(Equal(uint64(2)))
			// Only the loop body reached the threshold.
			Expect(spy.calls).To(Equal(1))
			Expect(spy.addrs).To(Equal([]uint64{0}))
		})

		It("should fall back to permanent interpretation when compilation fails", func() {
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			fail := &failCompiler{}
			e := newEngine(prog, engine.WithCompiler(fail))

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			Expect(e.State().Acc).To(Equal(int32(36)))
			Expect(result.Stats.NativeBlocks).To(BeZero())
			Expect(result.Stats.InterpretedBlocks).To(Equal(uint64(4)))
			Expect(result.Stats.CompileFailures).To(Equal(uint64(3)))
			// The loop body ran twice but compilation was only attempted
			// once: the failure pins the entry to the interpreter.
			Expect(fail.calls).To(Equal(3))
		})

		It("should run a precompiled block natively on its first visit", func() {
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			e := newEngine(prog)

			Expect(e.Precompile(0)).To(Succeed())
			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			Expect(e.State().Acc).To(Equal(int32(36)))
			Expect(result.Stats.NativeBlocks).To(Equal(uint64(2)))
		})
	})

	Describe("faults", func() {
		It("should fault on a guest division by zero", func() {
			prog := loader.New([]byte{7, 0}, 5, 0)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeFaulted))
			Expect(result.Trap).NotTo(BeNil())
			Expect(result.Trap.Cause).To(Equal(emu.TrapDivideByZero))
			Expect(result.Trap.Addr).To(Equal(uint64(0)))
			Expect(e.RunState()).To(Equal(engine.StateFaulted))
		})

		It("should fault identically when the trap happens in compiled code", func() {
			prog := loader.New([]byte{7, 0}, 5, 0)
			e := newEngine(prog)

			Expect(e.Precompile(0)).To(Succeed())
			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeFaulted))
			Expect(result.Trap).NotTo(BeNil())
			Expect(result.Trap.Cause).To(Equal(emu.TrapDivideByZero))
			Expect(result.Stats.NativeBlocks).To(Equal(uint64(1)))
		})

		It("should fault when the PC leaves mapped memory", func() {
			// JACC to an address beyond the 64KB guest memory.
			prog := loader.New([]byte{6, 0}, 70000, 0)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeFaulted))

			var decodeErr *insts.DecodeError
			Expect(errors.As(result.Err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Kind).To(Equal(insts.DecodeOutOfBounds))
		})

		It("should fault on an invalid encoding", func() {
			prog := loader.New([]byte{2, 0xFF, 0}, 0, 0)
			e := newEngine(prog)

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeFaulted))

			var decodeErr *insts.DecodeError
			Expect(errors.As(result.Err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Kind).To(Equal(insts.DecodeInvalidEncoding))
		})

		It("should abort with a host error on an over-long block", func() {
			code := make([]byte, 16)
			for i := range code {
				code[i] = byte(insts.OpINC3A)
			}
			code[15] = byte(insts.OpHALT)

			config := engine.DefaultConfig()
			config.MaxBlockInsts = 4
			e := newEngine(loader.New(code, 0, 0), engine.WithConfig(config))

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHostError))
			Expect(result.Err).To(MatchError(translation.ErrBlockTooLarge))
		})
	})

	Describe("stop signal", func() {
		It("should stop a non-terminating guest at a block boundary", func() {
			// SETL inside the loop body keeps resetting LC, so the loop
			// never exits on its own.
			prog := loader.New([]byte{1, 2, 2, 4, 2, 2, 5}, 0, 0)
			e := newEngine(prog)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			result := e.Run(ctx)

			Expect(result.Outcome).To(Equal(engine.OutcomeStopped))
			Expect(result.Err).To(MatchError(context.DeadlineExceeded))
			// The state must sit exactly between blocks, never mid-block.
			Expect(e.State().PC).To(Equal(uint64(0)))
		})
	})

	Describe("self-modifying code", func() {
		It("should invalidate compiled code covered by a guest memory write", func() {
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
			e := newEngine(prog)

			result := e.Run(context.Background())
			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))

			_, ok := e.Cache().Lookup(0)
			Expect(ok).To(BeTrue())

			Expect(e.Memory().Write8(3, byte(insts.OpDECA))).To(Succeed())

			_, ok = e.Cache().Lookup(0)
			Expect(ok).To(BeFalse(), "the written address is inside the block at 0")
			_, ok = e.Cache().Lookup(8)
			Expect(ok).To(BeTrue(), "the block at 8 does not cover the written address")
		})
	})

	Describe("block listeners", func() {
		It("should report every executed block with its execution path", func() {
			prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)

			type seen struct {
				addr   uint64
				native bool
			}
			var events []seen
			e := newEngine(prog, engine.WithBlockListener(func(ev engine.BlockEvent) {
				events = append(events, seen{ev.Block.StartAddr(), ev.Native})
			}))

			result := e.Run(context.Background())

			Expect(result.Outcome).To(Equal(engine.OutcomeHalted))
			Expect(events).To(Equal([]seen{
				{0, false},
				{0, true},
				{7, false},
				{8, false},
			}))
		})
	})
})

var _ = Describe("Config", func() {
	It("should validate its fields", func() {
		config := engine.DefaultConfig()
		Expect(config.Validate()).To(Succeed())

		config.CompileThreshold = 0
		Expect(config.Validate()).NotTo(Succeed())

		config = engine.DefaultConfig()
		config.MaxBlockInsts = -1
		Expect(config.Validate()).NotTo(Succeed())

		config = engine.DefaultConfig()
		config.CacheSize = 0
		Expect(config.Validate()).NotTo(Succeed())
	})
})
