// Package engine provides the dispatch loop that stitches interpreted and
// compiled execution of a guest program together.
//
// The engine is the system's single synchronization point: guest state and
// translation-cache entries are only touched from inside a dispatch step.
// One step executes exactly one basic block, either on the interpreter or
// through the block's compiled routine; blocks are the atomic unit of
// scheduling and the stop signal is only honored between them.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sarchlab/dbtvm/emu"
	"github.com/sarchlab/dbtvm/insts"
	"github.com/sarchlab/dbtvm/jit"
	"github.com/sarchlab/dbtvm/loader"
	"github.com/sarchlab/dbtvm/translation"
)

// BlockEvent describes one executed block. Listeners receive it after the
// block has run to completion.
type BlockEvent struct {
	// Block is the executed basic block.
	Block *translation.BasicBlock
	// Native is true when the block ran as a compiled routine.
	Native bool
}

// BlockListener observes block executions, e.g. for timing models or
// profilers. Listeners run synchronously on the dispatch thread and must not
// touch guest state.
type BlockListener func(BlockEvent)

// Engine drives guest execution: per step it looks the current PC up in the
// translation cache, interprets or invokes, applies the compilation policy,
// and advances.
type Engine struct {
	config   *Config
	state    *emu.State
	memory   *emu.Memory
	builder  *translation.Builder
	cache    *translation.Cache
	interp   *emu.Interpreter
	compiler jit.Compiler
	logger   *slog.Logger

	listeners []BlockListener

	runState RunState
	stats    Stats
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithCompiler sets the compilation backend. The default is jit.GoCompiler.
func WithCompiler(c jit.Compiler) Option {
	return func(e *Engine) {
		e.compiler = c
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithBlockListener registers a block-execution observer.
func WithBlockListener(l BlockListener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

// New creates an engine with fresh guest state and memory.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		state:  &emu.State{},
		memory: emu.NewMemory(),
		interp: emu.NewInterpreter(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.config == nil {
		e.config = DefaultConfig()
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.compiler == nil {
		e.compiler = jit.NewGoCompiler()
	}

	cache, err := translation.NewCache(e.config.CacheSize)
	if err != nil {
		return nil, err
	}
	e.cache = cache

	decoder := insts.NewDecoder(e.memory)
	e.builder = translation.NewBuilder(decoder, e.config.MaxBlockInsts)

	// Self-modifying code: any guest write evicts compiled code covering the
	// written address.
	e.memory.SetWriteObserver(func(addr uint64) {
		e.cache.InvalidateCovering(addr)
	})

	return e, nil
}

// LoadProgram loads a program image into guest memory and initializes the
// registers.
func (e *Engine) LoadProgram(p *loader.Program) error {
	if err := e.memory.LoadImage(p.Code); err != nil {
		return err
	}
	e.state.Acc = p.InitialAcc
	e.state.LC = p.InitialLC
	e.state.PC = p.EntryPoint
	return nil
}

// State returns the guest state.
func (e *Engine) State() *emu.State {
	return e.state
}

// Memory returns the guest memory.
func (e *Engine) Memory() *emu.Memory {
	return e.memory
}

// Cache returns the translation cache.
func (e *Engine) Cache() *translation.Cache {
	return e.cache
}

// RunState returns the dispatcher's current state.
func (e *Engine) RunState() RunState {
	return e.runState
}

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Precompile builds and compiles the block at addr ahead of execution. Used
// for warm starts from a recorded profile. Compile failures are recorded on
// the entry and not returned: the block simply stays interpreted.
func (e *Engine) Precompile(addr uint64) error {
	entry, err := e.cache.GetOrCreate(addr, e.builder)
	if err != nil {
		return err
	}
	if entry.Routine() != nil || entry.CompileDisabled() {
		return nil
	}
	e.compile(entry)
	return nil
}

// Run executes the guest until it halts, faults, or the context is
// canceled. The stop signal is checked at block boundaries only, so a
// partially executed block never corrupts guest state.
func (e *Engine) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if e.state.Halted {
			e.runState = StateHalted
			e.logger.Info("guest halted", "pc", e.state.PC, "blocks", e.stats.Blocks)
			return Result{Outcome: OutcomeHalted, Stats: e.stats}
		}

		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeStopped, Err: ctx.Err(), Stats: e.stats}
		default:
		}

		if res, done := e.step(); done {
			return res
		}
	}
}

// step executes one basic block and returns a final result when the run is
// over.
func (e *Engine) step() (Result, bool) {
	pc := e.state.PC

	entry, err := e.cache.GetOrCreate(pc, e.builder)
	if err != nil {
		return e.dispatchError(err)
	}

	block := entry.Block()

	if routine := entry.Routine(); routine != nil {
		e.runState = StateInvoking
		routine(e.state)
		e.stats.NativeBlocks++
		e.finishBlock(block, true)

		if trap := e.state.PendingTrap(); trap != nil {
			e.runState = StateFaulted
			e.logger.Warn("guest trapped in compiled code", "err", trap)
			return Result{Outcome: OutcomeFaulted, Trap: trap, Stats: e.stats}, true
		}
		return Result{}, false
	}

	e.runState = StateInterpreting
	runErr := e.interp.Run(block.Instructions(), e.state)
	e.stats.InterpretedBlocks++
	e.finishBlock(block, false)

	if runErr != nil {
		var trap *emu.GuestTrap
		if errors.As(runErr, &trap) {
			e.runState = StateFaulted
			e.logger.Warn("guest trapped", "err", trap)
			return Result{Outcome: OutcomeFaulted, Trap: trap, Stats: e.stats}, true
		}
		// Unsupported instruction reaching the interpreter is a host bug:
		// the decoder admitted something the interpreter has no semantics
		// for.
		e.runState = StateFaulted
		return Result{Outcome: OutcomeHostError, Err: runErr, Stats: e.stats}, true
	}

	count := e.cache.RecordExecution(entry)
	if count >= e.config.CompileThreshold && !entry.CompileDisabled() {
		e.compile(entry)
	}

	e.logger.Debug("state", "pc", e.state.PC, "acc", e.state.Acc, "lc", e.state.LC)
	return Result{}, false
}

// compile requests compilation for an entry and installs the result.
// Compile failures are recoverable: the entry is pinned to the interpreter.
func (e *Engine) compile(entry *translation.Entry) {
	block := entry.Block()

	routine, err := e.compiler.Compile(block)
	if err != nil {
		e.stats.CompileFailures++
		entry.DisableCompile()
		e.logger.Warn("block not compilable, staying on interpreter",
			"block", block.StartAddr(), "err", err)
		return
	}

	if err := e.cache.InstallRoutine(entry, routine); err != nil {
		// Double-install would mean the trigger policy fired twice for one
		// entry; flag it loudly but keep the existing routine.
		e.logger.Error("routine install rejected", "block", block.StartAddr(), "err", err)
		return
	}

	e.stats.CompiledBlocks++
	e.logger.Debug("block compiled", "block", block.StartAddr(), "insts", block.Len())
}

func (e *Engine) finishBlock(block *translation.BasicBlock, native bool) {
	e.stats.Blocks++
	e.stats.Instructions += uint64(block.Len())
	if len(e.listeners) > 0 {
		ev := BlockEvent{Block: block, Native: native}
		for _, l := range e.listeners {
			l(ev)
		}
	}
}

// dispatchError classifies a block-construction failure: decode errors are
// guest-visible faults, anything else (over-long block) is a host error.
func (e *Engine) dispatchError(err error) (Result, bool) {
	e.runState = StateFaulted

	var decodeErr *insts.DecodeError
	if errors.As(err, &decodeErr) {
		e.logger.Warn("decode fault", "err", decodeErr)
		return Result{Outcome: OutcomeFaulted, Err: err, Stats: e.stats}, true
	}

	e.logger.Error("dispatch failed", "err", err)
	return Result{Outcome: OutcomeHostError, Err: err, Stats: e.stats}, true
}
