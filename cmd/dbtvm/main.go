// Package main provides the dbtvm command-line driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sarchlab/dbtvm/engine"
	"github.com/sarchlab/dbtvm/loader"
	"github.com/sarchlab/dbtvm/profile"
	"github.com/sarchlab/dbtvm/timing"
	"github.com/sarchlab/dbtvm/timing/icache"
	"github.com/sarchlab/dbtvm/timing/latency"
)

var (
	threshold    = flag.Uint64("threshold", 1, "Interpreted executions before a block is compiled")
	maxBlock     = flag.Int("max-block", 0, "Maximum instructions per basic block (0 = default)")
	cacheSize    = flag.Int("cache", 0, "Translation cache capacity in blocks (0 = default)")
	configPath   = flag.String("config", "", "Path to engine configuration JSON file")
	timingMode   = flag.Bool("timing", false, "Enable the block-granularity timing model")
	timingConfig = flag.String("timing-config", "", "Path to timing cost JSON file")
	profilePath  = flag.String("profile", "", "Path to persistent block profile store")
	verbose      = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: dbtvm [options] <program.acc>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0)))
}

func run(programPath string) int {
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Code: %d bytes, entry %#04x, ACC=%d, LC=%d\n",
			len(prog.Code), prog.EntryPoint, prog.InitialAcc, prog.InitialLC)
	}

	config, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
		return 1
	}

	opts := []engine.Option{
		engine.WithConfig(config),
		engine.WithLogger(logger),
	}

	var model *timing.Model
	if *timingMode {
		table := latency.NewTable()
		if *timingConfig != "" {
			tc, err := latency.LoadConfig(*timingConfig)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
				return 1
			}
			table = latency.NewTableWithConfig(tc)
		}
		model = timing.NewModel(table, icache.New(icache.DefaultConfig()))
		opts = append(opts, engine.WithBlockListener(model.Listener()))
	}

	var store *profile.Store
	var collector *profile.Collector
	if *profilePath != "" {
		store, err = profile.Open(*profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening profile store: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()

		collector = profile.NewCollector()
		opts = append(opts, engine.WithBlockListener(collector.Listener()))
	}

	e, err := engine.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		return 1
	}

	if err := e.LoadProgram(prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program into memory: %v\n", err)
		return 1
	}

	if store != nil {
		warmStart(e, store, config.CompileThreshold, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := e.Run(ctx)

	if collector != nil {
		if err := collector.FlushTo(store); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving profile: %v\n", err)
		}
	}

	return report(e, result, model)
}

// buildConfig merges the config file with command-line overrides.
func buildConfig() (*engine.Config, error) {
	config := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engine.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if *threshold > 0 {
		config.CompileThreshold = *threshold
	}
	if *maxBlock > 0 {
		config.MaxBlockInsts = *maxBlock
	}
	if *cacheSize > 0 {
		config.CacheSize = *cacheSize
	}

	return config, config.Validate()
}

// warmStart precompiles blocks that were hot in previous runs.
func warmStart(e *engine.Engine, store *profile.Store, minCount uint64, logger *slog.Logger) {
	hot, err := store.Hot(minCount)
	if err != nil {
		logger.Warn("profile warm start failed", "err", err)
		return
	}
	for _, addr := range hot {
		if err := e.Precompile(addr); err != nil {
			logger.Debug("skipping stale profile entry", "addr", addr, "err", err)
		}
	}
	if len(hot) > 0 {
		logger.Info("warm start", "precompiled", len(hot))
	}
}

func report(e *engine.Engine, result engine.Result, model *timing.Model) int {
	state := e.State()
	stats := result.Stats

	switch result.Outcome {
	case engine.OutcomeHalted:
	case engine.OutcomeFaulted:
		if result.Trap != nil {
			fmt.Fprintf(os.Stderr, "Guest faulted: %v\n", result.Trap)
		} else {
			fmt.Fprintf(os.Stderr, "Guest faulted: %v\n", result.Err)
		}
	case engine.OutcomeStopped:
		fmt.Fprintf(os.Stderr, "Stopped: %v\n", result.Err)
	case engine.OutcomeHostError:
		fmt.Fprintf(os.Stderr, "Host error: %v\n", result.Err)
	}

	fmt.Printf("Final state: %s\n", state)

	if *verbose || *timingMode {
		fmt.Printf("Blocks executed: %d (%d interpreted, %d native)\n",
			stats.Blocks, stats.InterpretedBlocks, stats.NativeBlocks)
		fmt.Printf("Instructions executed: %d\n", stats.Instructions)
		fmt.Printf("Blocks compiled: %d (%d rejected)\n",
			stats.CompiledBlocks, stats.CompileFailures)
	}

	if model != nil {
		ts := model.Stats()
		fmt.Printf("Estimated cycles: %d\n", ts.Cycles)
		fmt.Printf("I-cache: %d fetches, %d hits, %d misses\n",
			ts.Fetch.Fetches, ts.Fetch.Hits, ts.Fetch.Misses)
	}

	switch result.Outcome {
	case engine.OutcomeHalted:
		return 0
	case engine.OutcomeStopped:
		return 130
	default:
		return 1
	}
}
