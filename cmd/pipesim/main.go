// Package main provides the entry point for pipesim.
// pipesim runs a program on the cycle-accurate five-stage pipeline, or on the
// functional model with -emu, and prints the final machine state.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/loader"
	"github.com/sarchlab/pipesim/timing/config"
	"github.com/sarchlab/pipesim/timing/core"
	"github.com/sarchlab/pipesim/timing/memory"
	"github.com/sarchlab/pipesim/timing/pipeline"
)

type options struct {
	configPath string
	maxCycles  uint64
	trace      bool
	verbose    bool
	logJSON    bool
	emulate    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options

	fs := flag.NewFlagSet("pipesim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to simulator configuration JSON file")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = unlimited)")
	fs.BoolVar(&opts.trace, "trace", false, "Print the pipeline stages every cycle")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Log in JSON format")
	fs.BoolVar(&opts.emulate, "emu", false, "Run the functional model instead of the pipeline")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pipesim [options] <program.s|program.bin>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	programPath := fs.Arg(0)
	logger := newLogger(stderr, opts)

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	if opts.verbose {
		fmt.Fprintf(stdout, "Loaded: %s (%d words)\n", programPath, prog.Len())
	}

	if opts.emulate {
		err = runEmulation(stdout, cfg, prog, opts)
	} else {
		err = runTiming(ctx, stdout, cfg, prog, opts, logger)
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, opts options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if opts.logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// runEmulation runs the program on the functional model.
func runEmulation(w io.Writer, cfg *config.Config, prog *loader.Program, opts options) error {
	if err := prog.Validate(cfg.MaxProgramSize); err != nil {
		return err
	}

	store := memory.NewStore(memory.Config{Words: cfg.MemoryWords, LineWords: cfg.WordsPerLine})
	emulator := emu.NewEmulator(store, emu.WithMaxInstructions(opts.maxCycles))
	if err := emulator.LoadProgram(prog.Words); err != nil {
		return err
	}

	err := emulator.Run()

	printRegisters(w, emulator.RegFile())
	fmt.Fprintf(w, "\nInstructions executed: %d\n", emulator.InstructionCount())

	return err
}

// runTiming runs the program on the pipeline.
func runTiming(
	ctx context.Context,
	w io.Writer,
	cfg *config.Config,
	prog *loader.Program,
	opts options,
	logger logrus.FieldLogger,
) error {
	c, err := core.NewCore(cfg, core.WithLogger(logger), core.WithMaxCycles(opts.maxCycles))
	if err != nil {
		return err
	}
	if err := c.LoadProgram(prog.Words); err != nil {
		return err
	}

	if opts.trace {
		err = runTraced(ctx, w, c, opts.maxCycles)
	} else {
		err = c.Run(ctx)
	}

	printRegisters(w, c.RegFile())
	printStats(w, c.Stats())

	return err
}

// runTraced steps the core one cycle at a time, printing the stage slots
// after each cycle.
func runTraced(ctx context.Context, w io.Writer, c *core.Core, maxCycles uint64) error {
	for !c.Halted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxCycles > 0 && c.Stats().Cycles >= maxCycles {
			return fmt.Errorf("%w: %d", core.ErrCycleLimit, maxCycles)
		}

		c.Step()

		p := c.Pipeline()
		fmt.Fprintf(w, "%5d |", c.Stats().Cycles)
		for st := pipeline.StageFetch; st < pipeline.NumStages; st++ {
			fmt.Fprintf(w, " %s %-22s|", st, p.Stage(st))
		}
		fmt.Fprintln(w)
	}

	return c.Err()
}

func printRegisters(w io.Writer, regFile *emu.RegFile) {
	fmt.Fprintf(w, "\nRegisters:\n")
	for i, v := range regFile.X {
		fmt.Fprintf(w, "  R%02d = %-11d", i, int32(v))
		if i%4 == 3 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "Flags: Z=%v N=%v\n", regFile.Flags.Z, regFile.Flags.N)
}

func printStats(w io.Writer, stats core.Stats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Stalls:         %d\n", stats.Stalls)
	fmt.Fprintf(w, "  Data hazards:   %d\n", stats.DataHazards)
	fmt.Fprintf(w, "  Memory stalls:  %d\n", stats.MemStalls)
	fmt.Fprintf(w, "  Fetch stalls:   %d\n", stats.FetchStalls)
	fmt.Fprintf(w, "  Port conflicts: %d\n", stats.PortConflicts)
	fmt.Fprintf(w, "  Flushes:        %d\n", stats.Flushes)
	fmt.Fprintf(w, "  Squashed:       %d\n", stats.Squashed)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Cache:\n")
	fmt.Fprintf(w, "  Reads:    %d\n", stats.Memory.Reads)
	fmt.Fprintf(w, "  Writes:   %d\n", stats.Memory.Writes)
	fmt.Fprintf(w, "  Hits:     %d\n", stats.Memory.Hits)
	fmt.Fprintf(w, "  Misses:   %d\n", stats.Memory.Misses)
	fmt.Fprintf(w, "  Hit rate: %.1f%%\n", 100*stats.Memory.HitRate())
}
