// Package main provides a profiling wrapper for pipesim to identify performance bottlenecks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/loader"
	"github.com/sarchlab/pipesim/timing/config"
	"github.com/sarchlab/pipesim/timing/core"
	"github.com/sarchlab/pipesim/timing/memory"
)

var (
	emulate    = flag.Bool("emu", false, "Profile the functional model instead of the pipeline")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxCycles  = flag.Uint64("max-cycles", 1000000, "max cycles, or instructions with -emu (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.s|program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s (%d words)\n", programPath, prog.Len())

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()

	var instrCount, cycles uint64
	if *emulate {
		instrCount, err = runEmulationProfile(prog)
	} else {
		instrCount, cycles, err = runTimingProfile(ctx, prog)
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, ferr := os.Create(*memProfile)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", ferr)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if werr := pprof.WriteHeapProfile(f); werr != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", werr)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	if err != nil {
		fmt.Printf("Stopped: %v\n", err)
	}
	fmt.Printf("Instructions executed: %d\n", instrCount)
	if cycles > 0 {
		fmt.Printf("Cycles simulated: %d\n", cycles)
		fmt.Printf("Cycles/second: %.0f\n", float64(cycles)/elapsed.Seconds())
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runEmulationProfile runs the program on the functional model.
func runEmulationProfile(prog *loader.Program) (uint64, error) {
	cfg := config.Default()
	store := memory.NewStore(memory.Config{Words: cfg.MemoryWords, LineWords: cfg.WordsPerLine})

	emulator := emu.NewEmulator(store, emu.WithMaxInstructions(*maxCycles))
	if err := emulator.LoadProgram(prog.Words); err != nil {
		return 0, err
	}

	err := emulator.Run()
	return emulator.InstructionCount(), err
}

// runTimingProfile runs the program on the pipeline until it halts, the
// cycle limit is hit or ctx expires.
func runTimingProfile(ctx context.Context, prog *loader.Program) (uint64, uint64, error) {
	c, err := core.NewCore(config.Default(), core.WithMaxCycles(*maxCycles))
	if err != nil {
		return 0, 0, err
	}
	if err := c.LoadProgram(prog.Words); err != nil {
		return 0, 0, err
	}

	err = c.Run(ctx)
	stats := c.Stats()

	return stats.Instructions, stats.Cycles, err
}
