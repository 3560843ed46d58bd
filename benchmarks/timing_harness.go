// Package benchmarks provides validation programs and a timing harness for
// the pipesim core.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/timing/config"
	"github.com/sarchlab/pipesim/timing/core"
	"github.com/sarchlab/pipesim/timing/memory"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	StallCycles   uint64 `json:"stall_cycles"`
	DataHazards   uint64 `json:"data_hazards"`
	MemStalls     uint64 `json:"mem_stalls"`
	FetchStalls   uint64 `json:"fetch_stalls"`
	PortConflicts uint64 `json:"port_conflicts"`

	// PipelineFlushes is the number of taken control transfers
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	CacheHits   uint64  `json:"cache_hits"`
	CacheMisses uint64  `json:"cache_misses"`
	HitRate     float64 `json:"hit_rate"`

	// Validated is true when the final registers match both the expected
	// values and the functional model.
	Validated bool `json:"validated"`

	// Error describes a failed run or validation
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the assembly program
	Source string

	// Setup places input data in memory after the program is loaded
	Setup func(mem emu.WordMemory) error

	// Expected maps registers to their values at halt
	Expected map[uint8]uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Config is the simulator configuration (default: config.Default())
	Config *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Config:  config.Default(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Config == nil {
		config.Config = DefaultConfig().Config
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d cycles, validated=%v\n",
				result.Name, result.SimulatedCycles, result.Validated)
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on the pipeline and on the
// functional model and compares the two.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	words, err := asm.Assemble(strings.NewReader(bench.Source))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	c, err := core.NewCore(h.config.Config)
	if err == nil {
		err = c.LoadProgram(words)
	}
	if err == nil && bench.Setup != nil {
		err = bench.Setup(c.MemorySystem().Store())
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	runErr := c.Run(context.Background())
	result.WallTime = time.Since(start)

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.DataHazards = stats.DataHazards
	result.MemStalls = stats.MemStalls
	result.FetchStalls = stats.FetchStalls
	result.PortConflicts = stats.PortConflicts
	result.PipelineFlushes = stats.Flushes
	result.CacheHits = stats.Memory.Hits
	result.CacheMisses = stats.Memory.Misses
	result.HitRate = stats.Memory.HitRate()

	if runErr != nil {
		result.Error = runErr.Error()
		return result
	}

	if err := h.validate(bench, words, c.RegFile()); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Validated = true

	return result
}

// validate checks the final registers against the expected values and
// against the functional model run on the same program.
func (h *Harness) validate(bench Benchmark, words []uint32, got *emu.RegFile) error {
	for reg, want := range bench.Expected {
		if got.X[reg] != want {
			return fmt.Errorf("R%d = %d, want %d", reg, got.X[reg], want)
		}
	}

	cfg := h.config.Config
	store := memory.NewStore(memory.Config{Words: cfg.MemoryWords, LineWords: cfg.WordsPerLine})
	ref := emu.NewEmulator(store)
	if err := ref.LoadProgram(words); err != nil {
		return err
	}
	if bench.Setup != nil {
		if err := bench.Setup(store); err != nil {
			return err
		}
	}
	if err := ref.Run(); err != nil {
		return fmt.Errorf("functional model: %w", err)
	}

	want := ref.RegFile()
	for i := range want.X {
		if got.X[i] != want.X[i] {
			return fmt.Errorf("R%d = %d, functional model has %d", i, got.X[i], want.X[i])
		}
	}
	if got.Flags != want.Flags {
		return fmt.Errorf("flags %+v, functional model has %+v", got.Flags, want.Flags)
	}

	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== pipesim Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Validated: %v\n", r.Validated)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Hazards:         %d\n", r.DataHazards)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Stalls:           %d\n", r.MemStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Fetch Stalls:         %d\n", r.FetchStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Port Conflicts:       %d\n", r.PortConflicts)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:     %d\n", r.CacheHits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:   %d\n", r.CacheMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate: %.1f%%\n", 100*r.HitRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,data_hazards,mem_stalls,fetch_stalls,port_conflicts,flushes,cache_hits,cache_misses,validated")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.DataHazards,
			r.MemStalls,
			r.FetchStalls,
			r.PortConflicts,
			r.PipelineFlushes,
			r.CacheHits,
			r.CacheMisses,
			r.Validated,
		)
	}
}

// BenchmarkReport is the JSON document written by PrintJSON.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata describes the run.
type ReportMetadata struct {
	Timestamp string         `json:"timestamp"`
	Config    *config.Config `json:"config"`
}

// ReportSummary aggregates all results.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Validated is the number of benchmarks that matched the functional model
	Validated int `json:"validated"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if r.Validated {
			summary.Validated++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.Config,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
