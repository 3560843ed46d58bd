// Command benchmark runs the pipesim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-json    Output results as a JSON report
//	-core    Run only the loop, matrix and branch benchmarks
//	-config  Path to a simulator configuration JSON file
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every benchmark is also run on the functional model; a result is marked
// validated only when the final registers agree.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/pipesim/benchmarks"
	"github.com/sarchlab/pipesim/timing/config"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Path to simulator configuration JSON file")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	harnessConfig := benchmarks.DefaultConfig()
	harnessConfig.Output = os.Stdout
	harnessConfig.Verbose = *verbose
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		harnessConfig.Config = cfg
	}

	harness := benchmarks.NewHarness(harnessConfig)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		cfg := harnessConfig.Config
		fmt.Println("pipesim Timing Benchmark Harness")
		fmt.Println("================================")
		fmt.Printf("Cache: %d lines x %d words, hit latency %d\n",
			cfg.CacheLines, cfg.WordsPerLine, cfg.CacheHitLatency)
		fmt.Printf("Memory: %d words, latency %d\n", cfg.MemoryWords, cfg.MemoryLatency)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Validated {
			os.Exit(1)
		}
	}
}
