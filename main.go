// Package main provides the entry point for pipesim.
// pipesim is a cycle-accurate five-stage pipelined CPU simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/pipesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("pipesim - Five-Stage Pipeline CPU Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: pipesim [options] <program.s|program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to simulator configuration JSON file")
	fmt.Println("  -max-cycles  Stop after this many cycles")
	fmt.Println("  -trace       Print the pipeline stages every cycle")
	fmt.Println("  -emu         Run the functional model")
	fmt.Println("  -v           Verbose output")
	fmt.Println("  -log-json    Log in JSON format")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/pipesim' for the simulator and")
	fmt.Println("'go run ./cmd/pasm' to assemble programs.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/pipesim' instead.")
	}
}
