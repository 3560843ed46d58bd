// Command pasm assembles pipesim source into a flat big-endian binary.
//
// Usage:
//
//	pasm [-o out.bin] [-l] prog.s
//
// Without -o the output is written next to the source with a .bin extension.
// With -l the program listing is printed to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/loader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pasm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outPath := fs.String("o", "", "Output file (default: source name with .bin)")
	listing := fs.Bool("l", false, "Print the program listing")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pasm [-o out.bin] [-l] <program.s>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	src := fs.Arg(0)
	words, err := asm.AssembleFile(src)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *outPath == "" {
		*outPath = strings.TrimSuffix(src, filepath.Ext(src)) + ".bin"
	}

	if err := writeFile(*outPath, words); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *listing {
		prog := &loader.Program{Words: words}
		for _, line := range prog.Listing() {
			fmt.Fprintln(stdout, line)
		}
	}

	return 0
}

func writeFile(path string, words []uint32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return asm.WriteBinary(f, words)
}
