// Package loader reads programs for the pipesim core from assembly source or
// flat big-endian binaries.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/insts"
)

// ErrProgramTooLarge is returned when a program does not fit the configured
// maximum size.
var ErrProgramTooLarge = errors.New("program too large")

// ErrTruncated is returned when a binary is not a whole number of words.
var ErrTruncated = errors.New("binary is not a multiple of 4 bytes")

// Program represents a loaded program ready for execution. Word i lives at
// address i.
type Program struct {
	// Words holds the instruction words.
	Words []uint32
}

// Len returns the number of words.
func (p *Program) Len() int {
	return len(p.Words)
}

// Validate checks that the program holds at most max words.
func (p *Program) Validate(max int) error {
	if len(p.Words) > max {
		return fmt.Errorf("%w: %d words, limit %d", ErrProgramTooLarge, len(p.Words), max)
	}
	return nil
}

// Listing disassembles the program, one line per word. Words that do not
// decode are shown raw.
func (p *Program) Listing() []string {
	decoder := insts.NewDecoder()
	lines := make([]string, len(p.Words))
	for i, w := range p.Words {
		inst, err := decoder.Decode(w)
		if err != nil {
			lines[i] = fmt.Sprintf("%4d: 0x%08X  ???", i, w)
			continue
		}
		lines[i] = fmt.Sprintf("%4d: 0x%08X  %s", i, w, inst)
	}
	return lines
}

// IsSource reports whether path names an assembly source file.
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return true
	}
	return false
}

// Load reads the program at path. Files ending in .s or .asm are assembled;
// anything else is read as a flat binary.
func Load(path string) (*Program, error) {
	if IsSource(path) {
		words, err := asm.AssembleFile(path)
		if err != nil {
			return nil, err
		}
		return &Program{Words: words}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := LoadBinary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// LoadBinary reads big-endian 32-bit words from r until EOF.
func LoadBinary(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(data[4*i:])
	}
	return &Program{Words: words}, nil
}
