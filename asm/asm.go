// Package asm implements a two-pass assembler for the pipesim instruction
// set.
//
// Source is line oriented. Each line holds an optional "label:" followed by
// an optional instruction:
//
//	loop:   ADDI R2, R2, #3     // body
//	        SUBIS R1, R1, #1
//	        BEQ done
//	        JMP R3
//	done:   STR R2, [R0, #100]
//
// Commas, brackets and whitespace all separate tokens. "//" starts a
// comment; so does "#" unless a digit or sign follows it.
package asm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/pipesim/insts"
)

// Assembly errors. Operand range errors wrap insts.ErrInvalidOperand.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrUndefinedLabel  = errors.New("undefined label")
)

// Error locates an assembly error in the source.
type Error struct {
	Line int
	Text string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Assemble reads source from r and returns the encoded words. Assembly stops
// at the first error, which is an *Error.
func Assemble(r io.Reader) ([]uint32, error) {
	a := newAssembler()

	if err := a.scan(r); err != nil {
		return nil, err
	}

	return a.encode()
}

// AssembleFile assembles the source file at path.
func AssembleFile(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	words, err := Assemble(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// WriteBinary writes words to w as big-endian 32-bit values.
func WriteBinary(w io.Writer, words []uint32) error {
	return binary.Write(w, binary.BigEndian, words)
}

// Disassemble decodes words back into source lines.
func Disassemble(words []uint32) ([]string, error) {
	decoder := insts.NewDecoder()
	lines := make([]string, len(words))
	for i, w := range words {
		inst, err := decoder.Decode(w)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		lines[i] = inst.String()
	}
	return lines, nil
}
