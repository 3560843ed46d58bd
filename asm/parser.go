package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/pipesim/insts"
)

// sourceLine is one instruction left after pass 1.
type sourceLine struct {
	num      int
	text     string
	addr     uint32
	mnemonic string
	operands []string
}

type assembler struct {
	labels  map[string]uint32
	lines   []sourceLine
	encoder *insts.Encoder
}

func newAssembler() *assembler {
	return &assembler{
		labels:  make(map[string]uint32),
		encoder: insts.NewEncoder(),
	}
}

// scan is pass 1. It strips comments, records labels and splits the
// remaining instructions into tokens.
func (a *assembler) scan(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	num := 0
	var addr uint32

	for scanner.Scan() {
		num++
		raw := scanner.Text()
		tokens := tokenize(stripComment(raw))

		for len(tokens) > 0 && strings.HasSuffix(tokens[0], ":") {
			name := strings.TrimSuffix(tokens[0], ":")
			if !isIdent(name) {
				return &Error{Line: num, Text: raw, Err: fmt.Errorf("%w: bad label %q", ErrSyntax, name)}
			}
			if _, ok := a.labels[name]; ok {
				return &Error{Line: num, Text: raw, Err: fmt.Errorf("%w: %s", ErrDuplicateLabel, name)}
			}
			a.labels[name] = addr
			tokens = tokens[1:]
		}

		if len(tokens) == 0 {
			continue
		}

		a.lines = append(a.lines, sourceLine{
			num:      num,
			text:     strings.TrimSpace(raw),
			addr:     addr,
			mnemonic: strings.ToUpper(tokens[0]),
			operands: tokens[1:],
		})
		addr++
	}

	return scanner.Err()
}

// encode is pass 2.
func (a *assembler) encode() ([]uint32, error) {
	words := make([]uint32, 0, len(a.lines))

	for _, l := range a.lines {
		inst, err := a.parse(l)
		if err == nil {
			var w uint32
			w, err = a.encoder.Encode(inst)
			words = append(words, w)
		}
		if err != nil {
			return nil, &Error{Line: l.num, Text: l.text, Err: err}
		}
	}

	return words, nil
}

func (a *assembler) parse(l sourceLine) (*insts.Instruction, error) {
	op, ok := insts.LookupOp(l.mnemonic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMnemonic, l.mnemonic)
	}

	inst := &insts.Instruction{Op: op}
	ops := l.operands
	var err error

	switch op.Format() {
	case insts.FormatRegReg:
		err = want(ops, 3, 3)
		regs(&err, ops, &inst.Rd, &inst.Rn, &inst.Rm)
	case insts.FormatRegImm:
		err = want(ops, 3, 3)
		regs(&err, ops, &inst.Rd, &inst.Rn)
		if err == nil {
			inst.Imm, err = a.value(ops[2], l.addr, false)
		}
	case insts.FormatCompare:
		err = want(ops, 2, 2)
		regs(&err, ops, &inst.Rn, &inst.Rm)
	case insts.FormatMove:
		err = want(ops, 2, 2)
		regs(&err, ops, &inst.Rd, &inst.Rn)
	case insts.FormatLoadImm, insts.FormatShift:
		err = want(ops, 2, 2)
		regs(&err, ops, &inst.Rd)
		if err == nil {
			inst.Imm, err = a.value(ops[1], l.addr, false)
		}
	case insts.FormatMemory:
		err = want(ops, 2, 3)
		regs(&err, ops, &inst.Rd, &inst.Rn)
		if err == nil && len(ops) == 3 {
			inst.Imm, err = a.value(ops[2], l.addr, false)
		}
	case insts.FormatJumpReg:
		err = want(ops, 1, 1)
		regs(&err, ops, &inst.Rn)
	case insts.FormatBranchRel:
		err = want(ops, 1, 1)
		if err == nil {
			inst.Imm, err = a.value(ops[0], l.addr, true)
		}
	case insts.FormatBranchReg:
		err = want(ops, 2, 2)
		regs(&err, ops, &inst.Rn)
		if err == nil {
			inst.Imm, err = a.value(ops[1], l.addr, false)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inst, nil
}

func want(ops []string, lo, hi int) error {
	if len(ops) < lo || len(ops) > hi {
		if lo == hi {
			return fmt.Errorf("%w: want %d operands, got %d", ErrSyntax, lo, len(ops))
		}
		return fmt.Errorf("%w: want %d to %d operands, got %d", ErrSyntax, lo, hi, len(ops))
	}
	return nil
}

// regs parses the leading operands as registers into dst, unless *err is
// already set.
func regs(err *error, ops []string, dst ...*uint8) {
	for i, d := range dst {
		if *err != nil {
			return
		}
		*d, *err = register(ops[i])
	}
}

func register(tok string) (uint8, error) {
	if len(tok) < 2 || (tok[0] != 'R' && tok[0] != 'r') {
		return 0, fmt.Errorf("%w: expected register, got %q", ErrSyntax, tok)
	}

	n, err := strconv.ParseUint(tok[1:], 10, 8)
	if err != nil || n >= insts.NumRegisters {
		return 0, fmt.Errorf("%w: register %q", insts.ErrInvalidOperand, tok)
	}
	return uint8(n), nil
}

// value resolves a numeric or label operand. Labels become absolute word
// addresses, or offsets from pc+1 when relative is set.
func (a *assembler) value(tok string, pc uint32, relative bool) (int32, error) {
	if strings.HasPrefix(tok, "#") || isNumberStart(tok) {
		return number(strings.TrimPrefix(tok, "#"))
	}

	if !isIdent(tok) {
		return 0, fmt.Errorf("%w: bad operand %q", ErrSyntax, tok)
	}

	addr, ok := a.labels[tok]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefinedLabel, tok)
	}
	if relative {
		return int32(addr) - int32(pc+1), nil
	}
	return int32(addr), nil
}

// number parses a decimal or 0x-prefixed hex literal with an optional sign.
func number(s string) (int32, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}

	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrSyntax, s)
	}
	if neg {
		n = -n
	}
	if n < -1<<31 || n > 1<<31-1 {
		return 0, fmt.Errorf("%w: %d does not fit in 32 bits", insts.ErrInvalidOperand, n)
	}
	return int32(n), nil
}

func isNumberStart(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '-' || c == '+' || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// stripComment removes a trailing "//" comment, or a "#" comment that is
// not an immediate marker.
func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}

	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i+1 < len(line) && isNumberStart(line[i+1:]) {
			continue
		}
		return line[:i]
	}
	return line
}

func tokenize(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ',', '[', ']', ' ', '\t', '\r':
			return true
		}
		return false
	})
}
