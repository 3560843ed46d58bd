package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pipesim/insts"
)

// ErrDivideByZero is returned by DIV, DIVI, MOD and MODI with a zero divisor.
var ErrDivideByZero = errors.New("divide by zero")

// ALU implements the arithmetic family. It holds no state; the caller reads
// the operands and commits the result.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute returns the result of an arithmetic instruction given the values of
// Rn and Rm. Immediates come from inst.Imm. For CMP the result is Rn - Rm and
// is only used for the flags.
func (a *ALU) Compute(inst *insts.Instruction, rn, rm uint32) (uint32, error) {
	imm := uint32(inst.Imm)

	switch inst.Op {
	case insts.OpADD, insts.OpADDS:
		return rn + rm, nil
	case insts.OpADDI, insts.OpADDIS:
		return rn + imm, nil
	case insts.OpSUB, insts.OpSUBS, insts.OpCMP:
		return rn - rm, nil
	case insts.OpSUBI, insts.OpSUBIS:
		return rn - imm, nil
	case insts.OpMUL:
		return rn * rm, nil
	case insts.OpMULI:
		return rn * imm, nil
	case insts.OpDIV, insts.OpMOD:
		return a.divide(inst.Op, rn, rm)
	case insts.OpDIVI, insts.OpMODI:
		return a.divide(inst.Op, rn, imm)
	case insts.OpAND:
		return rn & rm, nil
	case insts.OpANDI:
		return rn & imm, nil
	case insts.OpOR:
		return rn | rm, nil
	case insts.OpORI:
		return rn | imm, nil
	case insts.OpXOR:
		return rn ^ rm, nil
	case insts.OpXORI:
		return rn ^ imm, nil
	case insts.OpSHL:
		return rn << (imm & 0x1F), nil
	case insts.OpSHR:
		return rn >> (imm & 0x1F), nil
	case insts.OpMOV:
		return rn, nil
	case insts.OpMOVI:
		return imm, nil
	}

	return 0, fmt.Errorf("%w: %s is not an arithmetic instruction",
		insts.ErrUnknownOpcode, inst.Op)
}

// divide performs signed division or remainder, truncating toward zero.
func (a *ALU) divide(op insts.Op, dividend, divisor uint32) (uint32, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDivideByZero, op)
	}

	n, d := int32(dividend), int32(divisor)
	if n == -1<<31 && d == -1 {
		// The quotient overflows; wrap like the hardware would.
		if op == insts.OpDIV || op == insts.OpDIVI {
			return dividend, nil
		}
		return 0, nil
	}

	if op == insts.OpDIV || op == insts.OpDIVI {
		return uint32(n / d), nil
	}
	return uint32(n % d), nil
}
