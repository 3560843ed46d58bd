package insts

import "fmt"

// Encoder turns instructions into machine words.
type Encoder struct{}

// NewEncoder creates a new instruction encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode packs the operand fields relevant to inst.Op into a word. Family,
// Format and SetFlags are derived from the opcode and ignored on input. For
// shifts the accumulator is taken from Rd.
func (e *Encoder) Encode(inst *Instruction) (uint32, error) {
	op := inst.Op
	if !op.valid() {
		return 0, fmt.Errorf("%w: opcode %d", ErrUnknownOpcode, uint8(op))
	}

	info := opTable[op]
	word := uint32(info.family) << familyShift

	switch info.family {
	case FamilyArithmetic:
		word |= info.code << arithOpcodeShift
	case FamilyMemory:
		word |= info.code << memoryOpcodeShift
	case FamilyControl:
		word |= info.code << controlOpShift
	}

	var err error
	switch info.format {
	case FormatRegReg:
		err = e.packRegs(&word, op, []uint8{inst.Rn, inst.Rm, inst.Rd}, []uint{20, 15, 10})
	case FormatRegImm:
		err = e.packRegs(&word, op, []uint8{inst.Rn, inst.Rd}, []uint{20, 15})
		if err == nil {
			err = e.packSigned(&word, op, inst.Imm, ImmBitsRegImm)
		}
	case FormatCompare:
		err = e.packRegs(&word, op, []uint8{inst.Rn, inst.Rm}, []uint{20, 15})
	case FormatMove:
		err = e.packRegs(&word, op, []uint8{inst.Rn, inst.Rd}, []uint{20, 15})
	case FormatLoadImm:
		err = e.packRegs(&word, op, []uint8{inst.Rd}, []uint{20})
		if err == nil {
			err = e.packSigned(&word, op, inst.Imm, ImmBitsLoadImm)
		}
	case FormatShift:
		err = e.packRegs(&word, op, []uint8{inst.Rd}, []uint{20})
		if err == nil {
			err = e.packShift(&word, op, inst.Imm)
		}
	case FormatMemory:
		err = e.packRegs(&word, op, []uint8{inst.Rn, inst.Rd}, []uint{23, 18})
		if err == nil {
			err = e.packSigned(&word, op, inst.Imm, ImmBitsMemory)
		}
	case FormatJumpReg:
		err = e.packRegs(&word, op, []uint8{inst.Rn}, []uint{22})
	case FormatBranchRel:
		err = e.packSigned(&word, op, inst.Imm, ImmBitsBranchRel)
	case FormatBranchReg:
		err = e.packRegs(&word, op, []uint8{inst.Rn}, []uint{22})
		if err == nil {
			err = e.packSigned(&word, op, inst.Imm, ImmBitsBranchReg)
		}
	}

	if err != nil {
		return 0, err
	}

	return word, nil
}

func (e *Encoder) packRegs(word *uint32, op Op, regs []uint8, shifts []uint) error {
	for i, r := range regs {
		if r >= NumRegisters {
			return fmt.Errorf("%w: %s register R%d out of range",
				ErrInvalidOperand, op, r)
		}
		*word |= uint32(r) << shifts[i]
	}
	return nil
}

func (e *Encoder) packSigned(word *uint32, op Op, imm int32, bits uint) error {
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	if int64(imm) < lo || int64(imm) > hi {
		return fmt.Errorf("%w: %s immediate %d outside [%d, %d]",
			ErrInvalidOperand, op, imm, lo, hi)
	}
	*word |= uint32(imm) & (1<<bits - 1)
	return nil
}

func (e *Encoder) packShift(word *uint32, op Op, amount int32) error {
	if amount < 0 || amount >= 1<<ImmBitsShift {
		return fmt.Errorf("%w: %s shift amount %d outside [0, 31]",
			ErrInvalidOperand, op, amount)
	}
	*word |= uint32(amount) << 15
	return nil
}
