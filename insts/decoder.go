package insts

import "fmt"

// Decoder decodes machine words into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. It fails with ErrUnknownOpcode
// when the family or the opcode inside the family is not defined.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	family := Family(word >> familyShift)

	var code uint32
	switch family {
	case FamilyArithmetic:
		code = (word >> arithOpcodeShift) & 0x1F // bits [29:25]
	case FamilyMemory:
		code = (word >> memoryOpcodeShift) & 0x3 // bits [29:28]
	case FamilyControl:
		code = (word >> controlOpShift) & 0x7 // bits [29:27]
	default:
		return nil, fmt.Errorf("%w: family %02b in word 0x%08X",
			ErrUnknownOpcode, uint8(family), word)
	}

	op, ok := opByCode[family][code]
	if !ok {
		return nil, fmt.Errorf("%w: family %02b opcode %d in word 0x%08X",
			ErrUnknownOpcode, uint8(family), code, word)
	}

	inst := &Instruction{
		Op:       op,
		Family:   family,
		Format:   op.Format(),
		SetFlags: op.SetsFlags(),
	}

	switch inst.Format {
	case FormatRegReg:
		d.decodeRegReg(word, inst)
	case FormatRegImm:
		d.decodeRegImm(word, inst)
	case FormatCompare:
		d.decodeCompare(word, inst)
	case FormatMove:
		d.decodeMove(word, inst)
	case FormatLoadImm:
		d.decodeLoadImm(word, inst)
	case FormatShift:
		d.decodeShift(word, inst)
	case FormatMemory:
		d.decodeMemory(word, inst)
	case FormatJumpReg:
		d.decodeJumpReg(word, inst)
	case FormatBranchRel:
		d.decodeBranchRel(word, inst)
	case FormatBranchReg:
		d.decodeBranchReg(word, inst)
	}

	return inst, nil
}

func field(word uint32, lo uint, bits uint) uint32 {
	return (word >> lo) & (1<<bits - 1)
}

// decodeRegReg decodes three-register arithmetic.
// Format: 00 | op5 | Rn | Rm | Rd | 0000000000
func (d *Decoder) decodeRegReg(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 20, 5)) // bits [24:20]
	inst.Rm = uint8(field(word, 15, 5)) // bits [19:15]
	inst.Rd = uint8(field(word, 10, 5)) // bits [14:10]
}

// decodeRegImm decodes register-immediate arithmetic.
// Format: 00 | op5 | Rn | Rd | imm15
func (d *Decoder) decodeRegImm(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 20, 5))
	inst.Rd = uint8(field(word, 15, 5))
	inst.Imm = SignExtend(field(word, 0, ImmBitsRegImm), ImmBitsRegImm)
}

// decodeCompare decodes CMP.
// Format: 00 | op5 | Rn | Rm | 000000000000000
func (d *Decoder) decodeCompare(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 20, 5))
	inst.Rm = uint8(field(word, 15, 5))
}

// decodeMove decodes MOV.
// Format: 00 | op5 | Rn | Rd | 000000000000000
func (d *Decoder) decodeMove(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 20, 5))
	inst.Rd = uint8(field(word, 15, 5))
}

// decodeLoadImm decodes MOVI.
// Format: 00 | op5 | Rd | imm20
func (d *Decoder) decodeLoadImm(word uint32, inst *Instruction) {
	inst.Rd = uint8(field(word, 20, 5))
	inst.Imm = SignExtend(field(word, 0, ImmBitsLoadImm), ImmBitsLoadImm)
}

// decodeShift decodes SHL and SHR. The accumulator is both source and
// destination; the shift amount is unsigned.
// Format: 00 | op5 | Racc | shamt5 | 000000000000000
func (d *Decoder) decodeShift(word uint32, inst *Instruction) {
	acc := uint8(field(word, 20, 5))
	inst.Rd = acc
	inst.Rn = acc
	inst.Imm = int32(field(word, 15, ImmBitsShift))
}

// decodeMemory decodes LOAD and STR.
// Format: 01 | op2 | Rn | Rd | off18
func (d *Decoder) decodeMemory(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 23, 5)) // bits [27:23]
	inst.Rd = uint8(field(word, 18, 5)) // bits [22:18]
	inst.Imm = SignExtend(field(word, 0, ImmBitsMemory), ImmBitsMemory)
}

// decodeJumpReg decodes JMP and FLUSH.
// Format: 10 | op3 | Rn | 0000000000000000000000
func (d *Decoder) decodeJumpReg(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 22, 5)) // bits [26:22]
}

// decodeBranchRel decodes BEQ.
// Format: 10 | op3 | off27
func (d *Decoder) decodeBranchRel(word uint32, inst *Instruction) {
	inst.Imm = SignExtend(field(word, 0, ImmBitsBranchRel), ImmBitsBranchRel)
}

// decodeBranchReg decodes BLT and CAL.
// Format: 10 | op3 | Rn | off22
func (d *Decoder) decodeBranchReg(word uint32, inst *Instruction) {
	inst.Rn = uint8(field(word, 22, 5))
	inst.Imm = SignExtend(field(word, 0, ImmBitsBranchReg), ImmBitsBranchReg)
}
