// Package insts provides the instruction set definitions, encoding and
// decoding for the pipesim 32-bit core.
//
// Every instruction is one 32-bit word. Bits [31:30] select the family:
//   - 00 Arithmetic: 5-bit opcode in [29:25]
//   - 01 Memory: 2-bit opcode in [29:28]
//   - 10 Control: 3-bit opcode in [29:27]
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x04108001) // ADDI R1, R1, #1
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Imm)
package insts

import "errors"

// ErrUnknownOpcode is returned when a word carries an opcode that has no
// mapping within its family.
var ErrUnknownOpcode = errors.New("unknown opcode")

// ErrInvalidOperand is returned when an operand does not fit its field.
var ErrInvalidOperand = errors.New("invalid operand")

// NumRegisters is the number of general purpose registers.
const NumRegisters = 32

// LinkRegister receives the return address of CAL.
const LinkRegister = 31

// Family is the top-level instruction class held in bits [31:30].
type Family uint8

// Instruction families.
const (
	FamilyArithmetic Family = 0b00
	FamilyMemory     Family = 0b01
	FamilyControl    Family = 0b10
)

// Op represents an opcode.
type Op uint8

// Opcodes.
const (
	OpUnknown Op = iota

	// Arithmetic family
	OpADD
	OpADDS
	OpADDI
	OpADDIS
	OpSUB
	OpSUBS
	OpSUBI
	OpSUBIS
	OpMUL
	OpMULI
	OpDIV
	OpDIVI
	OpAND
	OpANDI
	OpOR
	OpORI
	OpXOR
	OpXORI
	OpSHL
	OpSHR
	OpCMP
	OpMOD
	OpMODI
	OpMOV
	OpMOVI

	// Memory family
	OpLOAD
	OpSTR

	// Control family
	OpJMP
	OpBEQ
	OpBLT
	OpCAL
	OpFLUSH

	numOps
)

// Format represents an operand layout.
type Format uint8

// Instruction formats.
const (
	FormatUnknown   Format = iota
	FormatRegReg           // Rn [24:20], Rm [19:15], Rd [14:10]
	FormatRegImm           // Rn [24:20], Rd [19:15], imm15 [14:0]
	FormatCompare          // Rn [24:20], Rm [19:15]
	FormatMove             // Rn [24:20], Rd [19:15]
	FormatLoadImm          // Rd [24:20], imm20 [19:0]
	FormatShift            // Rd=Rn [24:20], shamt [19:15]
	FormatMemory           // Rn [27:23], Rd [22:18], off18 [17:0]
	FormatJumpReg          // Rn [26:22]
	FormatBranchRel        // off27 [26:0]
	FormatBranchReg        // Rn [26:22], off22 [21:0]
)

// Field widths of immediates and offsets.
const (
	ImmBitsRegImm     = 15
	ImmBitsLoadImm    = 20
	ImmBitsShift      = 5
	ImmBitsMemory     = 18
	ImmBitsBranchRel  = 27
	ImmBitsBranchReg  = 22
	familyShift       = 30
	arithOpcodeShift  = 25
	memoryOpcodeShift = 28
	controlOpShift    = 27
)

// opInfo is the static description of one opcode.
type opInfo struct {
	name     string
	family   Family
	code     uint32
	format   Format
	setFlags bool
}

var opTable = [numOps]opInfo{
	OpADD:   {"ADD", FamilyArithmetic, 0, FormatRegReg, false},
	OpADDS:  {"ADDS", FamilyArithmetic, 1, FormatRegReg, true},
	OpADDI:  {"ADDI", FamilyArithmetic, 2, FormatRegImm, false},
	OpADDIS: {"ADDIS", FamilyArithmetic, 3, FormatRegImm, true},
	OpSUB:   {"SUB", FamilyArithmetic, 4, FormatRegReg, false},
	OpSUBS:  {"SUBS", FamilyArithmetic, 5, FormatRegReg, true},
	OpSUBI:  {"SUBI", FamilyArithmetic, 6, FormatRegImm, false},
	OpSUBIS: {"SUBIS", FamilyArithmetic, 7, FormatRegImm, true},
	OpMUL:   {"MUL", FamilyArithmetic, 8, FormatRegReg, false},
	OpMULI:  {"MULI", FamilyArithmetic, 9, FormatRegImm, false},
	OpDIV:   {"DIV", FamilyArithmetic, 10, FormatRegReg, false},
	OpDIVI:  {"DIVI", FamilyArithmetic, 11, FormatRegImm, false},
	OpAND:   {"AND", FamilyArithmetic, 12, FormatRegReg, false},
	OpANDI:  {"ANDI", FamilyArithmetic, 13, FormatRegImm, false},
	OpOR:    {"OR", FamilyArithmetic, 14, FormatRegReg, false},
	OpORI:   {"ORI", FamilyArithmetic, 15, FormatRegImm, false},
	OpXOR:   {"XOR", FamilyArithmetic, 16, FormatRegReg, false},
	OpXORI:  {"XORI", FamilyArithmetic, 17, FormatRegImm, false},
	OpSHL:   {"SHL", FamilyArithmetic, 18, FormatShift, false},
	OpSHR:   {"SHR", FamilyArithmetic, 19, FormatShift, false},
	OpCMP:   {"CMP", FamilyArithmetic, 20, FormatCompare, true},
	OpMOD:   {"MOD", FamilyArithmetic, 21, FormatRegReg, false},
	OpMODI:  {"MODI", FamilyArithmetic, 22, FormatRegImm, false},
	OpMOV:   {"MOV", FamilyArithmetic, 23, FormatMove, false},
	OpMOVI:  {"MOVI", FamilyArithmetic, 24, FormatLoadImm, false},
	OpLOAD:  {"LOAD", FamilyMemory, 0, FormatMemory, false},
	OpSTR:   {"STR", FamilyMemory, 1, FormatMemory, false},
	OpJMP:   {"JMP", FamilyControl, 0, FormatJumpReg, false},
	OpBEQ:   {"BEQ", FamilyControl, 1, FormatBranchRel, false},
	OpBLT:   {"BLT", FamilyControl, 2, FormatBranchReg, false},
	OpCAL:   {"CAL", FamilyControl, 4, FormatBranchReg, false},
	OpFLUSH: {"FLUSH", FamilyControl, 5, FormatJumpReg, false},
}

// opByCode maps (family, opcode) back to an Op.
var opByCode = func() map[Family]map[uint32]Op {
	m := map[Family]map[uint32]Op{
		FamilyArithmetic: {},
		FamilyMemory:     {},
		FamilyControl:    {},
	}
	for op := OpADD; op < numOps; op++ {
		info := opTable[op]
		m[info.family][info.code] = op
	}
	return m
}()

var opByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := OpADD; op < numOps; op++ {
		m[opTable[op].name] = op
	}
	return m
}()

// LookupOp returns the opcode for an upper-case mnemonic.
func LookupOp(mnemonic string) (Op, bool) {
	op, ok := opByName[mnemonic]
	return op, ok
}

// Ops returns every defined opcode in table order.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := OpADD; op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

func (op Op) valid() bool {
	return op > OpUnknown && op < numOps
}

// String returns the mnemonic.
func (op Op) String() string {
	if !op.valid() {
		return "UNKNOWN"
	}
	return opTable[op].name
}

// Family returns the family the opcode belongs to.
func (op Op) Family() Family {
	return opTable[op].family
}

// Format returns the operand layout of the opcode.
func (op Op) Format() Format {
	return opTable[op].format
}

// SetsFlags reports whether the opcode updates the Z and N flags.
func (op Op) SetsFlags() bool {
	return opTable[op].setFlags
}

// Instruction represents a decoded instruction.
type Instruction struct {
	Op     Op     // Operation code
	Family Family // Instruction family
	Format Format // Operand layout

	SetFlags bool  // true if the instruction updates Z and N
	Rd       uint8 // Destination register (source data for STR)
	Rn       uint8 // First source or base register
	Rm       uint8 // Second source register
	Imm      int32 // Sign-extended immediate, offset or shift amount
}

// IsLoad reports whether the instruction reads data memory.
func (i *Instruction) IsLoad() bool { return i.Op == OpLOAD }

// IsStore reports whether the instruction writes data memory.
func (i *Instruction) IsStore() bool { return i.Op == OpSTR }

// IsMemory reports whether the instruction uses the memory port.
func (i *Instruction) IsMemory() bool { return i.Family == FamilyMemory }

// IsControl reports whether the instruction can redirect the PC.
func (i *Instruction) IsControl() bool {
	return i.Family == FamilyControl && i.Op != OpFLUSH
}

// DestRegister returns the register the instruction writes back, if any.
func (i *Instruction) DestRegister() (uint8, bool) {
	switch i.Format {
	case FormatRegReg, FormatRegImm, FormatMove, FormatLoadImm, FormatShift:
		return i.Rd, true
	}

	switch i.Op {
	case OpLOAD:
		return i.Rd, true
	case OpCAL:
		return LinkRegister, true
	}

	return 0, false
}

// SourceRegisters returns the registers read in Decode.
func (i *Instruction) SourceRegisters() []uint8 {
	switch i.Format {
	case FormatRegReg, FormatCompare:
		return []uint8{i.Rn, i.Rm}
	case FormatRegImm, FormatMove, FormatShift, FormatJumpReg, FormatBranchReg:
		return []uint8{i.Rn}
	case FormatMemory:
		if i.Op == OpSTR {
			return []uint8{i.Rn, i.Rd}
		}
		return []uint8{i.Rn}
	}
	return nil
}

// SignExtend interprets the low bits of value as a two's complement number.
func SignExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}
