package insts

import "fmt"

// String renders the instruction in assembler syntax.
func (i *Instruction) String() string {
	name := i.Op.String()

	switch i.Format {
	case FormatRegReg:
		return fmt.Sprintf("%s R%d, R%d, R%d", name, i.Rd, i.Rn, i.Rm)
	case FormatRegImm:
		return fmt.Sprintf("%s R%d, R%d, #%d", name, i.Rd, i.Rn, i.Imm)
	case FormatCompare:
		return fmt.Sprintf("%s R%d, R%d", name, i.Rn, i.Rm)
	case FormatMove:
		return fmt.Sprintf("%s R%d, R%d", name, i.Rd, i.Rn)
	case FormatLoadImm, FormatShift:
		return fmt.Sprintf("%s R%d, #%d", name, i.Rd, i.Imm)
	case FormatMemory:
		return fmt.Sprintf("%s R%d, [R%d, #%d]", name, i.Rd, i.Rn, i.Imm)
	case FormatJumpReg:
		return fmt.Sprintf("%s R%d", name, i.Rn)
	case FormatBranchRel:
		return fmt.Sprintf("%s #%d", name, i.Imm)
	case FormatBranchReg:
		return fmt.Sprintf("%s R%d, #%d", name, i.Rn, i.Imm)
	}

	return name
}
