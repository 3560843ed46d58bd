package emu

import "github.com/sarchlab/pipesim/insts"

// BranchResult is the outcome of resolving a control instruction.
type BranchResult struct {
	Taken  bool
	Target uint32

	// Link is the return address a CAL writes to the link register.
	Link uint32
}

// BranchUnit resolves control transfers.
type BranchUnit struct{}

// NewBranchUnit creates a new branch unit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// Resolve decides whether inst at pc redirects control. rn is the value of
// the instruction's Rn.
func (b *BranchUnit) Resolve(inst *insts.Instruction, pc, rn uint32, flags Flags) BranchResult {
	switch inst.Op {
	case insts.OpJMP:
		return BranchResult{Taken: true, Target: rn}
	case insts.OpBEQ:
		if flags.Z {
			return BranchResult{Taken: true, Target: pc + 1 + uint32(inst.Imm)}
		}
	case insts.OpBLT:
		if flags.N {
			return BranchResult{Taken: true, Target: rn + uint32(inst.Imm)}
		}
	case insts.OpCAL:
		return BranchResult{Taken: true, Target: rn + uint32(inst.Imm), Link: pc + 1}
	}

	return BranchResult{}
}

// EffectiveAddress computes base + offset for LOAD and STR.
func EffectiveAddress(base uint32, offset int32) uint32 {
	return base + uint32(offset)
}
