package emu

import "github.com/sarchlab/pipesim/insts"

// executeLoadStore performs LOAD and STR against the untimed memory.
func (e *Emulator) executeLoadStore(inst *insts.Instruction, base uint32) error {
	addr := EffectiveAddress(base, inst.Imm)

	if inst.IsLoad() {
		value, err := e.memory.Peek(addr)
		if err != nil {
			return err
		}
		return e.regFile.Write(inst.Rd, value)
	}

	value, err := e.regFile.Read(inst.Rd)
	if err != nil {
		return err
	}
	return e.memory.Poke(addr, value)
}
