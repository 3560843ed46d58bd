package pipeline

import (
	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/insts"
	"github.com/sarchlab/pipesim/timing/memsys"
)

// FetchStage reads instruction words through the memory system.
type FetchStage struct {
	memSys *memsys.System
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memSys *memsys.System) *FetchStage {
	return &FetchStage{memSys: memSys}
}

// Fetch issues the read for slot, or polls for it once issued. On
// StatusDone the word is stored in the slot.
func (s *FetchStage) Fetch(slot *Slot) memsys.Response {
	var resp memsys.Response
	if slot.FetchIssued {
		r := s.memSys.RequestResult(memsys.RequesterFetch)
		if r == nil {
			return memsys.Response{Status: memsys.StatusWait}
		}
		resp = *r
	} else {
		resp = s.memSys.Read(slot.PC, memsys.RequesterFetch)
	}

	switch resp.Status {
	case memsys.StatusDone:
		slot.Word = resp.Data
		slot.FetchDone = true
	case memsys.StatusWait:
		slot.FetchIssued = true
	}

	return resp
}

// Drain consumes the result of a fetch that was squashed while in flight.
// It reports whether the fetch requester is idle again.
func (s *FetchStage) Drain() bool {
	if s.memSys.RequestResult(memsys.RequesterFetch) != nil {
		return true
	}
	return !s.memSys.HasPendingRequest(memsys.RequesterFetch)
}

// DecodeStage decodes instruction words and reads operands.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// Decode decodes the slot's word and records its destination register.
func (s *DecodeStage) Decode(slot *Slot) error {
	inst, err := s.decoder.Decode(slot.Word)
	if err != nil {
		return err
	}

	slot.Inst = inst
	slot.Dest, slot.WritesReg = inst.DestRegister()
	return nil
}

// ReadOperands reads the source registers of a decoded slot.
func (s *DecodeStage) ReadOperands(slot *Slot) error {
	inst := slot.Inst

	var err error
	if slot.RnValue, err = s.regFile.Read(inst.Rn); err != nil {
		return err
	}
	if slot.RmValue, err = s.regFile.Read(inst.Rm); err != nil {
		return err
	}
	if inst.IsStore() {
		if slot.StoreValue, err = s.regFile.Read(inst.Rd); err != nil {
			return err
		}
	}

	slot.OperandsRead = true
	return nil
}

// ExecuteStage runs the ALU, computes addresses and resolves branches.
type ExecuteStage struct {
	regFile    *emu.RegFile
	alu        *emu.ALU
	branchUnit *emu.BranchUnit
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(regFile *emu.RegFile) *ExecuteStage {
	return &ExecuteStage{
		regFile:    regFile,
		alu:        emu.NewALU(),
		branchUnit: emu.NewBranchUnit(),
	}
}

// Execute performs the slot's operation. Flag-setting instructions update
// the flags here so that a branch directly behind them sees the new value.
func (s *ExecuteStage) Execute(slot *Slot) error {
	inst := slot.Inst

	switch inst.Family {
	case insts.FamilyArithmetic:
		result, err := s.alu.Compute(inst, slot.RnValue, slot.RmValue)
		if err != nil {
			return err
		}
		if inst.SetFlags {
			s.regFile.UpdateFlags(result)
		}
		slot.Result = result
	case insts.FamilyMemory:
		slot.Address = emu.EffectiveAddress(slot.RnValue, inst.Imm)
	case insts.FamilyControl:
		if inst.Op == insts.OpFLUSH {
			slot.Address = slot.RnValue
			break
		}
		br := s.branchUnit.Resolve(inst, slot.PC, slot.RnValue, s.regFile.Flags)
		slot.BranchTaken = br.Taken
		slot.BranchTarget = br.Target
		slot.Result = br.Link
	}

	slot.Executed = true
	return nil
}

// MemoryStage performs data accesses and cache flushes.
type MemoryStage struct {
	memSys *memsys.System
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memSys *memsys.System) *MemoryStage {
	return &MemoryStage{memSys: memSys}
}

// Access issues or polls the slot's data access. Instructions that do not
// touch data memory complete at once.
func (s *MemoryStage) Access(slot *Slot) memsys.Response {
	inst := slot.Inst

	if inst.Op == insts.OpFLUSH {
		s.memSys.Flush(slot.Address)
	}
	if !inst.IsMemory() {
		slot.MemDone = true
		return memsys.Response{Status: memsys.StatusDone}
	}

	var resp memsys.Response
	switch {
	case slot.MemIssued:
		r := s.memSys.RequestResult(memsys.RequesterMemory)
		if r == nil {
			return memsys.Response{Status: memsys.StatusWait}
		}
		resp = *r
	case inst.IsLoad():
		resp = s.memSys.Read(slot.Address, memsys.RequesterMemory)
	default:
		resp = s.memSys.Write(slot.Address, slot.StoreValue, memsys.RequesterMemory)
	}

	switch resp.Status {
	case memsys.StatusDone:
		if inst.IsLoad() {
			slot.Result = resp.Data
		}
		slot.MemDone = true
	case memsys.StatusWait:
		slot.MemIssued = true
	}

	return resp
}

// WritebackStage commits results to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits the slot's result and retires it.
func (s *WritebackStage) Writeback(slot *Slot) error {
	if slot.WritesReg {
		if err := s.regFile.Write(slot.Dest, slot.Result); err != nil {
			return err
		}
	}
	slot.Retired = true
	return nil
}
