// Package pipeline provides the 5-stage in-order pipeline of the pipesim
// core.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/pipesim/insts"
)

// Stage identifies one of the five pipeline stages.
type Stage int

// Pipeline stages in program order.
const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback
	NumStages
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "IF"
	case StageDecode:
		return "ID"
	case StageExecute:
		return "EX"
	case StageMemory:
		return "MEM"
	case StageWriteback:
		return "WB"
	}
	return "??"
}

// Slot is the record of one in-flight instruction. It is created at fetch
// and filled in as the instruction moves down the pipeline. Exactly one
// stage owns a slot at a time.
type Slot struct {
	// ID increases monotonically with fetch order.
	ID uint64

	// PC is the address the instruction was fetched from.
	PC uint32

	// Word is the raw instruction word, valid once FetchDone is set.
	Word uint32

	// Bubble marks an empty slot that carries no instruction.
	Bubble bool

	// Stalled is set when the slot could not finish its stage this cycle.
	Stalled bool

	// Fetch
	FetchIssued bool
	FetchDone   bool

	// Decode
	Inst         *insts.Instruction
	WritesReg    bool
	Dest         uint8
	RnValue      uint32
	RmValue      uint32
	StoreValue   uint32
	OperandsRead bool

	// Execute
	Executed     bool
	Result       uint32
	Address      uint32
	BranchTaken  bool
	BranchTarget uint32

	// Memory
	MemIssued bool
	MemDone   bool

	// Writeback
	Retired bool
}

// IsLive reports whether the slot holds an instruction that has not
// retired yet.
func (s *Slot) IsLive() bool {
	return s != nil && !s.Bubble && !s.Retired
}

// Done reports whether the slot finished the work of stage st.
func (s *Slot) Done(st Stage) bool {
	if s.Bubble {
		return true
	}

	switch st {
	case StageFetch:
		return s.FetchDone
	case StageDecode:
		return s.OperandsRead
	case StageExecute:
		return s.Executed
	case StageMemory:
		return s.MemDone
	case StageWriteback:
		return s.Retired
	}
	return false
}

func (s *Slot) String() string {
	switch {
	case s == nil:
		return "-"
	case s.Bubble:
		return "bubble"
	case s.Inst != nil:
		return fmt.Sprintf("%d: %s", s.PC, s.Inst)
	case s.FetchDone:
		return fmt.Sprintf("%d: 0x%08X", s.PC, s.Word)
	}
	return fmt.Sprintf("%d: (fetching)", s.PC)
}
