package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pipesim/insts"
)

// ErrMaxInstructions is returned when the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// WordMemory is untimed word-addressed storage.
type WordMemory interface {
	Peek(addr uint32) (uint32, error)
	Poke(addr uint32, value uint32) error
}

// Flusher is implemented by memories that can drop a cached line. The
// functional model has no cache, so FLUSH is a no-op unless the memory
// implements it.
type Flusher interface {
	Flush(addr uint32) bool
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the PC is past the end of the program.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes instructions one at a time with no timing. It serves as
// the reference the pipeline is checked against.
type Emulator struct {
	regFile    *RegFile
	memory     WordMemory
	decoder    *insts.Decoder
	alu        *ALU
	branchUnit *BranchUnit

	pc            uint32
	programLength uint32

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithRegFile makes the emulator operate on an existing register file.
func WithRegFile(regFile *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = regFile
	}
}

// NewEmulator creates a new emulator over memory.
func NewEmulator(memory WordMemory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:    &RegFile{},
		memory:     memory,
		decoder:    insts.NewDecoder(),
		alu:        NewALU(),
		branchUnit: NewBranchUnit(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// PC returns the address of the next instruction.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram writes words at address 0 and sets the PC to 0.
func (e *Emulator) LoadProgram(words []uint32) error {
	for i, w := range words {
		if err := e.memory.Poke(uint32(i), w); err != nil {
			return fmt.Errorf("loading word %d: %w", i, err)
		}
	}
	e.SetProgramLength(uint32(len(words)))
	e.pc = 0
	return nil
}

// SetProgramLength sets the fetch boundary for a program already in memory.
func (e *Emulator) SetProgramLength(n uint32) {
	e.programLength = n
}

// Reset clears registers and the PC. Memory is left untouched.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.pc = 0
	e.instructionCount = 0
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.pc >= e.programLength {
		return StepResult{Halted: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	word, err := e.memory.Peek(e.pc)
	if err != nil {
		return StepResult{Err: fmt.Errorf("fetch at PC=%d: %w", e.pc, err)}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: fmt.Errorf("decode at PC=%d: %w", e.pc, err)}
	}

	if err := e.execute(inst); err != nil {
		return StepResult{Err: fmt.Errorf("%s at PC=%d: %w", inst, e.pc, err)}
	}

	e.instructionCount++

	return StepResult{}
}

// Run executes instructions until the program ends or an error occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

// execute performs inst and advances the PC.
func (e *Emulator) execute(inst *insts.Instruction) error {
	rn, err := e.regFile.Read(inst.Rn)
	if err != nil {
		return err
	}

	next := e.pc + 1

	switch inst.Family {
	case insts.FamilyArithmetic:
		if err := e.executeArithmetic(inst, rn); err != nil {
			return err
		}
	case insts.FamilyMemory:
		if err := e.executeLoadStore(inst, rn); err != nil {
			return err
		}
	case insts.FamilyControl:
		if inst.Op == insts.OpFLUSH {
			if f, ok := e.memory.(Flusher); ok {
				f.Flush(rn)
			}
			break
		}

		br := e.branchUnit.Resolve(inst, e.pc, rn, e.regFile.Flags)
		if inst.Op == insts.OpCAL {
			e.regFile.X[insts.LinkRegister] = br.Link
		}
		if br.Taken {
			next = br.Target
		}
	}

	e.pc = next
	return nil
}

func (e *Emulator) executeArithmetic(inst *insts.Instruction, rn uint32) error {
	rm, err := e.regFile.Read(inst.Rm)
	if err != nil {
		return err
	}

	result, err := e.alu.Compute(inst, rn, rm)
	if err != nil {
		return err
	}

	if inst.SetFlags {
		e.regFile.UpdateFlags(result)
	}

	if rd, ok := inst.DestRegister(); ok {
		return e.regFile.Write(rd, result)
	}
	return nil
}
