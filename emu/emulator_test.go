package emu_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/insts"
	"github.com/sarchlab/pipesim/timing/memory"
)

// flushingMemory records FLUSH addresses.
type flushingMemory struct {
	*memory.Store
	flushed []uint32
}

func (m *flushingMemory) Flush(addr uint32) bool {
	m.flushed = append(m.flushed, addr)
	return true
}

var _ = Describe("Emulator", func() {
	var (
		store *memory.Store
		e     *emu.Emulator
	)

	BeforeEach(func() {
		store = memory.NewStore(memory.Config{Words: 256, LineWords: 4})
		e = emu.NewEmulator(store)
	})

	load := func(src string) {
		words, err := asm.Assemble(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.LoadProgram(words)).To(Succeed())
	}

	It("should run straight-line arithmetic", func() {
		load(`
			MOVI R1, #10
			MOVI R2, #5
			ADD  R3, R1, R2
			SUB  R4, R1, R2
		`)

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().X[3]).To(Equal(uint32(15)))
		Expect(e.RegFile().X[4]).To(Equal(uint32(5)))
		Expect(e.InstructionCount()).To(Equal(uint64(4)))
		Expect(e.PC()).To(Equal(uint32(4)))
	})

	It("should report halted past the end of the program", func() {
		load("MOVI R1, #1")

		Expect(e.Step()).To(Equal(emu.StepResult{}))
		Expect(e.Step().Halted).To(BeTrue())
		Expect(e.InstructionCount()).To(Equal(uint64(1)))
	})

	It("should run a countdown loop", func() {
		load(`
			      MOVI  R1, #10
			      MOVI  R3, loop
			loop: ADDI  R2, R2, #2
			      SUBIS R1, R1, #1
			      BEQ   done
			      JMP   R3
			done:
		`)

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().X[2]).To(Equal(uint32(20)))
		Expect(e.RegFile().Flags.Z).To(BeTrue())
		Expect(e.InstructionCount()).To(Equal(uint64(2 + 10*4 - 1)))
	})

	It("should only update flags for flag-setting instructions", func() {
		load(`
			SUBIS R1, R0, #1
			ADDI  R2, R0, #0
		`)

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().Flags).To(Equal(emu.Flags{N: true}))
	})

	It("should call and return through the link register", func() {
		load(`
			      MOVI R10, end
			      CAL  R0, sub
			      JMP  R10
			sub:  MOVI R1, #7
			      JMP  R31
			end:
		`)

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().X[1]).To(Equal(uint32(7)))
		Expect(e.RegFile().X[insts.LinkRegister]).To(Equal(uint32(2)))
	})

	It("should take BLT relative to a register", func() {
		load(`
			   MOVI  R5, skip
			   CMP   R0, R5
			   BLT   R5, #0
			   MOVI  R1, #1
			skip:
		`)

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().X[1]).To(Equal(uint32(0)))
	})

	It("should load and store words", func() {
		load(`
			MOVI R1, #100
			MOVI R2, #-3
			STR  R2, [R1, #2]
			LOAD R3, [R1, #2]
		`)
		Expect(store.Poke(100, 55)).To(Succeed())

		Expect(e.Run()).To(Succeed())

		Expect(e.RegFile().X[3]).To(Equal(uint32(0xFFFFFFFD)))
		Expect(store.Peek(102)).To(Equal(uint32(0xFFFFFFFD)))
		Expect(store.Peek(100)).To(Equal(uint32(55)))
	})

	It("should pass FLUSH to a memory that supports it", func() {
		mem := &flushingMemory{Store: store}
		e = emu.NewEmulator(mem)
		load(`
			MOVI  R7, #40
			FLUSH R7
		`)

		Expect(e.Run()).To(Succeed())

		Expect(mem.flushed).To(Equal([]uint32{40}))
	})

	It("should ignore FLUSH on plain memory", func() {
		load(`
			MOVI  R7, #40
			FLUSH R7
		`)

		Expect(e.Run()).To(Succeed())
		Expect(e.PC()).To(Equal(uint32(2)))
	})

	Describe("errors", func() {
		It("should stop on divide by zero", func() {
			load(`
				MOVI R1, #4
				DIV  R2, R1, R0
				MOVI R3, #1
			`)

			err := e.Run()

			Expect(err).To(MatchError(emu.ErrDivideByZero))
			Expect(err.Error()).To(ContainSubstring("PC=1"))
			Expect(e.PC()).To(Equal(uint32(1)))
			Expect(e.RegFile().X[3]).To(Equal(uint32(0)))
		})

		It("should stop on an unknown opcode", func() {
			Expect(e.LoadProgram([]uint32{0xC0000000})).To(Succeed())

			Expect(e.Run()).To(MatchError(insts.ErrUnknownOpcode))
		})

		It("should stop on an address outside memory", func() {
			load(`
				MOVI R1, #1000
				LOAD R2, [R1]
			`)

			Expect(e.Run()).To(MatchError(memory.ErrInvalidAddress))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(store, emu.WithMaxInstructions(10))
			load("JMP R0")

			Expect(e.Run()).To(MatchError(emu.ErrMaxInstructions))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})
	})

	It("should share a register file", func() {
		regFile := &emu.RegFile{}
		e = emu.NewEmulator(store, emu.WithRegFile(regFile))
		load("MOVI R9, #9")

		Expect(e.Run()).To(Succeed())

		Expect(regFile.X[9]).To(Equal(uint32(9)))
	})

	It("should reset registers but keep memory", func() {
		load(`
			MOVI R1, #3
			STR  R1, [R0, #50]
		`)
		Expect(e.Run()).To(Succeed())

		e.Reset()

		Expect(e.PC()).To(Equal(uint32(0)))
		Expect(e.InstructionCount()).To(Equal(uint64(0)))
		Expect(e.RegFile().X[1]).To(Equal(uint32(0)))
		Expect(store.Peek(50)).To(Equal(uint32(3)))

		Expect(e.Run()).To(Succeed())
		Expect(e.RegFile().X[1]).To(Equal(uint32(3)))
	})
})
