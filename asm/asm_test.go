package asm_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/insts"
)

func assemble(src string) ([]uint32, error) {
	return asm.Assemble(strings.NewReader(src))
}

var _ = Describe("Assemble", func() {
	DescribeTable("single instructions",
		func(src string, want uint32) {
			words, err := assemble(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(words).To(Equal([]uint32{want}))
		},
		Entry("register-register", "ADD R3, R1, R2", uint32(0x00110C00)),
		Entry("register-immediate", "ADDI R1, R1, #1", uint32(0x04108001)),
		Entry("negative immediate", "ADDI R2, R1, #-1", uint32(0x04117FFF)),
		Entry("load immediate", "MOVI R1, #5", uint32(0x30100005)),
		Entry("load immediate without #", "MOVI R1, 5", uint32(0x30100005)),
		Entry("hex immediate", "MOVI R1, #0x5", uint32(0x30100005)),
		Entry("load", "LOAD R2, [R1, #4]", uint32(0x40880004)),
		Entry("store", "STR R2, [R1, #-1]", uint32(0x508BFFFF)),
		Entry("load without offset", "LOAD R2, [R1]", uint32(0x40880000)),
		Entry("numeric BEQ", "BEQ #-2", uint32(0x8FFFFFFE)),
		Entry("numeric CAL", "CAL R5, #3", uint32(0xA1400003)),
		Entry("shift", "SHL R4, #3", uint32(0x24418000)),
		Entry("flush", "FLUSH R7", uint32(0xA9C00000)),
		Entry("lower case", "addi r1, r1, #1", uint32(0x04108001)),
	)

	It("should skip blank lines and comments", func() {
		words, err := assemble(`
			// a program
			MOVI R1, #5   # five
			# nothing here

			ADDI R2, R1, #1 // six
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint32{0x30100005, 0x04110001}))
	})

	It("should resolve labels", func() {
		words, err := assemble(`
			start:  MOVI R3, loop
			loop:   SUBIS R1, R1, #1
			        BEQ done
			        BEQ loop
			        CAL R0, start
			        BLT R0, done
			done:
		`)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(HaveLen(6))

		decoder := insts.NewDecoder()
		decode := func(w uint32) *insts.Instruction {
			inst, err := decoder.Decode(w)
			Expect(err).NotTo(HaveOccurred())
			return inst
		}

		Expect(decode(words[0]).Imm).To(Equal(int32(1)))
		Expect(decode(words[2]).Imm).To(Equal(int32(3)))
		Expect(decode(words[3]).Imm).To(Equal(int32(-3)))
		Expect(decode(words[4]).Imm).To(Equal(int32(0)))
		Expect(decode(words[5]).Imm).To(Equal(int32(6)))
	})

	It("should round trip through the disassembler", func() {
		src := []string{
			"ADD R3, R1, R2",
			"ADDIS R1, R2, #-7",
			"CMP R1, R2",
			"MOV R4, R5",
			"MOVI R6, #-1",
			"SHR R7, #31",
			"LOAD R2, [R1, #4]",
			"STR R2, [R1, #-1]",
			"JMP R31",
			"BEQ #-2",
			"BLT R3, #10",
			"CAL R5, #3",
			"FLUSH R7",
		}
		words, err := assemble(strings.Join(src, "\n"))
		Expect(err).NotTo(HaveOccurred())

		lines, err := asm.Disassemble(words)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal(src))
	})

	DescribeTable("errors",
		func(src string, line int, want error) {
			words, err := assemble(src)
			Expect(words).To(BeNil())
			Expect(err).To(MatchError(want))

			var asmErr *asm.Error
			Expect(errors.As(err, &asmErr)).To(BeTrue())
			Expect(asmErr.Line).To(Equal(line))
		},
		Entry("unknown mnemonic", "MOVI R1, #1\nFROB R1", 2, asm.ErrUnknownMnemonic),
		Entry("register out of range", "ADD R32, R1, R2", 1, insts.ErrInvalidOperand),
		Entry("immediate too wide", "ADDI R1, R1, #16384", 1, insts.ErrInvalidOperand),
		Entry("missing operand", "ADD R1, R2", 1, asm.ErrSyntax),
		Entry("not a register", "JMP #4", 1, asm.ErrSyntax),
		Entry("undefined label", "\nBEQ nowhere", 2, asm.ErrUndefinedLabel),
		Entry("duplicate label", "a: MOVI R1, #1\na: MOVI R1, #2", 2, asm.ErrDuplicateLabel),
		Entry("bad number", "MOVI R1, #12z", 1, asm.ErrSyntax),
	)
})

var _ = Describe("WriteBinary", func() {
	It("should write big-endian words", func() {
		var buf bytes.Buffer

		Expect(asm.WriteBinary(&buf, []uint32{0x30100005, 0x04108001})).To(Succeed())

		Expect(buf.Bytes()).To(Equal([]byte{
			0x30, 0x10, 0x00, 0x05,
			0x04, 0x10, 0x80, 0x01,
		}))
	})
})
