package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Arithmetic family", func() {
		// ADD R3, R1, R2 -> 0x00110C00
		// Encoding: 00 | 00000 | Rn=1 | Rm=2 | Rd=3 | 0
		It("should decode ADD R3, R1, R2", func() {
			inst, err := decoder.Decode(0x00110C00)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Family).To(Equal(insts.FamilyArithmetic))
			Expect(inst.Format).To(Equal(insts.FormatRegReg))
			Expect(inst.SetFlags).To(BeFalse())
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Rm).To(Equal(uint8(2)))
		})

		// ADDI R2, R1, #-1 -> 0x04117FFF
		It("should sign-extend the 15-bit immediate", func() {
			inst, err := decoder.Decode(0x04117FFF)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int32(-1)))
		})

		// MOVI R1, #5 -> 0x30100005
		It("should decode MOVI R1, #5", func() {
			inst, err := decoder.Decode(0x30100005)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpMOVI))
			Expect(inst.Format).To(Equal(insts.FormatLoadImm))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int32(5)))
		})

		// SHL R4, #3 -> 0x24418000
		It("should decode a shift with the accumulator as Rn and Rd", func() {
			inst, err := decoder.Decode(0x24418000)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSHL))
			Expect(inst.Rd).To(Equal(uint8(4)))
			Expect(inst.Rn).To(Equal(uint8(4)))
			Expect(inst.Imm).To(Equal(int32(3)))
		})

		It("should mark the flag-setting opcodes", func() {
			// SUBS R0, R0, R0
			inst, err := decoder.Decode(5 << 25)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSUBS))
			Expect(inst.SetFlags).To(BeTrue())
		})
	})

	Describe("Memory family", func() {
		// LOAD R2, [R1, #4] -> 0x40880004
		It("should decode LOAD R2, [R1, #4]", func() {
			inst, err := decoder.Decode(0x40880004)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLOAD))
			Expect(inst.Family).To(Equal(insts.FamilyMemory))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(int32(4)))
		})

		// STR R2, [R1, #-1] -> 0x508BFFFF
		It("should decode STR with a negative offset", func() {
			inst, err := decoder.Decode(0x508BFFFF)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSTR))
			Expect(inst.Imm).To(Equal(int32(-1)))
		})
	})

	Describe("Control family", func() {
		// BEQ #-2 -> 0x8FFFFFFE
		It("should decode BEQ with a negative PC-relative offset", func() {
			inst, err := decoder.Decode(0x8FFFFFFE)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Format).To(Equal(insts.FormatBranchRel))
			Expect(inst.Imm).To(Equal(int32(-2)))
		})

		// CAL R5, #3 -> 0xA1400003
		It("should decode CAL R5, #3", func() {
			inst, err := decoder.Decode(0xA1400003)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpCAL))
			Expect(inst.Rn).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(int32(3)))
			Expect(inst.IsControl()).To(BeTrue())
		})

		// FLUSH R7 -> 0xA9C00000
		It("should decode FLUSH R7", func() {
			inst, err := decoder.Decode(0xA9C00000)

			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpFLUSH))
			Expect(inst.Rn).To(Equal(uint8(7)))
			Expect(inst.IsControl()).To(BeFalse())
		})
	})

	DescribeTable("unknown opcodes",
		func(word uint32) {
			inst, err := decoder.Decode(word)

			Expect(inst).To(BeNil())
			Expect(err).To(MatchError(insts.ErrUnknownOpcode))
		},
		Entry("arithmetic opcode 25", uint32(0x32000000)),
		Entry("arithmetic opcode 31", uint32(0x3E000000)),
		Entry("memory opcode 2", uint32(0x60000000)),
		Entry("control opcode 3", uint32(0x98000000)),
		Entry("control opcode 7", uint32(0xB8000000)),
		Entry("family 11", uint32(0xC0000000)),
	)
})
