package loader_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/asm"
	"github.com/sarchlab/pipesim/loader"
)

var _ = Describe("Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	write := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		It("should assemble source files", func() {
			path := write("prog.s", []byte("MOVI R1, #5\nADDI R2, R1, #1\n"))

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{0x30100005, 0x04110001}))
		})

		It("should read flat binaries", func() {
			var buf bytes.Buffer
			Expect(asm.WriteBinary(&buf, []uint32{0x30100005, 0xA9C00000})).To(Succeed())
			path := write("prog.bin", buf.Bytes())

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Len()).To(Equal(2))
			Expect(prog.Words).To(Equal([]uint32{0x30100005, 0xA9C00000}))
		})

		It("should reject a truncated binary", func() {
			path := write("prog.bin", []byte{0x30, 0x10, 0x00})

			_, err := loader.Load(path)

			Expect(err).To(MatchError(loader.ErrTruncated))
		})

		It("should report assembly errors", func() {
			path := write("bad.asm", []byte("MOVI R1, #1\nNOPE\n"))

			_, err := loader.Load(path)

			Expect(err).To(MatchError(asm.ErrUnknownMnemonic))
		})

		It("should fail on a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.bin"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("IsSource", func() {
		It("should match assembly extensions", func() {
			Expect(loader.IsSource("a.s")).To(BeTrue())
			Expect(loader.IsSource("a.ASM")).To(BeTrue())
			Expect(loader.IsSource("a.bin")).To(BeFalse())
		})
	})

	Describe("Program", func() {
		It("should enforce the size limit", func() {
			prog := &loader.Program{Words: make([]uint32, 5)}

			Expect(prog.Validate(5)).To(Succeed())
			Expect(prog.Validate(4)).To(MatchError(loader.ErrProgramTooLarge))
		})

		It("should list the program", func() {
			prog := &loader.Program{Words: []uint32{0x30100005, 0xC0000000}}

			Expect(prog.Listing()).To(Equal([]string{
				"   0: 0x30100005  MOVI R1, #5",
				"   1: 0xC0000000  ???",
			}))
		})
	})
})
