package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	line := func(base uint32) []uint32 {
		words := make([]uint32, 4)
		for i := range words {
			words[i] = base + uint32(i)
		}
		return words
	}

	BeforeEach(func() {
		// 4 lines of 4 words: 16 words map before tags repeat
		c = cache.New(cache.Config{LineWords: 4, LineCount: 4})
	})

	Describe("address mapping", func() {
		DescribeTable("index, tag and offset",
			func(addr uint32, index int, tag uint32, offset int) {
				Expect(c.Index(addr)).To(Equal(index))
				Expect(c.Tag(addr)).To(Equal(tag))
				Expect(c.Offset(addr)).To(Equal(offset))
			},
			Entry("address 0", uint32(0), 0, uint32(0), 0),
			Entry("address 5", uint32(5), 1, uint32(0), 1),
			Entry("address 15", uint32(15), 3, uint32(0), 3),
			Entry("address 16", uint32(16), 0, uint32(1), 0),
			Entry("address 38", uint32(38), 1, uint32(2), 2),
		)
	})

	Describe("Read operations", func() {
		It("should miss on a cold cache", func() {
			result := c.Read(5)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Index).To(Equal(1))
		})

		It("should hit after a fill", func() {
			Expect(c.FillLine(1, 0, line(100))).To(Succeed())

			result := c.Read(6)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Data).To(Equal(uint32(102)))
		})

		It("should miss on a conflicting tag", func() {
			Expect(c.FillLine(1, 0, line(100))).To(Succeed())

			Expect(c.Read(21).Hit).To(BeFalse())

			Expect(c.FillLine(1, 1, line(200))).To(Succeed())
			Expect(c.Read(21).Hit).To(BeTrue())
			Expect(c.Read(21).Data).To(Equal(uint32(201)))
			Expect(c.Read(5).Hit).To(BeFalse())
		})
	})

	Describe("Write operations", func() {
		It("should update the word in place on a hit", func() {
			Expect(c.FillLine(0, 0, line(0))).To(Succeed())

			result := c.Write(2, 99)
			Expect(result.Hit).To(BeTrue())
			Expect(c.Read(2).Data).To(Equal(uint32(99)))
		})

		It("should not allocate on a miss", func() {
			result := c.Write(2, 99)
			Expect(result.Hit).To(BeFalse())
			Expect(c.Read(2).Hit).To(BeFalse())
			Expect(c.Line(0).Valid).To(BeFalse())
		})
	})

	Describe("FillLine", func() {
		It("should reject a bad index or size", func() {
			Expect(c.FillLine(4, 0, line(0))).ToNot(Succeed())
			Expect(c.FillLine(0, 0, []uint32{1})).ToNot(Succeed())
		})

		It("should expose the installed line", func() {
			Expect(c.FillLine(2, 3, line(7))).To(Succeed())

			view := c.Line(2)
			Expect(view.Valid).To(BeTrue())
			Expect(view.Tag).To(Equal(uint32(3)))
			Expect(view.Data).To(Equal(line(7)))
		})
	})

	Describe("Invalidate", func() {
		It("should drop a present line", func() {
			Expect(c.FillLine(0, 0, line(0))).To(Succeed())

			Expect(c.Invalidate(3)).To(BeTrue())
			Expect(c.Read(3).Hit).To(BeFalse())
			Expect(c.Invalidate(3)).To(BeFalse())
		})

		It("should leave other tags alone", func() {
			Expect(c.FillLine(0, 0, line(0))).To(Succeed())

			Expect(c.Invalidate(16)).To(BeFalse())
			Expect(c.Read(0).Hit).To(BeTrue())
		})
	})

	It("should invalidate everything on reset", func() {
		Expect(c.FillLine(0, 0, line(0))).To(Succeed())
		Expect(c.FillLine(3, 1, line(8))).To(Succeed())

		c.Reset()

		Expect(c.Read(0).Hit).To(BeFalse())
		Expect(c.Read(28).Hit).To(BeFalse())
	})
})
