package memsys_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipesim/timing/cache"
	"github.com/sarchlab/pipesim/timing/memory"
	"github.com/sarchlab/pipesim/timing/memsys"
)

const (
	fetch = memsys.RequesterFetch
	data  = memsys.RequesterMemory
)

var _ = Describe("System", func() {
	var (
		store *memory.Store
		c     *cache.Cache
		sys   *memsys.System
	)

	build := func(memLatency, hitLatency uint64) {
		store = memory.NewStore(memory.Config{Words: 64, LineWords: 4, Latency: memLatency})
		c = cache.New(cache.Config{LineWords: 4, LineCount: 4})
		sys = memsys.New(memsys.Config{CacheHitLatency: hitLatency}, c, store)
		for i := uint32(0); i < 64; i++ {
			Expect(store.Poke(i, 1000+i)).To(Succeed())
		}
	}

	cycles := func(n int) {
		for i := 0; i < n; i++ {
			sys.ProcessCycle()
		}
	}

	BeforeEach(func() {
		build(4, 1)
	})

	Describe("reads", func() {
		It("should miss, fill the line, then hit", func() {
			Expect(sys.Read(5, data).Status).To(Equal(memsys.StatusWait))
			Expect(sys.HasPendingRequest(data)).To(BeTrue())

			cycles(3)
			Expect(sys.Read(5, data).Status).To(Equal(memsys.StatusWait))

			cycles(1)
			resp := sys.Read(5, data)
			Expect(resp.Status).To(Equal(memsys.StatusDone))
			Expect(resp.Source).To(Equal(memsys.SourceMemory))
			Expect(resp.Data).To(Equal(uint32(1005)))
			Expect(sys.HasPendingRequest(data)).To(BeFalse())
			Expect(c.Line(1).Valid).To(BeTrue())

			Expect(sys.Read(5, data).Status).To(Equal(memsys.StatusWait))
			cycles(1)
			resp = sys.Read(5, data)
			Expect(resp.Status).To(Equal(memsys.StatusDone))
			Expect(resp.Source).To(Equal(memsys.SourceCache))
			Expect(resp.Data).To(Equal(uint32(1005)))

			stats := sys.Stats()
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.HitRate()).To(Equal(0.5))
		})

		It("should hand results out through RequestResult once", func() {
			sys.Read(7, fetch)
			cycles(4)

			resp := sys.RequestResult(fetch)
			Expect(resp).ToNot(BeNil())
			Expect(resp.Data).To(Equal(uint32(1007)))
			Expect(sys.RequestResult(fetch)).To(BeNil())
		})

		It("should not replace an outstanding request", func() {
			Expect(sys.Read(1, fetch).Status).To(Equal(memsys.StatusWait))
			Expect(sys.Read(30, fetch).Status).To(Equal(memsys.StatusWait))

			cycles(4)
			Expect(sys.RequestResult(fetch).Data).To(Equal(uint32(1001)))
			Expect(sys.Stats().Reads).To(Equal(uint64(1)))
		})

		It("should reject addresses out of range", func() {
			resp := sys.Read(64, data)
			Expect(resp.Status).To(Equal(memsys.StatusError))
			Expect(resp.Err).To(MatchError(memory.ErrInvalidAddress))
			Expect(sys.HasPendingRequest(data)).To(BeFalse())
		})
	})

	Describe("port contention", func() {
		It("should make the second requester retry on the memory port", func() {
			Expect(sys.Read(1, fetch).Status).To(Equal(memsys.StatusWait))
			Expect(sys.IsBusyForStage(data)).To(BeTrue())

			Expect(sys.Read(40, data).Status).To(Equal(memsys.StatusBusy))
			Expect(sys.HasPendingRequest(data)).To(BeFalse())

			cycles(4)
			Expect(sys.IsBusyForStage(data)).To(BeFalse())
			Expect(sys.Read(40, data).Status).To(Equal(memsys.StatusWait))
			Expect(sys.RequestResult(fetch).Data).To(Equal(uint32(1001)))

			cycles(4)
			Expect(sys.RequestResult(data).Data).To(Equal(uint32(1040)))
			Expect(sys.Stats().Misses).To(Equal(uint64(2)))
		})

		It("should make the second requester retry on the cache port", func() {
			Expect(c.FillLine(0, 0, []uint32{1, 2, 3, 4})).To(Succeed())

			Expect(sys.Read(0, fetch).Status).To(Equal(memsys.StatusWait))
			Expect(sys.Read(1, data).Status).To(Equal(memsys.StatusBusy))

			cycles(1)
			Expect(sys.Read(1, data).Status).To(Equal(memsys.StatusWait))
			Expect(sys.RequestResult(fetch).Data).To(Equal(uint32(1)))

			cycles(1)
			Expect(sys.RequestResult(data).Data).To(Equal(uint32(2)))
			Expect(sys.Stats().Hits).To(Equal(uint64(2)))
		})

		It("should let a hit and a miss proceed together", func() {
			Expect(c.FillLine(0, 0, []uint32{1, 2, 3, 4})).To(Succeed())

			Expect(sys.Read(20, data).Status).To(Equal(memsys.StatusWait))
			Expect(sys.Read(0, fetch).Status).To(Equal(memsys.StatusWait))
		})
	})

	Describe("writes", func() {
		It("should write through to memory after the latency", func() {
			Expect(sys.Write(3, 77, data).Status).To(Equal(memsys.StatusWait))

			cycles(3)
			v, _ := store.Peek(3)
			Expect(v).To(Equal(uint32(1003)))

			cycles(1)
			Expect(sys.Write(3, 77, data).Status).To(Equal(memsys.StatusDone))
			v, _ = store.Peek(3)
			Expect(v).To(Equal(uint32(77)))
		})

		It("should update a present line and not allocate on a miss", func() {
			Expect(c.FillLine(0, 0, []uint32{1, 2, 3, 4})).To(Succeed())

			sys.Write(2, 55, data)
			Expect(c.Read(2).Data).To(Equal(uint32(55)))
			cycles(4)
			Expect(sys.RequestResult(data).Status).To(Equal(memsys.StatusDone))

			sys.Write(9, 66, data)
			Expect(c.Read(9).Hit).To(BeFalse())

			stats := sys.Stats()
			Expect(stats.Writes).To(Equal(uint64(2)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
		})

		It("should refuse a write while the memory port is held", func() {
			Expect(c.FillLine(0, 0, []uint32{1, 2, 3, 4})).To(Succeed())
			sys.Read(40, fetch)

			Expect(sys.Write(2, 55, data).Status).To(Equal(memsys.StatusBusy))
			Expect(c.Read(2).Data).To(Equal(uint32(3)))
			Expect(sys.Stats().Writes).To(BeZero())
		})

		It("should keep memory current across a conflicting eviction", func() {
			sys.Read(1, data)
			cycles(4)
			sys.RequestResult(data)

			sys.Write(1, 99, data)
			cycles(4)
			sys.RequestResult(data)

			// Address 17 maps to the same line with another tag.
			sys.Read(17, data)
			cycles(4)
			sys.RequestResult(data)
			Expect(c.Read(1).Hit).To(BeFalse())

			sys.Read(1, data)
			cycles(4)
			resp := sys.RequestResult(data)
			Expect(resp.Source).To(Equal(memsys.SourceMemory))
			Expect(resp.Data).To(Equal(uint32(99)))
		})
	})

	Context("with zero latencies", func() {
		BeforeEach(func() {
			build(0, 0)
		})

		It("should complete misses and hits at request time", func() {
			resp := sys.Read(6, fetch)
			Expect(resp.Status).To(Equal(memsys.StatusDone))
			Expect(resp.Source).To(Equal(memsys.SourceMemory))
			Expect(resp.Data).To(Equal(uint32(1006)))

			resp = sys.Read(6, fetch)
			Expect(resp.Status).To(Equal(memsys.StatusDone))
			Expect(resp.Source).To(Equal(memsys.SourceCache))

			Expect(sys.Write(6, 1, data).Status).To(Equal(memsys.StatusDone))
			Expect(store.Busy()).To(BeFalse())
		})
	})

	It("should flush a line", func() {
		sys.Read(5, data)
		cycles(4)
		sys.RequestResult(data)

		Expect(sys.Flush(5)).To(BeTrue())
		Expect(c.Read(5).Hit).To(BeFalse())
		Expect(sys.Flush(5)).To(BeFalse())
	})

	It("should reset all state", func() {
		sys.Read(5, data)
		sys.Reset()

		Expect(sys.HasPendingRequest(data)).To(BeFalse())
		Expect(store.Busy()).To(BeFalse())
		Expect(sys.Stats()).To(Equal(memsys.Statistics{}))
	})
})
