package tier_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cusim/pagelist"
	"github.com/sarchlab/cusim/tier"
)

func page(n uint64) uint64 {
	return n * pagelist.PageSize
}

func pageNums(entries []pagelist.Entry) []uint64 {
	nums := make([]uint64, len(entries))
	for i, e := range entries {
		nums[i] = e.VPNum
	}
	return nums
}

// miss feeds one memory access that misses the last level: the epoch tick
// followed by the miss classification.
func miss(e *tier.Engine, addr uint64) {
	e.Advance()
	e.OnMiss(addr)
}

// never is a frequency high enough that its gate cannot fire in these specs.
const never = 1_000_000_000

var _ = Describe("Engine", func() {
	newEngine := func(unclfreq, clfreq, exfreq uint64) *tier.Engine {
		return tier.NewEngine(tier.Config{
			UncompressedPages:   2,
			CompressedPages:     2,
			UncompressedRefresh: unclfreq,
			CompressedRefresh:   clfreq,
			ExpandEvery:         exfreq,
		})
	}

	Describe("warm-up", func() {
		It("should fill the uncompressed list first, then the compressed list", func() {
			e := newEngine(never, never, never)

			miss(e, page(0))
			miss(e, page(1))
			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{1, 0}))
			Expect(e.CompressedEntries()).To(BeEmpty())

			miss(e, page(2))
			miss(e, page(3))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{3, 2}))
		})

		It("should not count warm-up fills", func() {
			e := newEngine(never, never, never)

			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			Expect(e.Stats()).To(Equal(tier.Stats{}))
		})

		It("should re-touch a page already filling the uncompressed list", func() {
			e := newEngine(never, never, never)

			miss(e, page(0))
			miss(e, page(0))

			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{0}))
			Expect(e.UncompressedEntries()[0].AccessCount).To(Equal(uint64(2)))
			Expect(e.Stats()).To(Equal(tier.Stats{}))
		})
	})

	Describe("hit accounting after warm-up", func() {
		var e *tier.Engine

		BeforeEach(func() {
			e = newEngine(never, never, never)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))
		})

		It("should count an uncompressed hit without reordering below the refresh gate", func() {
			miss(e, page(0))

			Expect(e.Stats().UncompressedAccesses).To(Equal(uint64(1)))
			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{1, 0}))
			Expect(e.UncompressedEntries()[1].AccessCount).To(Equal(uint64(2)))
		})

		It("should count a compressed hit without reordering below the refresh gate", func() {
			miss(e, page(2))

			Expect(e.Stats().CompressedAccesses).To(Equal(uint64(1)))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{3, 2}))
		})

		It("should count an off-tier page as a compressed-page access", func() {
			miss(e, page(9))

			Expect(e.Stats()).To(Equal(tier.Stats{CompressedPageAccesses: 1}))
			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{1, 0}))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{3, 2}))
		})
	})

	Describe("refresh gates", func() {
		It("should rewrite uncompressed order once the uc epoch is due", func() {
			e := newEngine(3, never, never)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			miss(e, page(0)) // uc epoch 5 >= 3

			Expect(e.Stats().UncompressedAccesses).To(Equal(uint64(1)))
			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{0, 1}))
			uc, _ := e.Epochs()
			Expect(uc).To(BeZero())
		})

		It("should admit an off-tier page into the compressed list once the cl epoch is due", func() {
			e := newEngine(never, 3, never)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			miss(e, page(9)) // cl epoch 5 >= 3: admit, evicting the LRU

			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{9, 3}))
			Expect(e.Stats()).To(Equal(tier.Stats{CompressedPageAccesses: 1}))
			_, cl := e.Epochs()
			Expect(cl).To(BeZero())
		})
	})

	Describe("promotion", func() {
		It("should swap the hottest compressed page with the uncompressed LRU", func() {
			e := newEngine(never, never, 4)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			// uc epoch is 5 >= 4: the gate fires. All compressed counts tie
			// at 1, so the MRU entry (3) promotes; uncompressed LRU (0)
			// demotes. The access then lands on the compressed list.
			miss(e, page(2))

			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{3, 1}))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{2, 0}))
			Expect(e.Stats().CompressedAccesses).To(Equal(uint64(1)))
		})

		It("should reset only the uc epoch", func() {
			e := newEngine(never, never, 4)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			miss(e, page(2))

			uc, cl := e.Epochs()
			Expect(uc).To(BeZero())
			Expect(cl).To(Equal(uint64(5)))
		})

		It("should eventually promote a hammered compressed page", func() {
			e := newEngine(never, never, 4)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			// First gate: tie promotes 3, demotes 0.
			miss(e, page(2))
			// Three more hits heat page 2 up to the next gate.
			miss(e, page(2))
			miss(e, page(2))
			miss(e, page(2))
			miss(e, page(2)) // uc epoch 4 >= 4: promotes 2, demotes 1

			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{2, 3}))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{0, 1}))
			Expect(e.Stats().UncompressedAccesses).To(Equal(uint64(1)))
			Expect(e.Stats().CompressedAccesses).To(Equal(uint64(4)))
		})

		It("should keep the lists the same size and disjoint across gates", func() {
			e := newEngine(1, 1, 1)
			for i := uint64(0); i < 64; i++ {
				miss(e, page(i%7))
			}

			unc := pageNums(e.UncompressedEntries())
			cl := pageNums(e.CompressedEntries())
			Expect(unc).To(HaveLen(2))
			Expect(cl).To(HaveLen(2))
			seen := map[uint64]bool{}
			for _, n := range unc {
				seen[n] = true
			}
			for _, n := range cl {
				Expect(seen[n]).To(BeFalse())
			}
		})

		It("should promote at most one pair per gate on ties", func() {
			e := newEngine(never, never, 1)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))

			before := pageNums(e.CompressedEntries())
			miss(e, page(9)) // gate fires with all counts tied

			after := pageNums(e.CompressedEntries())
			moved := 0
			wasCompressed := map[uint64]bool{}
			for _, n := range before {
				wasCompressed[n] = true
			}
			for _, n := range pageNums(e.UncompressedEntries()) {
				if wasCompressed[n] {
					moved++
				}
			}
			Expect(moved).To(Equal(1))
			Expect(after).To(HaveLen(2))
		})
	})

	Describe("ResetCounters", func() {
		It("should zero the counters and per-page counts, preserving order", func() {
			e := newEngine(never, never, never)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))
			miss(e, page(0))
			miss(e, page(2))
			miss(e, page(9))

			uncBefore := pageNums(e.UncompressedEntries())
			clBefore := pageNums(e.CompressedEntries())

			e.ResetCounters()

			Expect(e.Stats()).To(Equal(tier.Stats{}))
			Expect(pageNums(e.UncompressedEntries())).To(Equal(uncBefore))
			Expect(pageNums(e.CompressedEntries())).To(Equal(clBefore))
			for _, entry := range e.UncompressedEntries() {
				Expect(entry.AccessCount).To(BeZero())
			}
			for _, entry := range e.CompressedEntries() {
				Expect(entry.AccessCount).To(BeZero())
			}
		})

		It("should make the next promotion gate a no-op until a count rises", func() {
			e := newEngine(never, never, 4)
			miss(e, page(0))
			miss(e, page(1))
			miss(e, page(2))
			miss(e, page(3))
			e.ResetCounters()

			// Gate fires, but every compressed count is zero: no candidate.
			miss(e, page(9))

			Expect(pageNums(e.UncompressedEntries())).To(Equal([]uint64{1, 0}))
			Expect(pageNums(e.CompressedEntries())).To(Equal([]uint64{3, 2}))
		})
	})
})
