package workload_test

import (
	"bytes"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cusim/pagelist"
	"github.com/sarchlab/cusim/sim"
	"github.com/sarchlab/cusim/workload"
)

// counter tallies the event stream; safe for concurrent generators.
type counter struct {
	mu      sync.Mutex
	started map[int]bool
	fini    map[int]bool
	ins     uint64
	reads   map[int][]uint64
	writes  uint64
}

func newCounter() *counter {
	return &counter{
		started: map[int]bool{},
		fini:    map[int]bool{},
		reads:   map[int][]uint64{},
	}
}

func (c *counter) OnThreadStart(tid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[tid] = true
}

func (c *counter) OnThreadFini(tid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fini[tid] = true
}

func (c *counter) OnInstruction(tid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ins++
}

func (c *counter) OnMemRead(tid int, ip, addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads[tid] = append(c.reads[tid], addr)
}

func (c *counter) OnMemWrite(tid int, ip, addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
}

var _ = Describe("Sweep", func() {
	It("should fault in every page once and then round-robin", func() {
		c := newCounter()

		workload.Sweep(c, 0, 4, 10)

		Expect(c.started[0]).To(BeTrue())
		Expect(c.fini[0]).To(BeTrue())
		Expect(c.reads[0]).To(HaveLen(14))
		Expect(c.ins).To(Equal(uint64(14)))
		Expect(c.writes).To(BeZero())

		// Fault-in phase touches pages 0..3 in order.
		for i := 0; i < 4; i++ {
			Expect(c.reads[0][i] >> 12).To(Equal(uint64(i)))
		}
		// Sweep phase wraps around the region.
		Expect(c.reads[0][4] >> 12).To(Equal(uint64(0)))
		Expect(c.reads[0][8] >> 12).To(Equal(uint64(0)))
	})
})

var _ = Describe("HotSet", func() {
	It("should spend 80% of the touches on the last fifth of the pages", func() {
		c := newCounter()

		workload.HotSet(c, 0, 10, 100)

		touches := c.reads[0][10:] // skip fault-in
		Expect(touches).To(HaveLen(100))

		hot := 0
		for _, addr := range touches[:80] {
			if addr>>12 >= 8 { // hot set is pages 8 and 9
				hot++
			}
		}
		Expect(hot).To(Equal(80))
		for _, addr := range touches[80:] {
			Expect(addr >> 12).To(BeNumerically("<", 8))
		}
	})
})

var _ = Describe("Parallel", func() {
	It("should touch disjoint page ranges per thread", func() {
		c := newCounter()

		workload.Parallel(c, 4, 8, 100)

		for tid := 0; tid < 4; tid++ {
			Expect(c.started[tid]).To(BeTrue())
			Expect(c.fini[tid]).To(BeTrue())
			Expect(c.reads[tid]).To(HaveLen(108))
			lo := uint64(tid * 8)
			for _, addr := range c.reads[tid] {
				Expect(addr >> 12).To(SatisfyAll(
					BeNumerically(">=", lo),
					BeNumerically("<", lo+8)))
			}
		}
	})

	It("should drive the simulator to exact per-thread counts", func() {
		cfg := sim.DefaultConfig()
		cfg.L1Size = 1024
		cfg.L1Assoc = 2
		cfg.L2Size = 4096
		cfg.L2Assoc = 2
		cfg.UncompressedPages = 64
		cfg.CompressedPages = 64
		s, err := sim.New(cfg, sim.WithOutput(&bytes.Buffer{}))
		Expect(err).NotTo(HaveOccurred())

		workload.Parallel(s, 4, 8, 992)

		totals := s.ThreadSums()
		Expect(totals.Reads).To(Equal(uint64(4 * 1000)))
		Expect(totals.MemIns).To(Equal(totals.Reads))

		seen := map[uint64]bool{}
		for _, e := range s.Tier().UncompressedEntries() {
			seen[e.VPNum] = true
		}
		for _, e := range s.Tier().CompressedEntries() {
			Expect(seen[e.VPNum]).To(BeFalse())
		}
	})
})

var _ = Describe("block scatter", func() {
	It("should align every touch to a block boundary", func() {
		c := newCounter()

		workload.Sweep(c, 0, 2, 50)

		for _, addr := range c.reads[0] {
			Expect(addr % pagelist.PageSize % 64).To(BeZero())
		}
	})
})
