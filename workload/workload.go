// Package workload generates synthetic access patterns against the simulator
// callbacks, mirroring the residency microbenchmarks: a round-robin sweep, a
// hot-set hammer, and a multi-threaded sweep over disjoint ranges.
package workload

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/cusim/pagelist"
	"github.com/sarchlab/cusim/trace"
)

// touch issues one read-at-addr instruction.
func touch(h trace.Hooks, tid int, addr uint64) {
	h.OnInstruction(tid)
	h.OnMemRead(tid, 0, addr)
}

// blockOffset scatters an access inside its page so consecutive touches of
// the same page usually land on different cache blocks; two touches can
// still pick the same block. The scatter is a deterministic hash of the
// iteration counter, keeping runs reproducible.
func blockOffset(iter uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], iter)
	blocks := uint64(pagelist.PageSize / 64)
	return (xxhash.Sum64(buf[:]) % blocks) * 64
}

// Sweep touches every page of an rssPages region once, then round-robins
// iters read touches over the whole region on thread tid.
func Sweep(h trace.Hooks, tid, rssPages, iters int) {
	h.OnThreadStart(tid)
	sweepRange(h, tid, 0, rssPages, iters)
	h.OnThreadFini(tid)
}

func sweepRange(h trace.Hooks, tid, firstPage, pages, iters int) {
	base := uint64(firstPage) * pagelist.PageSize
	for i := 0; i < pages; i++ {
		touch(h, tid, base+uint64(i)*pagelist.PageSize)
	}
	for i := 0; i < iters; i++ {
		page := uint64(i % pages)
		touch(h, tid, base+page*pagelist.PageSize+blockOffset(uint64(i)))
	}
}

// HotSet splits an rssPages region 20/80: the last fifth of the pages is the
// hot set. The first 80% of iters hammer the hot set, the remaining touches
// sweep the cold pages.
func HotSet(h trace.Hooks, tid, rssPages, iters int) {
	hotPages := rssPages * 20 / 100
	if hotPages < 1 {
		hotPages = 1
	}
	if hotPages > rssPages {
		hotPages = rssPages
	}
	coldPages := rssPages - hotPages
	if coldPages < 1 {
		coldPages = 1
	}
	hotStart := uint64(rssPages-hotPages) * pagelist.PageSize

	h.OnThreadStart(tid)

	for i := 0; i < rssPages; i++ {
		touch(h, tid, uint64(i)*pagelist.PageSize)
	}

	hotIters := iters * 80 / 100
	for i := 0; i < hotIters; i++ {
		page := uint64(i % hotPages)
		touch(h, tid, hotStart+page*pagelist.PageSize+blockOffset(uint64(i)))
	}
	for i := 0; i < iters-hotIters; i++ {
		page := uint64(i % coldPages)
		touch(h, tid, page*pagelist.PageSize+blockOffset(uint64(i)))
	}

	h.OnThreadFini(tid)
}

// Parallel runs threads goroutines, each sweeping its own disjoint range of
// pagesPerThread pages with iters touches. Thread t owns pages
// [t*pagesPerThread, (t+1)*pagesPerThread).
func Parallel(h trace.Hooks, threads, pagesPerThread, iters int) {
	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			h.OnThreadStart(tid)
			sweepRange(h, tid, tid*pagesPerThread, pagesPerThread, iters)
			h.OnThreadFini(tid)
		}(t)
	}
	wg.Wait()
}
