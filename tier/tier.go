// Package tier models two-tier page residency: a fixed number of pages held
// uncompressed, a larger pool held compressed, and a promotion protocol moving
// hot compressed pages up. The engine consumes last-level cache misses and
// keeps per-tier access counters.
package tier

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cusim/pagelist"
)

// Config holds the residency-tier knobs.
type Config struct {
	// UncompressedPages is the capacity of the uncompressed list.
	UncompressedPages int

	// CompressedPages is the capacity of the compressed list.
	CompressedPages int

	// UncompressedRefresh gates how often an uncompressed-list hit rewrites
	// the LRU order instead of only bumping the access count.
	UncompressedRefresh uint64

	// CompressedRefresh gates LRU-order refresh on compressed-list hits and
	// the slow admission of new pages into the compressed list.
	CompressedRefresh uint64

	// ExpandEvery gates promotion of the hottest compressed page into the
	// uncompressed list.
	ExpandEvery uint64
}

// Stats is a snapshot of the per-tier access counters.
type Stats struct {
	// UncompressedAccesses counts misses that landed on an uncompressed page.
	UncompressedAccesses uint64

	// CompressedAccesses counts misses that landed on a compressed-list page.
	CompressedAccesses uint64

	// CompressedPageAccesses counts misses on pages outside both lists,
	// including the slow-admission path.
	CompressedPageAccesses uint64
}

// Engine orchestrates the two residency lists. OnMiss must be fed every
// last-level miss; Advance must be called once per memory access so the epoch
// counters tick.
//
// Lock order: uncMu before cMu, never reversed. Only the promotion path holds
// both at once.
type Engine struct {
	cfg Config

	uncMu       sync.Mutex
	unclist     *pagelist.PageList
	uncAccesses uint64

	cMu        sync.Mutex
	clist      *pagelist.PageList
	clAccesses uint64

	cpageMu       sync.Mutex
	cpageAccesses uint64

	ucEpoch atomic.Uint64
	clEpoch atomic.Uint64
}

// NewEngine creates an engine with empty lists.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		unclist: pagelist.New(cfg.UncompressedPages),
		clist:   pagelist.New(cfg.CompressedPages),
	}
}

// Advance ticks both epoch counters. Called once per memory access, hit or
// miss.
func (e *Engine) Advance() {
	e.ucEpoch.Add(1)
	e.clEpoch.Add(1)
}

// Epochs returns the current epoch counter values.
func (e *Engine) Epochs() (uc, cl uint64) {
	return e.ucEpoch.Load(), e.clEpoch.Load()
}

// OnMiss classifies one last-level miss on the page containing addr.
//
// The steps run in strict order: warm-up fill of the uncompressed list, then
// of the compressed list; once both are full, a promotion swap gated by the
// uc epoch; then hit bookkeeping on the uncompressed list, on the compressed
// list, slow admission into the compressed list gated by the cl epoch, and
// finally plain compressed-page accounting. The promotion gate checks and
// resets only the uc epoch while the cl epoch keeps ticking; the asymmetry is
// intentional.
func (e *Engine) OnMiss(addr uint64) {
	e.uncMu.Lock()
	if !e.unclist.IsFull() {
		e.unclist.Touch(addr)
		e.uncMu.Unlock()
		return
	}
	e.uncMu.Unlock()

	e.cMu.Lock()
	if !e.clist.IsFull() {
		e.clist.Touch(addr)
		e.cMu.Unlock()
		return
	}
	e.cMu.Unlock()

	// Both lists full: promote the hottest compressed page if due.
	e.uncMu.Lock()
	e.cMu.Lock()
	if e.ucEpoch.Load() >= e.cfg.ExpandEvery {
		e.clist.SwapWith(e.unclist)
		e.ucEpoch.Store(0)
		e.checkLists()
	}
	e.cMu.Unlock()
	e.uncMu.Unlock()

	e.uncMu.Lock()
	if e.unclist.Find(addr) != nil {
		e.uncAccesses++
		if e.ucEpoch.Load() >= e.cfg.UncompressedRefresh {
			e.unclist.Touch(addr)
			e.ucEpoch.Store(0)
		} else {
			e.unclist.IncrementCount(addr)
		}
		e.uncMu.Unlock()
		return
	}
	e.uncMu.Unlock()

	e.cMu.Lock()
	if e.clist.Find(addr) != nil {
		e.clAccesses++
		if e.clEpoch.Load() >= e.cfg.CompressedRefresh {
			e.clist.Touch(addr)
			e.clEpoch.Store(0)
		} else {
			e.clist.IncrementCount(addr)
		}
		e.cMu.Unlock()
		return
	}

	if e.clEpoch.Load() >= e.cfg.CompressedRefresh {
		// Slow admission: the new page displaces the compressed LRU but is
		// still accounted as a compressed-page access.
		e.clist.Touch(addr)
		e.clEpoch.Store(0)
		e.cMu.Unlock()
		e.countCPage()
		return
	}
	e.cMu.Unlock()

	e.countCPage()
}

func (e *Engine) countCPage() {
	e.cpageMu.Lock()
	e.cpageAccesses++
	e.cpageMu.Unlock()
}

// checkLists validates both lists after a swap. Callers hold uncMu and cMu.
// A violation indicates a bug; it is logged and the simulation continues.
func (e *Engine) checkLists() {
	if err := e.unclist.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tier: uncompressed list invariant: %v\n", err)
	}
	if err := e.clist.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tier: compressed list invariant: %v\n", err)
	}
}

// Stats returns a snapshot of the per-tier access counters.
func (e *Engine) Stats() Stats {
	var s Stats
	e.uncMu.Lock()
	s.UncompressedAccesses = e.uncAccesses
	e.uncMu.Unlock()
	e.cMu.Lock()
	s.CompressedAccesses = e.clAccesses
	e.cMu.Unlock()
	e.cpageMu.Lock()
	s.CompressedPageAccesses = e.cpageAccesses
	e.cpageMu.Unlock()
	return s
}

// ResetCounters zeroes the per-tier access counters and every per-page access
// count in both lists. List order is preserved; the epoch counters keep
// ticking.
func (e *Engine) ResetCounters() {
	e.uncMu.Lock()
	e.uncAccesses = 0
	e.unclist.ResetCounters()
	e.uncMu.Unlock()

	e.cMu.Lock()
	e.clAccesses = 0
	e.clist.ResetCounters()
	e.cMu.Unlock()

	e.cpageMu.Lock()
	e.cpageAccesses = 0
	e.cpageMu.Unlock()
}

// UncompressedEntries returns a copy of the uncompressed list, MRU to LRU.
func (e *Engine) UncompressedEntries() []pagelist.Entry {
	e.uncMu.Lock()
	defer e.uncMu.Unlock()
	return e.unclist.Entries()
}

// CompressedEntries returns a copy of the compressed list, MRU to LRU.
func (e *Engine) CompressedEntries() []pagelist.Entry {
	e.cMu.Lock()
	defer e.cMu.Unlock()
	return e.clist.Entries()
}
