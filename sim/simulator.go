// Package sim wires per-thread L1 caches, the shared L2, and the residency
// tier engine into the event pipeline an instrumentation host drives, and
// emits the periodic and final reports.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cusim/cache"
	"github.com/sarchlab/cusim/tier"
)

// StatPack holds the per-thread event counters. All fields are atomics;
// relaxed ordering is sufficient because only sums are ever observed.
type StatPack struct {
	Ins    atomic.Uint64
	MemIns atomic.Uint64
	Reads  atomic.Uint64
	Writes atomic.Uint64
}

// Totals is a plain snapshot of summed per-thread counters.
type Totals struct {
	Ins    uint64
	MemIns uint64
	Reads  uint64
	Writes uint64
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithOutput sets the report sink. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Simulator) {
		s.out = w
	}
}

// Simulator is the event pipeline. The instrumentation host calls
// OnThreadStart/OnThreadFini around each thread's lifetime, OnInstruction
// before every instruction, and OnMemRead/OnMemWrite for every memory
// operand; Finalize emits the final report.
type Simulator struct {
	cfg       Config
	blockMask uint64

	out       io.Writer
	outFailed atomic.Bool

	// threadMu guards growth of the per-thread slices. The hot path only
	// takes the read lock to index them.
	threadMu sync.RWMutex
	l1       []*cache.Cache
	stats    []*StatPack
	// retiredL1 accumulates the counters of L1 caches released by
	// OnThreadFini so they still appear in later reports.
	retiredL1 cache.Stats

	l2Mu sync.Mutex
	l2   *cache.Cache

	tier *tier.Engine

	globalIns  atomic.Uint64
	lastReport atomic.Uint64
	lastReset  atomic.Uint64
	resetMu    sync.Mutex
}

// New creates a simulator. The configuration is validated; an invalid knob is
// returned as an error so the caller can treat it as fatal.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:       cfg,
		blockMask: uint64(cfg.BlockSize - 1),
		out:       os.Stdout,
		l2:        cache.New(cfg.l2CacheConfig()),
		tier:      tier.NewEngine(cfg.tierConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tier returns the residency engine.
func (s *Simulator) Tier() *tier.Engine {
	return s.tier
}

// OnThreadStart allocates the L1 cache and stat pack for tid, growing the
// per-thread vectors if needed. Thread ids are dense non-negative integers
// assigned by the event source.
func (s *Simulator) OnThreadStart(tid int) {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	for tid >= len(s.l1) {
		s.l1 = append(s.l1, nil)
		s.stats = append(s.stats, nil)
	}
	s.l1[tid] = cache.New(s.cfg.l1CacheConfig())
	s.stats[tid] = &StatPack{}
}

// OnThreadFini releases the L1 cache of tid. The stat pack stays for the
// final report.
func (s *Simulator) OnThreadFini(tid int) {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	if tid >= 0 && tid < len(s.l1) && s.l1[tid] != nil {
		st := s.l1[tid].Stats()
		s.retiredL1.Accesses += st.Accesses
		s.retiredL1.Misses += st.Misses
		s.l1[tid] = nil
	}
}

// thread returns tid's L1 and stat pack, or nils for an unknown tid.
func (s *Simulator) thread(tid int) (*cache.Cache, *StatPack) {
	s.threadMu.RLock()
	defer s.threadMu.RUnlock()
	if tid < 0 || tid >= len(s.l1) {
		return nil, nil
	}
	return s.l1[tid], s.stats[tid]
}

// OnMemRead records one read at byte address addr by thread tid.
func (s *Simulator) OnMemRead(tid int, ip, addr uint64) {
	s.onMemAccess(tid, addr, false)
}

// OnMemWrite records one write at byte address addr by thread tid.
func (s *Simulator) OnMemWrite(tid int, ip, addr uint64) {
	s.onMemAccess(tid, addr, true)
}

func (s *Simulator) onMemAccess(tid int, addr uint64, isWrite bool) {
	s.tier.Advance()

	l1, pack := s.thread(tid)
	if l1 == nil || pack == nil {
		fmt.Fprintf(os.Stderr, "sim: memory event for unknown thread %d\n", tid)
		return
	}

	pack.MemIns.Add(1)
	if isWrite {
		pack.Writes.Add(1)
	} else {
		pack.Reads.Add(1)
	}

	blockAddr := addr &^ s.blockMask
	if l1.Access(blockAddr, isWrite, nil, nil) {
		return
	}

	s.l2Mu.Lock()
	l2Hit := s.l2.Access(blockAddr, isWrite,
		func(a uint64, dirty bool) { l1.Install(a, dirty) },
		func(uint64) {})
	s.l2Mu.Unlock()

	if !l2Hit {
		s.tier.OnMiss(addr)
	}
}

// OnInstruction records one instruction executed by thread tid and, when the
// global count crosses the report interval since the last report, elects this
// thread to emit the report. When the max interval has also been crossed
// since the last reset, that report is followed by a reset of every counter.
func (s *Simulator) OnInstruction(tid int) {
	_, pack := s.thread(tid)
	if pack == nil {
		fmt.Fprintf(os.Stderr, "sim: instruction event for unknown thread %d\n", tid)
		return
	}
	pack.Ins.Add(1)

	cur := s.globalIns.Add(1)
	last := s.lastReport.Load()
	if cur-last <= s.cfg.ReportInterval || !s.lastReport.CompareAndSwap(last, cur) {
		return
	}
	s.report(cur)
	if lr := s.lastReset.Load(); cur-lr > s.cfg.MaxInterval &&
		s.lastReset.CompareAndSwap(lr, cur) {
		s.resetAll()
	}
}

// TotalInstructions returns the global instruction count.
func (s *Simulator) TotalInstructions() uint64 {
	return s.globalIns.Load()
}

// L1Stats returns the summed counters of all live per-thread L1 caches plus
// those of caches already released by OnThreadFini.
func (s *Simulator) L1Stats() cache.Stats {
	s.threadMu.RLock()
	defer s.threadMu.RUnlock()
	agg := s.retiredL1
	for _, c := range s.l1 {
		if c == nil {
			continue
		}
		st := c.Stats()
		agg.Accesses += st.Accesses
		agg.Misses += st.Misses
	}
	return agg
}

// L2Stats returns the shared L2 counters.
func (s *Simulator) L2Stats() cache.Stats {
	return s.l2.Stats()
}

// ThreadTotals returns tid's counters and whether the thread is known.
func (s *Simulator) ThreadTotals(tid int) (Totals, bool) {
	_, pack := s.thread(tid)
	if pack == nil {
		return Totals{}, false
	}
	return Totals{
		Ins:    pack.Ins.Load(),
		MemIns: pack.MemIns.Load(),
		Reads:  pack.Reads.Load(),
		Writes: pack.Writes.Load(),
	}, true
}

// ThreadSums returns the counters summed over every thread.
func (s *Simulator) ThreadSums() Totals {
	s.threadMu.RLock()
	defer s.threadMu.RUnlock()
	var t Totals
	for _, pack := range s.stats {
		if pack == nil {
			continue
		}
		t.Ins += pack.Ins.Load()
		t.MemIns += pack.MemIns.Load()
		t.Reads += pack.Reads.Load()
		t.Writes += pack.Writes.Load()
	}
	return t
}

// resetAll zeroes every statistic in the pipeline: cache counters, tier
// counters, per-page access counts, and per-thread stat packs. LRU orders in
// both residency lists are preserved.
func (s *Simulator) resetAll() {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	s.threadMu.Lock()
	s.retiredL1 = cache.Stats{}
	for _, c := range s.l1 {
		if c != nil {
			c.ResetStats()
		}
	}
	for _, pack := range s.stats {
		if pack == nil {
			continue
		}
		pack.Ins.Store(0)
		pack.MemIns.Store(0)
		pack.Reads.Store(0)
		pack.Writes.Store(0)
	}
	s.threadMu.Unlock()

	s.l2.ResetStats()
	s.tier.ResetCounters()
}
