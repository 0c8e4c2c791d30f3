package sim

import (
	"fmt"
	"os"
)

// writef writes to the report sink. A write failure is reported once on
// stderr and further output is dropped so the simulation is not lost.
func (s *Simulator) writef(format string, args ...interface{}) {
	if s.outFailed.Load() {
		return
	}
	if _, err := fmt.Fprintf(s.out, format, args...); err != nil {
		if s.outFailed.CompareAndSwap(false, true) {
			fmt.Fprintf(os.Stderr, "sim: report sink failed, output suppressed: %v\n", err)
		}
	}
}

func mpki(misses, instructions uint64) float64 {
	if instructions == 0 {
		return 0
	}
	return 1000 * float64(misses) / float64(instructions)
}

func pctOf(count, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(count) / float64(total)
}

// report emits the periodic progress report at the given instruction count.
func (s *Simulator) report(instructions uint64) {
	l1 := s.L1Stats()
	l2 := s.L2Stats()
	t := s.tier.Stats()

	s.writef("\n[Report @ %d instructions]\n", instructions)
	s.writef("  L1 accesses : %d\n  misses: %d\n  MPKI: %.2f\n",
		l1.Accesses, l1.Misses, mpki(l1.Misses, instructions))
	s.writef("  L2 accesses : %d\n  misses: %d\n  MPKI: %.2f\n",
		l2.Accesses, l2.Misses, mpki(l2.Misses, instructions))
	s.writef("\n  Clist Accesses: %d\n  Unclist Accesses: %d\n  Cpage   Accesses: %d\n",
		t.CompressedAccesses, t.UncompressedAccesses, t.CompressedPageAccesses)
}

// Finalize emits the final report: per-thread aggregates, cache counters with
// MPKI, and the tier counters both absolutely and relative to L2 misses.
func (s *Simulator) Finalize() {
	sums := s.ThreadSums()
	l1 := s.L1Stats()
	l2 := s.L2Stats()
	t := s.tier.Stats()

	s.writef("\n=========== Cache-Sim Report ============\n")
	s.writef("Total instructions       : %d\n", sums.Ins)
	s.writef("  memory instructions    : %d\n", sums.MemIns)
	s.writef("    reads                : %d\n", sums.Reads)
	s.writef("    writes               : %d\n\n", sums.Writes)

	s.writef("L1 accesses              : %d   misses: %d   MPKI: %.5f\n",
		l1.Accesses, l1.Misses, mpki(l1.Misses, sums.Ins))
	s.writef("L2 accesses              : %d   misses: %d   MPKI: %.5f\n",
		l2.Accesses, l2.Misses, mpki(l2.Misses, sums.Ins))

	s.writef("\n  Clist Accesses: %d (%.5f%%)\n", t.CompressedAccesses,
		pctOf(t.CompressedAccesses, l2.Misses))
	s.writef("  Unclist Accesses: %d (%.5f%%)\n", t.UncompressedAccesses,
		pctOf(t.UncompressedAccesses, l2.Misses))
	s.writef("  Cpage   Accesses: %d (%.5f%%)\n", t.CompressedPageAccesses,
		pctOf(t.CompressedPageAccesses, l2.Misses))
	s.writef("==========================================\n")
}
