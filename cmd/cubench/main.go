// Package main drives the synthetic residency workloads through the
// simulator: a round-robin sweep, a 20/80 hot-set hammer, or a multi-threaded
// sweep over disjoint page ranges.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/cusim/sim"
	"github.com/sarchlab/cusim/workload"
)

var (
	pattern  = flag.String("pattern", "sweep", "Workload: sweep, hotset, or parallel")
	pages    = flag.Int("pages", 4096, "Working-set size in pages (per thread for parallel)")
	iters    = flag.Int("iters", 1_000_000, "Touches after fault-in (per thread for parallel)")
	threads  = flag.Int("threads", 4, "Thread count for the parallel workload")
	l1size   = flag.Int("l1size", 32768, "L1 size (bytes)")
	l1assoc  = flag.Int("l1assoc", 8, "L1 associativity")
	l2size   = flag.Int("l2size", 262144, "L2 size (bytes)")
	l2assoc  = flag.Int("l2assoc", 8, "L2 associativity")
	blk      = flag.Int("blk", 64, "Cache-line size")
	unclsize = flag.Int("unclsize", 819, "Size of uncompressed page LRU list")
	clsize   = flag.Int("clsize", 3277, "Size of compressed page LRU list")
	unclfreq = flag.Uint64("unclfreq", 65536, "Promotion frequency of uncompressed LRU list")
	clfreq   = flag.Uint64("clfreq", 65536, "Promotion frequency of compressed LRU list")
	exfreq   = flag.Uint64("exfreq", 65536, "Expansion frequency for promoting compressed page to uncompressed")
	outfile  = flag.String("outfile", "bench.out", "Output location")
)

func main() {
	flag.Parse()

	cfg := sim.DefaultConfig()
	cfg.L1Size = *l1size
	cfg.L1Assoc = *l1assoc
	cfg.L2Size = *l2size
	cfg.L2Assoc = *l2assoc
	cfg.BlockSize = *blk
	cfg.UncompressedPages = *unclsize
	cfg.CompressedPages = *clsize
	cfg.UncompressedRefresh = *unclfreq
	cfg.CompressedRefresh = *clfreq
	cfg.ExpandEvery = *exfreq

	out, err := os.Create(*outfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output file: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	s, err := sim.New(cfg, sim.WithOutput(out))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(out, cfg.Summary())

	switch *pattern {
	case "sweep":
		workload.Sweep(s, 0, *pages, *iters)
	case "hotset":
		workload.HotSet(s, 0, *pages, *iters)
	case "parallel":
		workload.Parallel(s, *threads, *pages, *iters)
	default:
		fmt.Fprintf(os.Stderr, "Unknown pattern %q (want sweep, hotset, or parallel)\n", *pattern)
		os.Exit(1)
	}

	s.Finalize()

	fmt.Printf("%s done: %d instructions, results in %s\n",
		*pattern, s.TotalInstructions(), *outfile)
}
