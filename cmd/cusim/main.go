// Package main provides the trace-driven entry point for cusim.
// It replays a memory-access trace through the two-tier page-residency
// simulator and writes the reports to the output file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cusim/sim"
	"github.com/sarchlab/cusim/trace"
)

var (
	l1size      = flag.Int("l1size", 32768, "L1 size (bytes)")
	l1assoc     = flag.Int("l1assoc", 8, "L1 associativity")
	l2size      = flag.Int("l2size", 262144, "L2 size (bytes)")
	l2assoc     = flag.Int("l2assoc", 8, "L2 associativity")
	blk         = flag.Int("blk", 64, "Cache-line size")
	unclsize    = flag.Int("unclsize", 262144, "Size of uncompressed page LRU list")
	clsize      = flag.Int("clsize", 262144, "Size of compressed page LRU list")
	unclfreq    = flag.Uint64("unclfreq", 65536, "Promotion frequency of uncompressed LRU list")
	clfreq      = flag.Uint64("clfreq", 65536, "Promotion frequency of compressed LRU list")
	exfreq      = flag.Uint64("exfreq", 65536, "Expansion frequency for promoting compressed page to uncompressed")
	report      = flag.Uint64("report", 1_000_000_000, "Instructions between progress reports")
	maxInterval = flag.Uint64("maxinterval", 100_000_000_000, "Instructions between full counter resets")
	outfile     = flag.String("outfile", "fini.out", "Output location")
	verbose     = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	cfg := sim.Config{
		L1Size:              *l1size,
		L1Assoc:             *l1assoc,
		L2Size:              *l2size,
		L2Assoc:             *l2assoc,
		BlockSize:           *blk,
		UncompressedPages:   *unclsize,
		CompressedPages:     *clsize,
		UncompressedRefresh: *unclfreq,
		CompressedRefresh:   *clfreq,
		ExpandEvery:         *exfreq,
		ReportInterval:      *report,
		MaxInterval:         *maxInterval,
	}

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

	var in io.Reader = os.Stdin
	source := "<stdin>"
	if flag.NArg() > 0 {
		source = flag.Arg(0)
		f, err := os.Open(source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	fmt.Fprintln(out, cfg.Summary())

	counts, err := trace.Replay(in, s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying %s: %v\n", source, err)
		os.Exit(1)
	}

	s.Finalize()

	if *verbose {
		fmt.Printf("Replayed: %s\n", source)
		fmt.Printf("Instructions: %d (%d reads, %d writes, %d threads)\n",
			counts.Instructions, counts.Reads, counts.Writes, counts.Threads)
	}
}
