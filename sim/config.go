package sim

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/sarchlab/cusim/cache"
	"github.com/sarchlab/cusim/tier"
)

// Config holds every tunable knob of the simulator.
type Config struct {
	// L1Size is the per-thread L1 size in bytes. Default: 32768.
	L1Size int

	// L1Assoc is the L1 associativity. Default: 8.
	L1Assoc int

	// L2Size is the shared L2 size in bytes. Default: 262144.
	L2Size int

	// L2Assoc is the L2 associativity. Default: 8.
	L2Assoc int

	// BlockSize is the cache line size in bytes for both levels. Default: 64.
	BlockSize int

	// UncompressedPages is the capacity of the uncompressed residency list.
	// Default: 262144.
	UncompressedPages int

	// CompressedPages is the capacity of the compressed residency list.
	// Default: 262144.
	CompressedPages int

	// UncompressedRefresh gates LRU refresh of the uncompressed list.
	// Default: 65536.
	UncompressedRefresh uint64

	// CompressedRefresh gates LRU refresh and slow admission of the
	// compressed list. Default: 65536.
	CompressedRefresh uint64

	// ExpandEvery gates promotion of the hottest compressed page.
	// Default: 65536.
	ExpandEvery uint64

	// ReportInterval is the instruction distance between periodic reports.
	// Default: 1e9.
	ReportInterval uint64

	// MaxInterval is the instruction distance that additionally triggers a
	// full counter reset. Default: 1e11.
	MaxInterval uint64
}

// DefaultConfig returns the default knob values.
func DefaultConfig() Config {
	return Config{
		L1Size:              32768,
		L1Assoc:             8,
		L2Size:              262144,
		L2Assoc:             8,
		BlockSize:           64,
		UncompressedPages:   262144,
		CompressedPages:     262144,
		UncompressedRefresh: 65536,
		CompressedRefresh:   65536,
		ExpandEvery:         65536,
		ReportInterval:      1_000_000_000,
		MaxInterval:         100_000_000_000,
	}
}

// l1CacheConfig returns the geometry of one per-thread L1.
func (c Config) l1CacheConfig() cache.Config {
	return cache.Config{
		Size:          c.L1Size,
		Associativity: c.L1Assoc,
		BlockSize:     c.BlockSize,
	}
}

// l2CacheConfig returns the geometry of the shared L2.
func (c Config) l2CacheConfig() cache.Config {
	return cache.Config{
		Size:          c.L2Size,
		Associativity: c.L2Assoc,
		BlockSize:     c.BlockSize,
	}
}

// tierConfig returns the residency-tier knobs.
func (c Config) tierConfig() tier.Config {
	return tier.Config{
		UncompressedPages:   c.UncompressedPages,
		CompressedPages:     c.CompressedPages,
		UncompressedRefresh: c.UncompressedRefresh,
		CompressedRefresh:   c.CompressedRefresh,
		ExpandEvery:         c.ExpandEvery,
	}
}

// Validate checks every knob. An invalid configuration is a fatal startup
// error for the commands.
func (c Config) Validate() error {
	if err := c.l1CacheConfig().Validate(); err != nil {
		return errors.Wrap(err, "l1")
	}
	if err := c.l2CacheConfig().Validate(); err != nil {
		return errors.Wrap(err, "l2")
	}
	if c.UncompressedPages < 1 {
		return errors.Errorf("unclsize %d must be >= 1", c.UncompressedPages)
	}
	if c.CompressedPages < 1 {
		return errors.Errorf("clsize %d must be >= 1", c.CompressedPages)
	}
	if c.UncompressedRefresh < 1 {
		return errors.Errorf("unclfreq %d must be >= 1", c.UncompressedRefresh)
	}
	if c.CompressedRefresh < 1 {
		return errors.Errorf("clfreq %d must be >= 1", c.CompressedRefresh)
	}
	if c.ExpandEvery < 1 {
		return errors.Errorf("exfreq %d must be >= 1", c.ExpandEvery)
	}
	if c.ReportInterval < 1 {
		return errors.Errorf("report interval %d must be >= 1", c.ReportInterval)
	}
	if c.MaxInterval < c.ReportInterval {
		return errors.Errorf("max interval %d must be >= report interval %d",
			c.MaxInterval, c.ReportInterval)
	}
	return nil
}

// Summary renders the configuration for the top of the output file.
func (c Config) Summary() string {
	return fmt.Sprintf(
		"cusim configuration\n"+
			"  L1    : %s, %d-way, %d B lines (per thread)\n"+
			"  L2    : %s, %d-way, %d B lines (shared)\n"+
			"  tiers : %d uncompressed / %d compressed pages\n"+
			"  freqs : unclist %d, clist %d, expand %d\n",
		humanize.IBytes(uint64(c.L1Size)), c.L1Assoc, c.BlockSize,
		humanize.IBytes(uint64(c.L2Size)), c.L2Assoc, c.BlockSize,
		c.UncompressedPages, c.CompressedPages,
		c.UncompressedRefresh, c.CompressedRefresh, c.ExpandEvery)
}
