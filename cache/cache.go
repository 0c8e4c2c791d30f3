// Package cache models a set-associative write-back cache with true LRU
// replacement, using Akita cache components for tag and state bookkeeping.
package cache

import (
	"math/bits"
	"sync/atomic"

	"github.com/pkg/errors"
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds the geometry of one cache instance.
type Config struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways per set).
	Associativity int
	// BlockSize in bytes (cache line size).
	BlockSize int
}

// NumSets returns the number of sets implied by the geometry.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// BlockLog2 returns log2 of the block size.
func (c Config) BlockLog2() int {
	return bits.Len(uint(c.BlockSize)) - 1
}

// Validate checks that the geometry is consistent: power-of-two size and block
// size, at least one way, and a power-of-two set count so the set index can be
// taken by masking.
func (c Config) Validate() error {
	if c.Size <= 0 || !isPowerOfTwo(c.Size) {
		return errors.Errorf("cache size %d must be a positive power of two", c.Size)
	}
	if c.BlockSize < 1 || !isPowerOfTwo(c.BlockSize) {
		return errors.Errorf("block size %d must be a positive power of two", c.BlockSize)
	}
	if c.Associativity < 1 {
		return errors.Errorf("associativity %d must be >= 1", c.Associativity)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return errors.Errorf(
			"cache size %d is not divisible by %d ways x %d-byte blocks",
			c.Size, c.Associativity, c.BlockSize)
	}
	sets := c.NumSets()
	if sets < 1 || !isPowerOfTwo(sets) {
		return errors.Errorf(
			"geometry %d/%d-way/%dB yields %d sets, want a positive power of two",
			c.Size, c.Associativity, c.BlockSize, sets)
	}
	return nil
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// Installer receives a block leaving this cache so the parent level can
// install a copy.
type Installer func(addr uint64, dirty bool)

// Writeback receives the address of a dirty block leaving this cache.
type Writeback func(addr uint64)

// Stats is a snapshot of the access counters.
type Stats struct {
	Accesses uint64
	Misses   uint64
}

// Cache is one set-associative cache instance. The directory stores the full
// block-aligned address as the tag, so evicted addresses are read straight
// from the victim block.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	accesses atomic.Uint64
	misses   atomic.Uint64

	wbInstall Writeback
}

// New creates a cache with the given geometry. The configuration must have
// been validated.
func New(config Config) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache geometry.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns a snapshot of the access counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Accesses: c.accesses.Load(),
		Misses:   c.misses.Load(),
	}
}

// ResetStats zeroes the access counters. Cache lines are untouched.
func (c *Cache) ResetStats() {
	c.accesses.Store(0)
	c.misses.Store(0)
}

// SetWritebackInstall sets the sink invoked when Install displaces a dirty
// block.
func (c *Cache) SetWritebackInstall(f Writeback) {
	c.wbInstall = f
}

// Access looks up the block-aligned address blockAddr and returns true on a
// hit. The caller must pre-mask the byte address to block granularity.
//
// On a hit the block becomes most recently used and a write marks it dirty.
// On a miss the victim (first invalid way, else least recently used) is
// handed to upper so the parent level can install it, a dirty victim is
// additionally reported to wb, and the new line is installed dirty iff the
// access is a write (write-allocate).
func (c *Cache) Access(blockAddr uint64, isWrite bool, upper Installer, wb Writeback) bool {
	c.accesses.Add(1)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return true
	}

	c.misses.Add(1)

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// Cannot happen with a consistent directory.
		return false
	}

	if victim.IsValid {
		if upper != nil {
			upper(victim.Tag, victim.IsDirty)
		}
		if victim.IsDirty && wb != nil {
			wb(victim.Tag)
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return false
}

// Install populates the line for addr without counting an access, used when a
// lower level hit must be mirrored here. The victim choice matches Access; a
// displaced dirty block goes to the writeback-install sink if one is
// configured. The new line's dirty flag equals the dirty argument.
func (c *Cache) Install(addr uint64, dirty bool) {
	victim := c.directory.FindVictim(addr)
	if victim == nil {
		return
	}

	if victim.IsValid && victim.IsDirty && c.wbInstall != nil {
		c.wbInstall(victim.Tag)
	}

	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = dirty
	c.directory.Visit(victim)
}
