// Package cache provides the direct-mapped, write-through, no-write-allocate
// cache using Akita cache components.
//
// Addresses are word addresses. A line holds LineWords words; the directory is
// an akita DirectoryImpl with one way per set, so its set index equals
// (addr / LineWords) mod LineCount. Latency and statistics are modeled by the
// memory system on top of this package.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// LineWords is the number of words per line.
	LineWords int
	// LineCount is the number of lines.
	LineCount int
}

// ReadResult contains the result of a cache read.
type ReadResult struct {
	// Hit indicates whether the line was present.
	Hit bool
	// Data is the word read, valid on a hit.
	Data uint32

	Index  int
	Tag    uint32
	Offset int
}

// WriteResult contains the result of a cache write.
type WriteResult struct {
	// Hit indicates whether the word was updated in place.
	Hit bool

	Index  int
	Tag    uint32
	Offset int
}

// LineView is a snapshot of one line.
type LineView struct {
	Valid bool
	Tag   uint32
	Data  []uint32
}

// Cache represents a direct-mapped cache.
type Cache struct {
	config Config

	// Akita cache directory for tag/valid management
	directory *akitacache.DirectoryImpl

	// Data storage, indexed by set
	dataStore [][]uint32
}

// New creates a new cache with every line invalid.
func New(config Config) *Cache {
	dataStore := make([][]uint32, config.LineCount)
	for i := range dataStore {
		dataStore[i] = make([]uint32, config.LineWords)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.LineCount,
			1,
			config.LineWords,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Index returns the line index of addr.
func (c *Cache) Index(addr uint32) int {
	return int(addr/uint32(c.config.LineWords)) % c.config.LineCount
}

// Tag returns the tag of addr.
func (c *Cache) Tag(addr uint32) uint32 {
	return addr / uint32(c.config.LineWords*c.config.LineCount)
}

// Offset returns the word offset of addr within its line.
func (c *Cache) Offset(addr uint32) int {
	return int(addr % uint32(c.config.LineWords))
}

func (c *Cache) blockAddr(addr uint32) uint64 {
	lw := uint64(c.config.LineWords)
	return uint64(addr) / lw * lw
}

func (c *Cache) lookup(addr uint32) *akitacache.Block {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Read looks addr up.
func (c *Cache) Read(addr uint32) ReadResult {
	result := ReadResult{
		Index:  c.Index(addr),
		Tag:    c.Tag(addr),
		Offset: c.Offset(addr),
	}

	block := c.lookup(addr)
	if block == nil {
		return result
	}

	c.directory.Visit(block)
	result.Hit = true
	result.Data = c.dataStore[block.SetID][result.Offset]

	return result
}

// Write updates the word in place on a hit. A miss leaves the cache unchanged.
func (c *Cache) Write(addr, value uint32) WriteResult {
	result := WriteResult{
		Index:  c.Index(addr),
		Tag:    c.Tag(addr),
		Offset: c.Offset(addr),
	}

	block := c.lookup(addr)
	if block == nil {
		return result
	}

	c.directory.Visit(block)
	c.dataStore[block.SetID][result.Offset] = value
	result.Hit = true

	return result
}

// FillLine installs words as the line (index, tag), replacing whatever the
// line held.
func (c *Cache) FillLine(index int, tag uint32, words []uint32) error {
	if index < 0 || index >= c.config.LineCount {
		return fmt.Errorf("line index %d out of range [0, %d)", index, c.config.LineCount)
	}
	if len(words) != c.config.LineWords {
		return fmt.Errorf("line fill of %d words, want %d", len(words), c.config.LineWords)
	}

	lineAddr := (uint64(tag)*uint64(c.config.LineCount) + uint64(index)) *
		uint64(c.config.LineWords)

	victim := c.directory.FindVictim(lineAddr)
	if victim == nil || victim.SetID != index {
		return fmt.Errorf("no victim for line %d", index)
	}

	copy(c.dataStore[victim.SetID], words)
	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return nil
}

// Invalidate drops the line holding addr if it is present. It reports whether
// a line was dropped.
func (c *Cache) Invalidate(addr uint32) bool {
	block := c.lookup(addr)
	if block == nil {
		return false
	}

	block.IsValid = false
	block.IsDirty = false
	return true
}

// Line returns a snapshot of line index.
func (c *Cache) Line(index int) LineView {
	block := c.directory.GetSets()[index].Blocks[0]

	data := make([]uint32, c.config.LineWords)
	copy(data, c.dataStore[index])

	return LineView{
		Valid: block.IsValid,
		Tag:   uint32(block.Tag / uint64(c.config.LineWords*c.config.LineCount)),
		Data:  data,
	}
}

// Reset invalidates all lines.
func (c *Cache) Reset() {
	c.directory.Reset()
	for _, line := range c.dataStore {
		for i := range line {
			line[i] = 0
		}
	}
}
