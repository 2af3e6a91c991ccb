// Package cache provides a set-associative cache model built on Akita's
// cache directory. The model tracks which blocks are resident and reports
// hits, misses and evictions; it does not hold data.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Status classifies a cache access.
type Status uint8

// Access outcomes.
const (
	StatusHit Status = iota
	StatusMiss
	StatusEvict
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	case StatusEvict:
		return "miss eviction"
	}
	return "unknown"
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	Status Status
	// InsertBlock is the block address brought in on a miss or eviction.
	InsertBlock uint64
	// VictimBlock is the block address evicted. Valid only for StatusEvict.
	VictimBlock uint64
}

// String formats the result as a trace annotation.
func (r AccessResult) String() string {
	switch r.Status {
	case StatusHit:
		return "[status: hit]"
	case StatusMiss:
		return fmt.Sprintf("[status: miss, insert_block: 0x%x]", r.InsertBlock)
	case StatusEvict:
		return fmt.Sprintf(
			"[status: miss eviction, victim_block: 0x%x, insert_block: 0x%x]",
			r.VictimBlock, r.InsertBlock)
	}
	return "[status: unknown]"
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Record counts one access. An eviction is also a miss.
func (s *Statistics) Record(r AccessResult) {
	switch r.Status {
	case StatusHit:
		s.Hits++
	case StatusMiss:
		s.Misses++
	case StatusEvict:
		s.Misses++
		s.Evictions++
	}
}

// Accesses returns the number of recorded accesses.
func (s Statistics) Accesses() uint64 {
	return s.Hits + s.Misses
}

// Line is a snapshot of one cache line.
type Line struct {
	Valid         bool
	Tag           uint64
	BlockAddr     uint64
	LRUClock      uint64
	AccessCounter uint64
}

// lineState is the replacement metadata kept beside each directory block.
type lineState struct {
	lruClock      uint64
	accessCounter uint64
}

// Cache is a set-associative cache. Akita's directory holds residency, with
// each block's Tag storing its block-aligned address; replacement
// metadata lives in lines, indexed by set and way.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	lines  [][]lineState
	clocks []uint64
}

// New creates a new cache with the given configuration.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{config: config}
	c.directory = akitacache.NewDirectory(
		config.NumSets(),
		int(config.LinesPerSet),
		config.BlockSize(),
		&victimFinder{cache: c},
	)
	c.resetState()

	return c, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(config Config) *Cache {
	c, err := New(config)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Access looks up addr, inserting its block on a miss. The set's clock
// advances on every access.
func (c *Cache) Access(addr uint64) AccessResult {
	setID := c.config.SetIndex(addr)
	c.clocks[setID]++
	clock := c.clocks[setID]

	blockAddr := c.config.BlockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		state := &c.lines[block.SetID][block.WayID]
		state.lruClock = clock
		state.accessCounter++
		c.directory.Visit(block)

		return AccessResult{Status: StatusHit}
	}

	result := AccessResult{Status: StatusMiss, InsertBlock: blockAddr}

	victim := c.directory.FindVictim(blockAddr)
	if victim.IsValid {
		result.Status = StatusEvict
		result.VictimBlock = victim.Tag
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.lines[victim.SetID][victim.WayID] = lineState{
		lruClock:      clock,
		accessCounter: 1,
	}
	c.directory.Visit(victim)

	return result
}

// Lines returns a snapshot of the lines of a set in way order.
func (c *Cache) Lines(setID int) []Line {
	set := c.directory.GetSets()[setID]
	lines := make([]Line, len(set.Blocks))

	for _, block := range set.Blocks {
		state := c.lines[setID][block.WayID]
		lines[block.WayID] = Line{
			Valid:         block.IsValid,
			Tag:           c.config.Tag(block.Tag),
			BlockAddr:     block.Tag,
			LRUClock:      state.lruClock,
			AccessCounter: state.accessCounter,
		}
	}

	return lines
}

// SetClock returns the current clock of a set.
func (c *Cache) SetClock(setID int) uint64 {
	return c.clocks[setID]
}

// Reset invalidates all lines and clears replacement state.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.resetState()
}

func (c *Cache) resetState() {
	numSets := c.config.NumSets()
	c.clocks = make([]uint64, numSets)
	c.lines = make([][]lineState, numSets)
	for i := range c.lines {
		c.lines[i] = make([]lineState, c.config.LinesPerSet)
	}
}
