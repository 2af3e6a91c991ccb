package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// victimFinder picks the block to replace in a set. An invalid block is
// always preferred, lowest way first. Among valid blocks, LRU picks the
// smallest clock and LFU the smallest access count, then the smallest
// clock.
type victimFinder struct {
	cache *Cache
}

// FindVictim implements akitacache.VictimFinder.
func (f *victimFinder) FindVictim(set *akitacache.Set) *akitacache.Block {
	var victim *akitacache.Block

	for _, block := range set.Blocks {
		if !block.IsValid {
			if victim == nil || victim.IsValid || block.WayID < victim.WayID {
				victim = block
			}
			continue
		}

		if victim == nil || (victim.IsValid && f.before(block, victim)) {
			victim = block
		}
	}

	return victim
}

// before reports whether a should be evicted in preference to b.
func (f *victimFinder) before(a, b *akitacache.Block) bool {
	sa := f.cache.lines[a.SetID][a.WayID]
	sb := f.cache.lines[b.SetID][b.WayID]

	if f.cache.config.Policy == PolicyLFU && sa.accessCounter != sb.accessCounter {
		return sa.accessCounter < sb.accessCounter
	}

	if sa.lruClock != sb.lruClock {
		return sa.lruClock < sb.lruClock
	}

	return a.WayID < b.WayID
}
