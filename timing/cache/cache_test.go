package cache_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/timing/cache"
)

var _ = Describe("Cache", func() {
	const (
		blockA = uint64(0x00)
		blockB = uint64(0x10)
		blockC = uint64(0x20)
	)

	var (
		c     *cache.Cache
		stats cache.Statistics
	)

	access := func(addr uint64) cache.AccessResult {
		r := c.Access(addr)
		stats.Record(r)
		return r
	}

	twoLine := func(policy cache.Policy) {
		c = cache.MustNew(cache.Config{
			BlockBits:   4,
			SetBits:     0,
			LinesPerSet: 2,
			Policy:      policy,
		})
	}

	BeforeEach(func() {
		stats = cache.Statistics{}
	})

	Describe("address decomposition", func() {
		It("should split an address into block, set and tag", func() {
			config := cache.Config{BlockBits: 4, SetBits: 2, LinesPerSet: 1}

			Expect(config.BlockAddr(0x1234)).To(Equal(uint64(0x1230)))
			Expect(config.SetIndex(0x1234)).To(Equal(3))
			Expect(config.Tag(0x1234)).To(Equal(uint64(0x48)))
		})
	})

	Describe("insertion", func() {
		It("should miss on a cold cache and hit on reuse", func() {
			twoLine(cache.PolicyLRU)

			r := access(0x14)
			Expect(r.Status).To(Equal(cache.StatusMiss))
			Expect(r.InsertBlock).To(Equal(uint64(0x10)))

			r = access(0x1C)
			Expect(r.Status).To(Equal(cache.StatusHit))

			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Evictions).To(Equal(uint64(0)))
		})

		It("should fill invalid lines in way order", func() {
			c = cache.MustNew(cache.Config{BlockBits: 2, SetBits: 0, LinesPerSet: 4})

			for i := uint64(0); i < 4; i++ {
				Expect(access(i * 4).Status).To(Equal(cache.StatusMiss))
			}

			lines := c.Lines(0)
			for i, line := range lines {
				Expect(line.Valid).To(BeTrue())
				Expect(line.BlockAddr).To(Equal(uint64(i * 4)))
				Expect(line.LRUClock).To(Equal(uint64(i + 1)))
				Expect(line.AccessCounter).To(Equal(uint64(1)))
			}
		})

		It("should touch the line on a hit", func() {
			twoLine(cache.PolicyLRU)

			access(blockA)
			access(blockB)
			access(blockA)

			lines := c.Lines(0)
			Expect(lines[0].LRUClock).To(Equal(uint64(3)))
			Expect(lines[0].AccessCounter).To(Equal(uint64(2)))
			Expect(c.SetClock(0)).To(Equal(uint64(3)))
		})
	})

	Describe("LRU", func() {
		BeforeEach(func() {
			twoLine(cache.PolicyLRU)
		})

		It("should hit when re-accessing a resident block", func() {
			access(blockA)
			access(blockB)

			Expect(access(blockA).Status).To(Equal(cache.StatusHit))
			Expect(stats.Evictions).To(Equal(uint64(0)))
		})

		It("should evict the least recently touched block", func() {
			access(blockA)
			access(blockB)

			r := access(blockC)

			Expect(r.Status).To(Equal(cache.StatusEvict))
			Expect(r.VictimBlock).To(Equal(blockA))
			Expect(r.InsertBlock).To(Equal(blockC))
		})

		It("should account for recent hits", func() {
			access(blockA)
			access(blockB)
			access(blockA)

			r := access(blockC)

			Expect(r.VictimBlock).To(Equal(blockB))
			Expect(stats.Misses).To(Equal(uint64(3)))
			Expect(stats.Evictions).To(Equal(uint64(1)))
		})
	})

	Describe("LFU", func() {
		BeforeEach(func() {
			twoLine(cache.PolicyLFU)
		})

		It("should evict the least frequently used block", func() {
			access(blockA)
			access(blockB)
			access(blockB)
			access(blockB)

			r := access(blockC)

			Expect(r.Status).To(Equal(cache.StatusEvict))
			Expect(r.VictimBlock).To(Equal(blockA))
		})

		It("should prefer frequency over recency", func() {
			access(blockA)
			access(blockB)
			access(blockB)
			access(blockB)
			access(blockA)

			Expect(access(blockC).VictimBlock).To(Equal(blockA))
		})

		It("should break ties by recency", func() {
			access(blockA)
			access(blockA)
			access(blockB)
			access(blockB)

			Expect(access(blockC).VictimBlock).To(Equal(blockA))
		})

		It("should reset the access counter on replacement", func() {
			access(blockA)
			access(blockA)
			access(blockB)
			access(blockB)
			access(blockC)

			lines := c.Lines(0)
			Expect(lines[0].BlockAddr).To(Equal(blockC))
			Expect(lines[0].AccessCounter).To(Equal(uint64(1)))
		})
	})

	Describe("invariants", func() {
		DescribeTable("random access sequences",
			func(policy cache.Policy, seed int64) {
				config := cache.Config{
					BlockBits:   2,
					SetBits:     2,
					LinesPerSet: 2,
					Policy:      policy,
				}
				c = cache.MustNew(config)
				rng := rand.New(rand.NewSource(seed))

				const n = 2000
				for i := 0; i < n; i++ {
					access(uint64(rng.Intn(256)))

					for set := 0; set < config.NumSets(); set++ {
						seen := map[uint64]bool{}
						for _, line := range c.Lines(set) {
							if !line.Valid {
								continue
							}
							Expect(seen[line.Tag]).To(BeFalse())
							seen[line.Tag] = true
							Expect(line.BlockAddr % 4).To(Equal(uint64(0)))
							Expect(config.SetIndex(line.BlockAddr)).To(Equal(set))
						}
					}
				}

				Expect(stats.Accesses()).To(Equal(uint64(n)))
				Expect(stats.Evictions).To(BeNumerically("<=", stats.Misses))
			},
			Entry("LRU", cache.PolicyLRU, int64(1)),
			Entry("LFU", cache.PolicyLFU, int64(2)),
		)
	})

	Describe("Reset", func() {
		It("should invalidate every line", func() {
			twoLine(cache.PolicyLRU)
			access(blockA)

			c.Reset()

			Expect(c.Lines(0)[0].Valid).To(BeFalse())
			Expect(c.SetClock(0)).To(Equal(uint64(0)))
			Expect(access(blockA).Status).To(Equal(cache.StatusMiss))
		})
	})

	Describe("AccessResult", func() {
		It("should format trace annotations", func() {
			Expect(cache.AccessResult{Status: cache.StatusHit}.String()).
				To(Equal("[status: hit]"))
			Expect(cache.AccessResult{Status: cache.StatusMiss, InsertBlock: 0x40}.String()).
				To(Equal("[status: miss, insert_block: 0x40]"))
			Expect(cache.AccessResult{
				Status:      cache.StatusEvict,
				VictimBlock: 0x20,
				InsertBlock: 0x40,
			}.String()).To(Equal(
				"[status: miss eviction, victim_block: 0x20, insert_block: 0x40]"))
		})
	})
})
