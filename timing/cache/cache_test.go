package cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/timing/cache"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 4KB, 4-way, 64B lines.
		config := cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
		}
		c = cache.New(config, cache.NewFlatBacking())
	})

	Describe("Read operations", func() {
		It("should miss on cold cache", func() {
			result := c.Read(0x1000, 8)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit on cached data", func() {
			c.Read(0x1000, 8) // miss, fills the line
			result := c.Read(0x1000, 8)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should hit on a different address in the same cache line", func() {
			c.Read(0x1000, 4)
			result := c.Read(0x1004, 4)
			Expect(result.Hit).To(BeTrue())
		})
	})

	Describe("Write operations", func() {
		It("should write-allocate on miss", func() {
			result := c.Write(0x1000, 8, 0x12345678)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			readResult := c.Read(0x1000, 8)
			Expect(readResult.Hit).To(BeTrue())
		})

		It("should hit on a subsequent write to the same line", func() {
			c.Write(0x1000, 8, 0x11111111)
			result := c.Write(0x1000, 8, 0x22222222)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
		})
	})

	Describe("Eviction", func() {
		It("should evict the LRU way when a set is full", func() {
			// 4KB cache, 64B lines, 4-way -> 16 sets. These four addresses
			// all map to set 0.
			c.Write(0x0000, 8, 0x11111111)
			c.Write(0x0400, 8, 0x22222222)
			c.Write(0x0800, 8, 0x33333333)
			c.Write(0x0C00, 8, 0x44444444)

			Expect(c.Read(0x0000, 8).Hit).To(BeTrue())
			Expect(c.Read(0x0400, 8).Hit).To(BeTrue())
			Expect(c.Read(0x0800, 8).Hit).To(BeTrue())
			Expect(c.Read(0x0C00, 8).Hit).To(BeTrue())

			result := c.Write(0x1000, 8, 0x55555555)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())

			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("writes back a dirty evicted block", func() {
			c.Write(0x0000, 8, 0x11111111)
			c.Write(0x0400, 8, 0x22222222)
			c.Write(0x0800, 8, 0x33333333)
			c.Write(0x0C00, 8, 0x44444444)

			c.Read(0x0400, 8)
			c.Read(0x0800, 8)
			c.Read(0x0C00, 8)

			c.Write(0x1000, 8, 0x55555555)
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})
	})

	Describe("Flush", func() {
		It("writes back every dirty block", func() {
			c.Write(0x0000, 8, 0x11111111)
			c.Write(0x1000, 8, 0x22222222)

			c.Flush()
			Expect(c.Stats().Writebacks).To(Equal(uint64(2)))
		})
	})

	Describe("Default configurations", func() {
		It("builds an L1I config", func() {
			config := cache.DefaultL1IConfig()
			Expect(config.Size).To(Equal(32 * 1024))
			Expect(config.Associativity).To(Equal(4))
			Expect(config.BlockSize).To(Equal(64))
		})

		It("builds an L1D config", func() {
			config := cache.DefaultL1DConfig()
			Expect(config.Size).To(Equal(32 * 1024))
			Expect(config.Associativity).To(Equal(8))
			Expect(config.BlockSize).To(Equal(64))
		})
	})
})
