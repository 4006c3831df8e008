package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/timing/cache"
)

var _ = Describe("Responder", func() {
	It("resolves a request after its latency and frees the slot", func() {
		c := cache.New(cache.Config{
			Size: 1024, Associativity: 2, BlockSize: 64, HitLatency: 1, MissLatency: 3,
		}, cache.NewFlatBacking())
		r := cache.NewResponder(c)

		Expect(r.TryRequest(0x1000, 8)).To(BeTrue())
		Expect(r.TryRequest(0x2000, 8)).To(BeFalse()) // already busy

		var hit, ready bool
		for i := 0; i < 5 && !ready; i++ {
			hit, _, ready = r.Poll()
			if !ready {
				r.Tick()
			}
		}
		Expect(ready).To(BeTrue())
		Expect(hit).To(BeFalse()) // cold cache -> miss

		Expect(r.TryRequest(0x3000, 8)).To(BeTrue())
	})
})
