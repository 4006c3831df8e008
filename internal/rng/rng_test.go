package rng_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/internal/rng"
)

func TestRng(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rng Suite")
}

var _ = Describe("Source", func() {
	It("is deterministic given the same seed", func() {
		a := rng.New(42)
		b := rng.New(42)
		for i := 0; i < 100; i++ {
			Expect(a.Uint64()).To(Equal(b.Uint64()))
		}
	})

	It("produces values within [0,n) for Intn", func() {
		s := rng.New(1)
		for i := 0; i < 1000; i++ {
			v := s.Intn(20)
			Expect(v).To(BeNumerically(">=", 0))
			Expect(v).To(BeNumerically("<", 20))
		}
	})

	It("never gets stuck at a zero seed", func() {
		s := rng.New(0)
		Expect(s.Uint64()).NotTo(Equal(uint64(0)))
	})
})
