package flush_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
)

func TestFlush(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Flush Suite")
}

type recordingListener struct {
	got []flush.Criteria
}

func (r *recordingListener) OnFlush(c flush.Criteria) {
	r.got = append(r.got, c)
}

var _ = Describe("Criteria", func() {
	offending := &insts.InstRecord{UniqueID: 10}

	It("non-inclusive affects only strictly younger instructions", func() {
		c := flush.Criteria{Offending: offending, Inclusive: false}
		Expect(c.Affects(&insts.InstRecord{UniqueID: 10})).To(BeFalse())
		Expect(c.Affects(&insts.InstRecord{UniqueID: 11})).To(BeTrue())
		Expect(c.Affects(&insts.InstRecord{UniqueID: 9})).To(BeFalse())
	})

	It("inclusive affects the offending instruction too", func() {
		c := flush.Criteria{Offending: offending, Inclusive: true}
		Expect(c.Affects(&insts.InstRecord{UniqueID: 10})).To(BeTrue())
	})
})

var _ = Describe("Manager", func() {
	It("broadcasts a raised flush to every registered listener on Drain", func() {
		m := flush.NewManager()
		l1 := &recordingListener{}
		l2 := &recordingListener{}
		m.Register(l1)
		m.Register(l2)

		m.Raise(flush.Criteria{Offending: &insts.InstRecord{UniqueID: 5}})
		m.Drain()

		Expect(l1.got).To(HaveLen(1))
		Expect(l2.got).To(HaveLen(1))
	})

	It("coalesces multiple raises to the most restrictive one", func() {
		m := flush.NewManager()
		l := &recordingListener{}
		m.Register(l)

		m.Raise(flush.Criteria{Offending: &insts.InstRecord{UniqueID: 20}})
		m.Raise(flush.Criteria{Offending: &insts.InstRecord{UniqueID: 5}})
		m.Drain()

		Expect(l.got).To(HaveLen(1))
		Expect(l.got[0].Offending.UniqueID).To(Equal(uint64(5)))
	})

	It("does nothing when nothing was raised", func() {
		m := flush.NewManager()
		l := &recordingListener{}
		m.Register(l)
		m.Drain()
		Expect(l.got).To(BeEmpty())
	})
})
