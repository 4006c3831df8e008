package rob_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/rob"
)

type fakeAcker struct {
	got []*insts.InstRecord
}

func (f *fakeAcker) Retire(r *insts.InstRecord) { f.got = append(f.got, r) }
func (f *fakeAcker) AckRetire(r *insts.InstRecord) { f.got = append(f.got, r) }

func TestROB(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ROB Suite")
}

var _ = Describe("ROB", func() {
	It("retires a completed head in order, acking rename and store", func() {
		fm := flush.NewManager()
		renameAck := &fakeAcker{}
		storeAck := &fakeAcker{}
		r := rob.New(8, 4, 0, fm)
		r.RegisterRenameAcker(renameAck)
		r.RegisterStoreAcker(storeAck)

		inst := &insts.InstRecord{UniqueID: 1, Status: insts.StatusCompleted}
		Expect(r.TryInsert(inst)).To(BeTrue())
		r.Tick()

		Expect(inst.Status).To(Equal(insts.StatusRetired))
		Expect(renameAck.got).To(ConsistOf(inst))
		Expect(storeAck.got).To(ConsistOf(inst))
		Expect(r.Retired()).To(Equal(uint64(1)))
	})

	It("does not retire past a not-yet-completed head", func() {
		fm := flush.NewManager()
		r := rob.New(8, 4, 0, fm)
		i1 := &insts.InstRecord{UniqueID: 1, Status: insts.StatusCompleted}
		i2 := &insts.InstRecord{UniqueID: 2, Status: insts.StatusScheduled}
		r.TryInsert(i1)
		r.TryInsert(i2)
		r.Tick()
		Expect(r.Retired()).To(Equal(uint64(1)))
		Expect(r.Len()).To(Equal(1))
	})

	It("raises a non-inclusive flush when the head is mispredicted", func() {
		fm := flush.NewManager()
		var raised flush.Criteria
		fm.Register(listenerFunc(func(c flush.Criteria) { raised = c }))
		r := rob.New(8, 4, 0, fm)

		head := &insts.InstRecord{UniqueID: 1, Mispredicted: true}
		younger := &insts.InstRecord{UniqueID: 2}
		r.TryInsert(head)
		r.TryInsert(younger)
		r.Tick()
		fm.Drain()

		Expect(raised.Offending).To(BeIdenticalTo(head))
		Expect(raised.Inclusive).To(BeFalse())
	})

	It("emits a one-shot stop once the inst limit is reached", func() {
		fm := flush.NewManager()
		r := rob.New(8, 4, 2, fm)
		for i := 0; i < 3; i++ {
			r.TryInsert(&insts.InstRecord{UniqueID: uint64(i), Status: insts.StatusCompleted})
		}
		r.Tick()
		Expect(r.Stopped()).To(BeTrue())
	})
})

type listenerFunc func(flush.Criteria)

func (f listenerFunc) OnFlush(c flush.Criteria) { f(c) }
