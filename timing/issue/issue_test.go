package issue_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvooo/insts"
	"github.com/sarchlab/rvooo/timing/flush"
	"github.com/sarchlab/rvooo/timing/issue"
	"github.com/sarchlab/rvooo/timing/scoreboard"
)

type fakePipe struct {
	accept bool
	got    []*insts.InstRecord
}

func (p *fakePipe) CanAccept() bool { return p.accept }
func (p *fakePipe) InsertInst(r *insts.InstRecord) {
	p.got = append(p.got, r)
	p.accept = false
}

func TestIssue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Issue Suite")
}

func sbSet() []*scoreboard.View {
	sbs := make([]*scoreboard.View, insts.NumRegFiles())
	for i := range sbs {
		sbs[i] = scoreboard.New(insts.RegFile(i), 32)
	}
	return sbs
}

var _ = Describe("Queue", func() {
	It("makes an already-ready instruction immediately ready to issue", func() {
		sbs := sbSet()
		credits := 0
		q := issue.New(4, sbs, func() { credits++ })
		pipe := &fakePipe{accept: true}
		q.AddPipe(pipe)

		r := &insts.InstRecord{UniqueID: 1}
		q.Push(r)
		q.Tick()

		Expect(pipe.got).To(ConsistOf(r))
		Expect(credits).To(Equal(1))
	})

	It("waits for a wakeup before becoming ready", func() {
		sbs := sbSet()
		sbs[insts.RegInt].Clear(3)
		q := issue.New(4, sbs, func() {})
		pipe := &fakePipe{accept: true}
		q.AddPipe(pipe)

		r := &insts.InstRecord{UniqueID: 1}
		r.SourceBitmask[insts.RegInt].Add(3)
		q.Push(r)
		q.Tick()
		Expect(pipe.got).To(BeEmpty())

		sbs[insts.RegInt].Set(3)
		q.Tick()
		Expect(pipe.got).To(ConsistOf(r))
	})

	It("retries a ready instruction next cycle when no pipe can accept", func() {
		sbs := sbSet()
		q := issue.New(4, sbs, func() {})
		pipe := &fakePipe{accept: false}
		q.AddPipe(pipe)

		r := &insts.InstRecord{UniqueID: 1}
		q.Push(r)
		q.Tick()
		Expect(pipe.got).To(BeEmpty())

		pipe.accept = true
		q.Tick()
		Expect(pipe.got).To(ConsistOf(r))
	})

	It("erases flushed instructions and cancels their callbacks", func() {
		sbs := sbSet()
		sbs[insts.RegInt].Clear(3)
		credits := 0
		q := issue.New(4, sbs, func() { credits++ })

		r := &insts.InstRecord{UniqueID: 5}
		r.SourceBitmask[insts.RegInt].Add(3)
		q.Push(r)

		q.OnFlush(flush.Criteria{Offending: &insts.InstRecord{UniqueID: 1}})
		Expect(q.Len()).To(Equal(0))
		Expect(credits).To(Equal(1))

		sbs[insts.RegInt].Set(3)
		// No pipe was ever added; this would panic if the callback still fired
		// against q.pipes, so absence of a panic demonstrates cancellation.
	})
})
