package nuca

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ledger", func() {
	var l *Ledger

	BeforeEach(func() {
		l = NewLedger()
	})

	It("should count reads and writes separately", func() {
		l.RecordRead(0x40)
		l.RecordRead(0x40)
		l.RecordWrite(0x40)

		reads, found := l.Reads(0x40)
		Expect(found).To(BeTrue())
		Expect(reads).To(Equal(uint64(2)))

		writes, found := l.Writes(0x40)
		Expect(found).To(BeTrue())
		Expect(writes).To(Equal(uint64(1)))
	})

	It("should tell absent records apart from zero counts", func() {
		l.RecordWrite(0x80)

		_, found := l.Reads(0x80)
		Expect(found).To(BeFalse())
		Expect(l.Tracked(0x80)).To(BeTrue())
		Expect(l.Tracked(0xc0)).To(BeFalse())
	})

	It("should erase both records", func() {
		l.RecordRead(0x40)
		l.RecordWrite(0x40)
		l.RecordRead(0x80)

		Expect(l.Len()).To(Equal(2))

		l.Erase(0x40)

		Expect(l.Tracked(0x40)).To(BeFalse())
		Expect(l.Len()).To(Equal(1))
	})
})

var _ = Describe("LastOpTracker", func() {
	var t *LastOpTracker

	BeforeEach(func() {
		t = NewLastOpTracker()
	})

	It("should not count the first operation on an address", func() {
		Expect(t.Update(0x40, OpRead)).To(Equal(TransitionNone))
		Expect(t.Get(0x40)).To(Equal(OpRead))
	})

	DescribeTable("transitions",
		func(first, second LastOp, expected Transition) {
			t.Update(0x40, first)
			Expect(t.Update(0x40, second)).To(Equal(expected))
		},
		Entry("read after read", OpRead, OpRead, ReadAfterRead),
		Entry("read after write", OpWrite, OpRead, ReadAfterWrite),
		Entry("write after read", OpRead, OpWrite, WriteAfterRead),
		Entry("write after write", OpWrite, OpWrite, WriteAfterWrite),
		Entry("evict after read", OpRead, OpInvalid, EvictAfterRead),
		Entry("evict after write", OpWrite, OpInvalid, EvictAfterWrite),
		Entry("read after evict", OpInvalid, OpRead, TransitionNone),
		Entry("evict after evict", OpInvalid, OpInvalid, TransitionNone),
	)

	It("should keep addresses after an eviction", func() {
		t.Update(0x40, OpWrite)
		t.Update(0x40, OpInvalid)

		Expect(t.Len()).To(Equal(1))
		Expect(t.Get(0x40)).To(Equal(OpInvalid))
	})

	It("should name transitions after the statistics", func() {
		Expect(ReadAfterWrite.String()).To(Equal("read-after-write"))
		Expect(EvictAfterRead.String()).To(Equal("evict-after-read"))
		Expect(CountedTransitions()).To(HaveLen(6))
	})
})
