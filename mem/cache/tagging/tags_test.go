package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TagArray", func() {
	var (
		tags *TagArray
	)

	BeforeEach(func() {
		tags = NewTagArray(1024, 4, 64, HashMask, NewLRUVictimFinder())
	})

	It("should be able to get total size", func() {
		Expect(tags.TotalSize()).To(Equal(uint64(262144)))
	})

	It("should convert between tags and addresses", func() {
		Expect(tags.AddressToTag(0x1040)).To(Equal(uint64(0x41)))
		Expect(tags.TagToAddress(0x41)).To(Equal(uint64(0x1040)))
	})

	It("should select sets by masking the tag", func() {
		_, setID := tags.GetSet(0x40)
		Expect(setID).To(Equal(1))

		_, setID = tags.GetSet(0x40 + 1024*64)
		Expect(setID).To(Equal(1))
	})

	It("should select sets by modulo", func() {
		tags = NewTagArray(3, 1, 64, HashMod, nil)

		_, setID := tags.GetSet(4 * 64)
		Expect(setID).To(Equal(1))
	})

	It("should panic when masking a non power-of-2 set count", func() {
		Expect(func() {
			NewTagArray(3, 1, 64, HashMask, nil)
		}).To(Panic())
	})

	It("should return nothing when peeking an empty array", func() {
		block, ok := tags.Peek(0x100)
		Expect(ok).To(BeFalse())
		Expect(block).To(BeNil())
	})

	It("should insert and peek a line", func() {
		eviction := tags.Insert(0x100, []byte{1, 2, 3}, 1)

		Expect(eviction.Evicted).To(BeFalse())

		block, ok := tags.Peek(0x100)
		Expect(ok).To(BeTrue())
		Expect(block.IsValid).To(BeTrue())
		Expect(block.State).To(Equal(Exclusive))
		Expect(block.IsWarmup).To(BeFalse())
		Expect(block.Data[:3]).To(Equal([]byte{1, 2, 3}))
	})

	It("should mark lines inserted during warm-up", func() {
		tags.SetWarmup(true)
		tags.Insert(0x100, nil, 0)

		block, _ := tags.Peek(0x100)
		Expect(tags.InWarmup()).To(BeTrue())
		Expect(block.IsWarmup).To(BeTrue())
	})

	It("should let callers change the coherence state in place", func() {
		tags.Insert(0x100, nil, 0)

		block, _ := tags.Peek(0x100)
		block.State = Modified

		block, _ = tags.Peek(0x100)
		Expect(block.State).To(Equal(Modified))
	})

	It("should copy data in and out on access", func() {
		tags.Insert(0x100, nil, 0)

		tags.Access(0x100, Store, []byte{9, 8, 7}, 2, true)

		out := make([]byte, 3)
		tags.Access(0x100, Load, out, 3, false)

		Expect(out).To(Equal([]byte{9, 8, 7}))
	})

	It("should panic when accessing a line that is not resident", func() {
		Expect(func() {
			tags.Access(0x100, Load, nil, 0, true)
		}).To(Panic())
	})

	It("should panic when inserting a resident line", func() {
		tags.Insert(0x100, nil, 0)

		Expect(func() { tags.Insert(0x100, nil, 0) }).To(Panic())
	})

	It("should evict the least recently used line", func() {
		tags = NewTagArray(1, 2, 64, HashMask, NewLRUVictimFinder())

		tags.Insert(0x000, []byte{1}, 0)
		tags.Insert(0x040, []byte{2}, 1)
		tags.Access(0x000, Load, nil, 2, true)

		eviction := tags.Insert(0x080, nil, 3)

		Expect(eviction.Evicted).To(BeTrue())
		Expect(eviction.Address).To(Equal(uint64(0x040)))
		Expect(eviction.Data[0]).To(Equal(byte(2)))
		Expect(eviction.Block.State).To(Equal(Exclusive))

		_, ok := tags.Peek(0x040)
		Expect(ok).To(BeFalse())
	})

	It("should not update LRU order when asked not to", func() {
		tags = NewTagArray(1, 2, 64, HashMask, NewLRUVictimFinder())

		tags.Insert(0x000, nil, 0)
		tags.Insert(0x040, nil, 1)
		tags.Access(0x000, Load, nil, 2, false)

		eviction := tags.Insert(0x080, nil, 3)

		Expect(eviction.Address).To(Equal(uint64(0x000)))
	})

	It("should invalidate everything on reset", func() {
		tags.Insert(0x100, nil, 0)
		tags.Reset()

		_, ok := tags.Peek(0x100)
		Expect(ok).To(BeFalse())
		Expect(tags.PeekBlock(4, 0).IsValid).To(BeFalse())
	})
})
