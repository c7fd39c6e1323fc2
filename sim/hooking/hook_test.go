package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	positions []*HookPos
}

func (h *countingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
	)

	BeforeEach(func() {
		base = &HookableBase{}
	})

	It("should invoke registered hooks in order", func() {
		h1 := &countingHook{}
		h2 := &countingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)

		base.InvokeHook(HookCtx{Domain: base, Pos: HookPosROIEnd})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(h1.positions).To(Equal([]*HookPos{HookPosROIEnd}))
		Expect(h2.positions).To(Equal([]*HookPos{HookPosROIEnd}))
	})

	It("should panic when the same hook is registered twice", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should accept function hooks", func() {
		called := 0
		base.AcceptHook(HookFunc(func(ctx HookCtx) { called++ }))
		base.AcceptHook(HookFunc(func(ctx HookCtx) { called++ }))

		base.InvokeHook(HookCtx{Pos: HookPosROIBegin})

		Expect(called).To(Equal(2))
	})

	It("should pass the time of the site to the hooks", func() {
		var got HookCtx
		base.AcceptHook(HookFunc(func(ctx HookCtx) { got = ctx }))

		base.InvokeHook(HookCtx{Domain: base, Pos: HookPosROIBegin, Now: 2e-6})

		Expect(got.Now).To(BeNumerically("==", 2e-6))
		Expect(got.Pos.String()).To(Equal("ROIBegin"))
	})
})
