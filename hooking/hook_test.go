package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	name string
	log  *[]string
}

func (h *recordingHook) Func(ctx HookCtx) {
	*h.log = append(*h.log, h.name+":"+ctx.Pos.Name)
}

type capturingHook struct {
	last HookCtx
}

func (h *capturingHook) Func(ctx HookCtx) {
	h.last = ctx
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		log  []string
	)

	BeforeEach(func() {
		base = &HookableBase{}
		log = nil
	})

	It("should invoke hooks in registration order", func() {
		base.AcceptHook(&recordingHook{name: "a", log: &log})
		base.AcceptHook(&recordingHook{name: "b", log: &log})

		base.InvokeHook(HookCtx{Pos: &HookPos{Name: "step"}})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(log).To(Equal([]string{"a:step", "b:step"}))
	})

	It("should pass the domain and the item to hooks", func() {
		hook := &capturingHook{}
		base.AcceptHook(hook)

		pos := &HookPos{Name: "step"}
		base.InvokeHook(HookCtx{Domain: base, Pos: pos, Item: 42})

		Expect(hook.last).To(Equal(HookCtx{Domain: base, Pos: pos, Item: 42}))
	})

	It("should panic on duplicated hook", func() {
		hook := &recordingHook{name: "a", log: &log}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})
})
