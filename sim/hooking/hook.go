// Package hooking lets observers attach to the phase boundaries of a
// simulation, such as the begin and the end of the region of interest.
package hooking

import "github.com/sarchlab/nucasim/sim"

// HookPos names a point where hooks are invoked.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookPosROIBegin marks the first access that is measured.
var HookPosROIBegin = &HookPos{Name: "ROIBegin"}

// HookPosROIEnd marks the end of the region of interest. Statistics are final
// once the hooks of this position return.
var HookPosROIEnd = &HookPos{Name: "ROIEnd"}

// HookCtx describes the site that invoked a hook.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Now    sim.VTimeInSec
}

// Hookable is an object that hooks can attach to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// Hook is invoked by a Hookable at its hook positions.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements Hookable. Embed it and call InvokeHook at each hook
// position.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns the number of hooks attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// AcceptHook attaches a hook. Attaching the same hook value twice panics;
// function hooks cannot be compared and are always accepted.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, other := range h.hooks {
			if other == hook {
				panic("duplicated hook")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls every attached hook in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
