package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// Frame is one entry on a coroutine's call stack (spec.md §3/GLOSSARY):
// the return PC, the caller's local-arena position per type partition
// (restored on return), and the frame's own defer and exception-handler
// LIFOs. Handlers and defers store bare PCs, never closures (spec.md §9
// "no closures").
type Frame struct {
	RetPC int

	savedBase [bytecode.NumKinds]int
	savedSize [bytecode.NumKinds]int

	DeferStack []int
	Handlers   []int

	// Name is not set by the VM: stack traces resolve function names
	// from debug_info into StackFrame values (pkg/vm/debug.go) and leave
	// this field empty.
	Name string
}

func (f *Frame) pushHandler(pc int) {
	f.Handlers = append(f.Handlers, pc)
}

func (f *Frame) popHandler() (int, bool) {
	n := len(f.Handlers)
	if n == 0 {
		return 0, false
	}
	pc := f.Handlers[n-1]
	f.Handlers = f.Handlers[:n-1]
	return pc, true
}

// peekHandler returns the top handler PC without removing it. The catch
// instruction, not the unwinding sequence, owns popping the handler.
func (f *Frame) peekHandler() (int, bool) {
	n := len(f.Handlers)
	if n == 0 {
		return 0, false
	}
	return f.Handlers[n-1], true
}

func (f *Frame) pushDefer(pc int) {
	f.DeferStack = append(f.DeferStack, pc)
}

func (f *Frame) popDefer() (int, bool) {
	n := len(f.DeferStack)
	if n == 0 {
		return 0, false
	}
	pc := f.DeferStack[n-1]
	f.DeferStack = f.DeferStack[:n-1]
	return pc, true
}
