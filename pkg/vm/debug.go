package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// resolveFunction finds the debug_info entry whose [BytecodePos,
// BytecodePos+Length) range contains pc, picking the shortest such
// range when several overlap (spec.md §9 Open Question: "the source
// picks the shortest enclosing function when ranges overlap").
// Unresolvable PCs render as "Unknown Function" per spec.md §7.
func resolveFunction(debugInfo []bytecode.DebugFunc, pc int) string {
	best := ""
	bestLen := -1
	for _, d := range debugInfo {
		if pc < d.BytecodePos || pc >= d.BytecodePos+d.Length {
			continue
		}
		if bestLen == -1 || d.Length < bestLen {
			best = d.Name
			bestLen = d.Length
		}
	}
	if best == "" {
		return "Unknown Function"
	}
	return best
}

// captureStackTrace resolves co's current PC and every frame's RetPC
// against debug_info, most recent frame first, for RuntimeError
// rendering (spec.md §7 Diagnostics).
func (vm *VM) captureStackTrace(co *Coroutine) []StackFrame {
	trace := make([]StackFrame, 0, len(co.CallStack))
	trace = append(trace, StackFrame{Name: resolveFunction(vm.bc.DebugInfo, co.PC), PC: co.PC})
	for i := len(co.CallStack) - 1; i >= 0; i-- {
		f := co.CallStack[i]
		if f.RetPC < 0 {
			continue
		}
		trace = append(trace, StackFrame{Name: resolveFunction(vm.bc.DebugInfo, f.RetPC), PC: f.RetPC})
	}
	return trace
}
