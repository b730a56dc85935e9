package vm

import (
	"github.com/google/uuid"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// selectSnapshot is the saved-state struct spec.md §9 recommends in
// place of general-purpose checkpointing: just enough of a coroutine's
// state to replay a channel select's next case after a blocked or
// closed attempt (spec.md §4.4 start_select_channel/check_channel).
type selectSnapshot struct {
	iLen, fLen, sLen, oLen int
	bases                  [bytecode.NumKinds]int
}

// Coroutine is one logical task: its own program counter, four typed
// value stacks, four local arenas, a call stack, and the flag set that
// drives cooperative scheduling and exception unwinding (spec.md §3).
type Coroutine struct {
	ID uuid.UUID

	PC int

	IStack *stack[int64]
	FStack *stack[float64]
	SStack *stack[string]
	OStack *stack[any]

	ILocals *arena[int64]
	FLocals *arena[float64]
	SLocals *arena[string]
	OLocals *arena[any]

	CallStack []*Frame

	IsPanicking         bool
	IsKilled            bool
	IsLocked            bool
	IsEvaluatingChannel bool
	SelectJumpPC        int

	PanicMessage string

	// pending names which of return/kill/panic the unwinding sequence
	// currently in progress is resolving (pkg/vm/unwind.go).
	pending unwindReason

	pendingRemoval bool

	selectSaved selectSnapshot
}

func newCoroutine(startPC int) *Coroutine {
	c := &Coroutine{
		ID:           uuid.New(),
		PC:           startPC,
		IStack:       newStack[int64](16),
		FStack:       newStack[float64](16),
		SStack:       newStack[string](16),
		OStack:       newStack[any](16),
		ILocals:      newArena[int64](32),
		FLocals:      newArena[float64](32),
		SLocals:      newArena[string](32),
		OLocals:      newArena[any](32),
		SelectJumpPC: -1,
	}
	c.CallStack = []*Frame{{RetPC: -1}}
	return c
}

func (c *Coroutine) currentFrame() *Frame {
	return c.CallStack[len(c.CallStack)-1]
}

func (c *Coroutine) markRemoved() {
	c.pendingRemoval = true
}

// pushFrame grows all four local arenas into a fresh frame positioned
// right after the caller's and records the caller's arena state on the
// new frame so return/unwind can restore it (spec.md §4.3).
func (c *Coroutine) pushFrame(retPC int) *Frame {
	f := &Frame{RetPC: retPC}
	f.savedBase[bytecode.KindInt], f.savedSize[bytecode.KindInt] = c.ILocals.enterFrame()
	f.savedBase[bytecode.KindFloat], f.savedSize[bytecode.KindFloat] = c.FLocals.enterFrame()
	f.savedBase[bytecode.KindString], f.savedSize[bytecode.KindString] = c.SLocals.enterFrame()
	f.savedBase[bytecode.KindObject], f.savedSize[bytecode.KindObject] = c.OLocals.enterFrame()
	c.CallStack = append(c.CallStack, f)
	return f
}

// popFrame restores the caller's arena bases/sizes and drops the top
// call-stack frame, returning its RetPC.
func (c *Coroutine) popFrame() int {
	f := c.currentFrame()
	c.ILocals.leaveFrame(f.savedBase[bytecode.KindInt], f.savedSize[bytecode.KindInt])
	c.FLocals.leaveFrame(f.savedBase[bytecode.KindFloat], f.savedSize[bytecode.KindFloat])
	c.SLocals.leaveFrame(f.savedBase[bytecode.KindString], f.savedSize[bytecode.KindString])
	c.OLocals.leaveFrame(f.savedBase[bytecode.KindObject], f.savedSize[bytecode.KindObject])
	c.CallStack = c.CallStack[:len(c.CallStack)-1]
	return f.RetPC
}

func (c *Coroutine) saveSelectState() {
	c.selectSaved = selectSnapshot{
		iLen: c.IStack.len(), fLen: c.FStack.len(), sLen: c.SStack.len(), oLen: c.OStack.len(),
		bases: [bytecode.NumKinds]int{c.ILocals.base, c.FLocals.base, c.SLocals.base, c.OLocals.base},
	}
}

func (c *Coroutine) restoreSelectState() {
	s := c.selectSaved
	c.IStack.data = c.IStack.data[:s.iLen]
	c.FStack.data = c.FStack.data[:s.fLen]
	c.SStack.data = c.SStack.data[:s.sLen]
	c.OStack.data = c.OStack.data[:s.oLen]
}
