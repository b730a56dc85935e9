package vm

// unwindReason names which of return, kill or panic is driving the
// unwinding sequence currently in progress for a coroutine (spec.md
// §4.5). Return, kill and panic share the same defer-draining and
// frame-teardown machinery; they differ in whether a handler is
// consulted first (panic only), in whether they stop at the first caller
// frame (return only), and in what happens once the root frame is
// reached.
type unwindReason int

const (
	unwindNone unwindReason = iota
	unwindReturn
	unwindKill
	unwindPanic
)

// raise implements the raise instruction (spec.md §4.5): record the
// panic message and enter the unwinding sequence. Internal faults
// (ZeroDivisionError, IndexError, NullError, ChannelError, SelectError)
// call this directly with their fixed message instead of going through
// a script-level pop-string-then-raise.
func (vm *VM) raise(co *Coroutine, message string) (bool, error) {
	co.PanicMessage = message
	co.IsPanicking = true
	return vm.beginUnwind(co, unwindPanic)
}

// beginUnwind starts the unwinding sequence for reason. The unwind
// opcode resumes a sequence already in progress through continueUnwind.
func (vm *VM) beginUnwind(co *Coroutine, reason unwindReason) (bool, error) {
	co.pending = reason
	return vm.continueUnwind(co)
}

// continueUnwind implements one pass of spec.md §4.5's unwinding
// sequence:
//  1. a panic consults the current frame's handler stack first;
//  2. otherwise the current frame's defer stack is drained one PC at a
//     time — each deferred block runs to its own `unwind` instruction,
//     which re-enters this function to continue past it;
//  3. with no handler and no defers left, the frame is torn down and
//     the reason propagates into the caller frame (return resolves
//     there; kill and panic keep propagating);
//  4. reaching the root frame resolves the reason: return/kill remove
//     the coroutine, panic escalates to a VM-level panic and kills
//     every other coroutine.
func (vm *VM) continueUnwind(co *Coroutine) (bool, error) {
	frame := co.currentFrame()

	if co.pending == unwindPanic {
		if pc, ok := frame.peekHandler(); ok {
			co.PC = pc
			return false, nil
		}
	}

	if pc, ok := frame.popDefer(); ok {
		co.PC = pc
		return false, nil
	}

	if len(co.CallStack) > 1 {
		retPC := co.popFrame()
		switch co.pending {
		case unwindReturn:
			co.PC = retPC
			co.pending = unwindNone
			return false, nil
		default: // unwindKill, unwindPanic
			return vm.continueUnwind(co)
		}
	}

	// Root frame reached while still pending (spec.md §4.5 item 4).
	switch co.pending {
	case unwindPanic:
		vm.vmPanicking = true
		vm.vmPanicMessage = co.PanicMessage
		vm.vmPanicTrace = vm.captureStackTrace(co)
		vm.vmPanicError = newRuntimeError(co.PanicMessage, vm.vmPanicTrace)
		vm.killAll(co)
		vm.Log.Warn().Str("coroutine", co.ID.String()).Str("message", co.PanicMessage).Msg("panic reached root frame")
	}
	co.pending = unwindNone
	co.markRemoved()
	return true, nil
}
