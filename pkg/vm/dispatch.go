package vm

import (
	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// runCoroutine steps co until it yields, blocks, is killed with an
// empty defer stack, panics past its root frame, is marked for removal,
// or the host clears IsRunning (spec.md §4.1/§5). IsLocked is cleared at
// the top of every turn: a coroutine that blocked last round gets a
// fresh attempt at the same (or, mid-select, a redirected) instruction.
func (vm *VM) runCoroutine(co *Coroutine) error {
	co.IsLocked = false

	for {
		if !vm.IsRunning {
			return nil
		}
		if co.pendingRemoval {
			return nil
		}
		if co.IsKilled && co.pending == unwindNone {
			suspend, err := vm.beginUnwind(co, unwindKill)
			if err != nil {
				return err
			}
			if suspend {
				return nil
			}
			continue
		}

		instr, ok := vm.bc.Decoded(co.PC)
		if !ok {
			return newHostError("coroutine %s: pc %d out of range", co.ID, co.PC)
		}

		suspend, err := vm.step(co, instr)
		if err != nil {
			return err
		}
		if suspend {
			return nil
		}
	}
}

// step executes one instruction and reports whether co should suspend
// (exit the inner loop) this round.
func (vm *VM) step(co *Coroutine, instr bytecode.Instruction) (bool, error) {
	start := co.PC
	next := co.PC + 1

	switch instr.Op {

	case bytecode.OpNop:

	// --- Stack & constants -------------------------------------------------

	case bytecode.OpPushConstI:
		co.IStack.push(vm.bc.IConsts[instr.Operand])
	case bytecode.OpPushConstF:
		co.FStack.push(vm.bc.FConsts[instr.Operand])
	case bytecode.OpPushConstS:
		co.SStack.push(vm.bc.SConsts[instr.Operand])
	case bytecode.OpPushI:
		co.IStack.push(int64(instr.Operand))

	case bytecode.OpLoadLocal:
		kind, offset := bytecode.Kind(instr.V1), int(instr.V2)
		switch kind {
		case bytecode.KindInt:
			co.IStack.push(co.ILocals.get(offset))
		case bytecode.KindFloat:
			co.FStack.push(co.FLocals.get(offset))
		case bytecode.KindString:
			co.SStack.push(co.SLocals.get(offset))
		case bytecode.KindObject:
			co.OStack.push(co.OLocals.get(offset))
		}
	case bytecode.OpStoreLocal:
		kind, offset := bytecode.Kind(instr.V1), int(instr.V2)
		switch kind {
		case bytecode.KindInt:
			co.ILocals.set(offset, co.IStack.pop())
		case bytecode.KindFloat:
			co.FLocals.set(offset, co.FStack.pop())
		case bytecode.KindString:
			co.SLocals.set(offset, co.SStack.pop())
		case bytecode.KindObject:
			co.OLocals.set(offset, co.OStack.pop())
		}

	case bytecode.OpLoadGlobal:
		kind, idx := bytecode.Kind(instr.V1), int(instr.V2)
		switch kind {
		case bytecode.KindInt:
			co.IStack.push(vm.iGlobals[idx])
		case bytecode.KindFloat:
			co.FStack.push(vm.fGlobals[idx])
		case bytecode.KindString:
			co.SStack.push(vm.sGlobals[idx])
		case bytecode.KindObject:
			co.OStack.push(vm.oGlobals[idx])
		}
	case bytecode.OpStoreGlobal:
		kind, idx := bytecode.Kind(instr.V1), int(instr.V2)
		switch kind {
		case bytecode.KindInt:
			vm.iGlobals[idx] = co.IStack.pop()
		case bytecode.KindFloat:
			vm.fGlobals[idx] = co.FStack.pop()
		case bytecode.KindString:
			vm.sGlobals[idx] = co.SStack.pop()
		case bytecode.KindObject:
			vm.oGlobals[idx] = co.OStack.pop()
		}

	case bytecode.OpCopy:
		switch bytecode.Kind(instr.Operand) {
		case bytecode.KindInt:
			co.IStack.dup()
		case bytecode.KindFloat:
			co.FStack.dup()
		case bytecode.KindString:
			co.SStack.dup()
		case bytecode.KindObject:
			co.OStack.dup()
		}
	case bytecode.OpSwap:
		switch bytecode.Kind(instr.Operand) {
		case bytecode.KindInt:
			co.IStack.swapTop()
		case bytecode.KindFloat:
			co.FStack.swapTop()
		case bytecode.KindString:
			co.SStack.swapTop()
		case bytecode.KindObject:
			co.OStack.swapTop()
		}
	case bytecode.OpShift:
		kind, n := bytecode.Kind(instr.V1), int(int16(instr.V2))
		switch kind {
		case bytecode.KindInt:
			co.IStack.shift(n)
		case bytecode.KindFloat:
			co.FStack.shift(n)
		case bytecode.KindString:
			co.SStack.shift(n)
		case bytecode.KindObject:
			co.OStack.shift(n)
		}

	// --- Arithmetic / comparison --------------------------------------------

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
		if suspend, err := vm.arith(co, instr.Op, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpNeg:
		switch bytecode.Kind(instr.Operand) {
		case bytecode.KindInt:
			co.IStack.push(-co.IStack.pop())
		case bytecode.KindFloat:
			co.FStack.push(-co.FStack.pop())
		}
	case bytecode.OpInc:
		if bytecode.Kind(instr.Operand) == bytecode.KindFloat {
			co.FStack.push(co.FStack.pop() + 1)
		} else {
			co.IStack.push(co.IStack.pop() + 1)
		}
	case bytecode.OpDec:
		if bytecode.Kind(instr.Operand) == bytecode.KindFloat {
			co.FStack.push(co.FStack.pop() - 1)
		} else {
			co.IStack.push(co.IStack.pop() - 1)
		}
	case bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		vm.compare(co, instr.Op, bytecode.Kind(instr.Operand))
	case bytecode.OpConcat:
		b, a := co.SStack.pop(), co.SStack.pop()
		co.SStack.push(a + b)
	case bytecode.OpAnd:
		b, a := co.IStack.pop(), co.IStack.pop()
		co.IStack.push(boolInt(a != 0 && b != 0))
	case bytecode.OpOr:
		b, a := co.IStack.pop(), co.IStack.pop()
		co.IStack.push(boolInt(a != 0 || b != 0))
	case bytecode.OpNot:
		co.IStack.push(boolInt(co.IStack.pop() == 0))

	// --- Arrays --------------------------------------------------------------

	case bytecode.OpArrayBuild:
		kind, n := bytecode.Kind(instr.V1), int(instr.V2)
		co.OStack.push(buildArray(co, kind, n))
	case bytecode.OpIndexRef:
		if suspend, err := vm.indexRef(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpIndexLoad:
		if suspend, err := vm.indexLoad(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpIndexBoth:
		kind := bytecode.Kind(instr.Operand)
		suspend, err := vm.indexRef(co, kind)
		if suspend || err != nil {
			return suspend, err
		}
		v := derefValue(co.OStack.top())
		switch kind {
		case bytecode.KindInt:
			co.IStack.push(v.(int64))
		case bytecode.KindFloat:
			co.FStack.push(v.(float64))
		case bytecode.KindString:
			co.SStack.push(v.(string))
		case bytecode.KindObject:
			co.OStack.push(v)
		}
	case bytecode.OpArrayLen:
		co.IStack.push(int64(arrayLen(co.OStack.pop())))
	case bytecode.OpArrayConcat:
		if suspend, err := vm.arrayConcat(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpArrayAppend:
		if suspend, err := vm.arrayAppend(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpArrayPrepend:
		if suspend, err := vm.arrayPrepend(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpArrayEq:
		b, a := co.OStack.pop(), co.OStack.pop()
		co.IStack.push(boolInt(arraysEqual(a, b)))
	case bytecode.OpRefStore:
		if suspend, err := vm.refStore(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}

	// --- Objects ---------------------------------------------------------

	case bytecode.OpNewObject:
		class := &vm.bc.Classes[instr.Operand]
		co.OStack.push(NewObject(class))
	case bytecode.OpFieldLoad:
		if suspend, err := vm.fieldLoad(co, bytecode.Kind(instr.V1), int(instr.V2)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpFieldStore:
		if suspend, err := vm.fieldStore(co, bytecode.Kind(instr.V1), int(instr.V2)); suspend || err != nil {
			return suspend, err
		}

	// --- Control flow / frames ---------------------------------------------

	case bytecode.OpJump:
		co.PC = co.PC + int(instr.Operand)
		return false, nil
	case bytecode.OpJumpEqual:
		cond := co.IStack.pop()
		if cond != 0 {
			co.PC = co.PC + int(instr.Operand)
			return false, nil
		}
	case bytecode.OpJumpNotEqual:
		cond := co.IStack.pop()
		if cond == 0 {
			co.PC = co.PC + int(instr.Operand)
			return false, nil
		}
	case bytecode.OpCall:
		co.pushFrame(next)
		co.PC = int(instr.Operand)
		return false, nil
	case bytecode.OpAnonymousCall:
		target := co.IStack.pop()
		co.pushFrame(next)
		co.PC = int(target)
		return false, nil
	case bytecode.OpPrimitiveCall:
		if err := vm.invokePrimitive(co, int(instr.Operand)); err != nil {
			return true, err
		}
	case bytecode.OpReturn:
		return vm.beginUnwind(co, unwindReturn)
	case bytecode.OpLocalStackResize:
		kind, size := bytecode.Kind(instr.V1), int(instr.V2)
		switch kind {
		case bytecode.KindInt:
			co.ILocals.resize(size)
		case bytecode.KindFloat:
			co.FLocals.resize(size)
		case bytecode.KindString:
			co.SLocals.resize(size)
		case bytecode.KindObject:
			co.OLocals.resize(size)
		}

	// --- Exceptions / defer --------------------------------------------------

	case bytecode.OpRaise:
		msg := co.SStack.pop()
		return vm.raise(co, msg)
	case bytecode.OpTry:
		co.currentFrame().pushHandler(co.PC + int(instr.Operand))
	case bytecode.OpCatch:
		co.currentFrame().popHandler()
		if co.IsPanicking {
			co.SStack.push(co.PanicMessage)
			co.IsPanicking = false
		} else {
			co.PC = co.PC + int(instr.Operand)
			return false, nil
		}
	case bytecode.OpDefer:
		co.currentFrame().pushDefer(co.PC + int(instr.Operand))
	case bytecode.OpUnwind:
		return vm.continueUnwind(co)
	case bytecode.OpKill:
		co.IsKilled = true
		return vm.beginUnwind(co, unwindKill)
	case bytecode.OpKillAll:
		vm.killAll(co)
		co.PC = next
		return true, nil

	// --- Concurrency ---------------------------------------------------------

	case bytecode.OpYield:
		co.PC = next
		return true, nil
	case bytecode.OpTask:
		vm.spawnAt(int(instr.Operand))
	case bytecode.OpAnonymousTask:
		vm.spawnAt(int(co.IStack.pop()))
	case bytecode.OpSend:
		if suspend, err := vm.send(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpReceive:
		if suspend, err := vm.receive(co, bytecode.Kind(instr.Operand)); suspend || err != nil {
			return suspend, err
		}
	case bytecode.OpTryChannel:
		if co.IsEvaluatingChannel {
			return vm.raise(co, MsgSelectError)
		}
		co.tryCase(co.PC + int(instr.Operand))
	case bytecode.OpCheckChannel:
		co.checkCase()
	case bytecode.OpStartSelectChannel:
		co.startSelect()
	case bytecode.OpEndSelectChannel:
		co.endSelect()
	case bytecode.OpGlobalPush:
		kind, n := bytecode.Kind(instr.V1), int(instr.V2)
		vm.mail.push(kind, popN(co, kind, n))
	case bytecode.OpGlobalPop:
		kind, n := bytecode.Kind(instr.V1), int(instr.V2)
		pushN(co, kind, vm.mail.pop(kind, n))

	default:
		return true, newHostError("unknown opcode %d at pc %d", instr.Op, co.PC)
	}

	// A raise that reached a handler or defer, or a select case redirected
	// to SelectJumpPC, has already moved the PC; keep it there.
	if co.PC != start {
		return false, nil
	}
	co.PC = next
	return false, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func popN(co *Coroutine, kind bytecode.Kind, n int) []any {
	values := make([]any, n)
	for i := n - 1; i >= 0; i-- {
		switch kind {
		case bytecode.KindInt:
			values[i] = co.IStack.pop()
		case bytecode.KindFloat:
			values[i] = co.FStack.pop()
		case bytecode.KindString:
			values[i] = co.SStack.pop()
		case bytecode.KindObject:
			values[i] = co.OStack.pop()
		}
	}
	return values
}

func pushN(co *Coroutine, kind bytecode.Kind, values []any) {
	for _, v := range values {
		switch kind {
		case bytecode.KindInt:
			co.IStack.push(v.(int64))
		case bytecode.KindFloat:
			co.FStack.push(v.(float64))
		case bytecode.KindString:
			co.SStack.push(v.(string))
		case bytecode.KindObject:
			co.OStack.push(v)
		}
	}
}
