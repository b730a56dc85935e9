package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// finishChannelOp resolves a send/receive attempt's outcome. Inside a
// select evaluation (spec.md §4.4 item 2) it redirects via resolveCase;
// outside one, a blocked attempt locks the coroutine for a retry next
// round and a closed channel raises ChannelError (spec.md §4.4
// "Instructions that yield or block").
func (vm *VM) finishChannelOp(co *Coroutine, outcome selectOutcome) (bool, error) {
	if co.IsEvaluatingChannel {
		co.resolveCase(outcome)
		return outcome == selectBlocked, nil
	}
	switch outcome {
	case selectClosed:
		return vm.raise(co, MsgChannelError)
	case selectBlocked:
		co.IsLocked = true
		return true, nil
	default:
		return false, nil
	}
}

// send implements send_<kind> (spec.md §4.4/§4.7): the channel is
// peeked (not popped) from the object stack until the attempt is known
// to succeed, so a blocked attempt leaves the stack exactly as it was
// for a retry next round. A channel of object kind carries its payload
// above it on the same stack; every other kind keeps its payload on its
// own type-matched stack, so there's no ordering conflict with the
// channel reference.
func (vm *VM) send(co *Coroutine, kind bytecode.Kind) (bool, error) {
	depth := 0
	if kind == bytecode.KindObject {
		depth = 1
	}
	ch, ok := co.OStack.at(depth).(*Channel)
	if !ok {
		return vm.raise(co, MsgChannelError)
	}
	if !ch.Owned {
		return vm.finishChannelOp(co, selectClosed)
	}
	if !ch.CanSend() {
		return vm.finishChannelOp(co, selectBlocked)
	}

	var v any
	switch kind {
	case bytecode.KindInt:
		v = co.IStack.pop()
		co.OStack.pop()
	case bytecode.KindFloat:
		v = co.FStack.pop()
		co.OStack.pop()
	case bytecode.KindString:
		v = co.SStack.pop()
		co.OStack.pop()
	default:
		v = co.OStack.pop()
		co.OStack.pop()
	}
	ch.Send(v)
	return vm.finishChannelOp(co, selectSucceeded)
}

// receive implements receive_<kind>: pop the channel, push the
// dequeued value onto the kind-matched stack.
func (vm *VM) receive(co *Coroutine, kind bytecode.Kind) (bool, error) {
	ch, ok := co.OStack.top().(*Channel)
	if !ok {
		return vm.raise(co, MsgChannelError)
	}
	if !ch.CanReceive() {
		if !ch.Owned {
			return vm.finishChannelOp(co, selectClosed)
		}
		ch.ReceiverReady = true
		return vm.finishChannelOp(co, selectBlocked)
	}

	co.OStack.pop()
	v := ch.Receive()
	switch kind {
	case bytecode.KindInt:
		co.IStack.push(v.(int64))
	case bytecode.KindFloat:
		co.FStack.push(v.(float64))
	case bytecode.KindString:
		co.SStack.push(v.(string))
	default:
		co.OStack.push(v)
	}
	return vm.finishChannelOp(co, selectSucceeded)
}
