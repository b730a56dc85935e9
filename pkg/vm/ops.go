package vm

import (
	"math"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// arith implements the int/float add/sub/mul/div/mod family (spec.md
// §4.2), raising ZeroDivisionError when the divisor is the additive
// identity for its type (spec.md §4.2).
func (vm *VM) arith(co *Coroutine, op bytecode.Op, kind bytecode.Kind) (bool, error) {
	if kind == bytecode.KindFloat {
		b, a := co.FStack.pop(), co.FStack.pop()
		switch op {
		case bytecode.OpAdd:
			co.FStack.push(a + b)
		case bytecode.OpSub:
			co.FStack.push(a - b)
		case bytecode.OpMul:
			co.FStack.push(a * b)
		case bytecode.OpDiv:
			if b == 0 {
				return vm.raise(co, MsgZeroDivisionError)
			}
			co.FStack.push(a / b)
		case bytecode.OpMod:
			if b == 0 {
				return vm.raise(co, MsgZeroDivisionError)
			}
			co.FStack.push(math.Mod(a, b))
		}
		return false, nil
	}

	b, a := co.IStack.pop(), co.IStack.pop()
	switch op {
	case bytecode.OpAdd:
		co.IStack.push(a + b)
	case bytecode.OpSub:
		co.IStack.push(a - b)
	case bytecode.OpMul:
		co.IStack.push(a * b)
	case bytecode.OpDiv:
		if b == 0 {
			return vm.raise(co, MsgZeroDivisionError)
		}
		co.IStack.push(a / b)
	case bytecode.OpMod:
		if b == 0 {
			return vm.raise(co, MsgZeroDivisionError)
		}
		co.IStack.push(a % b)
	}
	return false, nil
}

// compare implements the six comparison opcodes across int, float and
// string (spec.md §4.2); object comparisons only support eq/ne by
// identity and are otherwise the compiler's responsibility to avoid.
func (vm *VM) compare(co *Coroutine, op bytecode.Op, kind bytecode.Kind) {
	var result bool
	switch kind {
	case bytecode.KindFloat:
		b, a := co.FStack.pop(), co.FStack.pop()
		result = compareOrdered(op, a, b)
	case bytecode.KindString:
		b, a := co.SStack.pop(), co.SStack.pop()
		result = compareOrdered(op, a, b)
	case bytecode.KindObject:
		b, a := co.OStack.pop(), co.OStack.pop()
		switch op {
		case bytecode.OpEq:
			result = a == b
		case bytecode.OpNe:
			result = a != b
		}
	default:
		b, a := co.IStack.pop(), co.IStack.pop()
		result = compareOrdered(op, a, b)
	}
	co.IStack.push(boolInt(result))
}

type ordered interface {
	~int64 | ~float64 | ~string
}

func compareOrdered[T ordered](op bytecode.Op, a, b T) bool {
	switch op {
	case bytecode.OpEq:
		return a == b
	case bytecode.OpNe:
		return a != b
	case bytecode.OpLt:
		return a < b
	case bytecode.OpLe:
		return a <= b
	case bytecode.OpGt:
		return a > b
	case bytecode.OpGe:
		return a >= b
	}
	return false
}
