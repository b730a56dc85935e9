package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// buildArray implements array_<kind>(N) (spec.md §4.6): pop N values
// off the type-matched stack into a freshly allocated array, restoring
// original push order (pop naturally yields reverse order).
func buildArray(co *Coroutine, kind bytecode.Kind, n int) any {
	switch kind {
	case bytecode.KindInt:
		vs := make([]int64, n)
		for i := n - 1; i >= 0; i-- {
			vs[i] = co.IStack.pop()
		}
		return &IntArray{Values: vs}
	case bytecode.KindFloat:
		vs := make([]float64, n)
		for i := n - 1; i >= 0; i-- {
			vs[i] = co.FStack.pop()
		}
		return &FloatArray{Values: vs}
	case bytecode.KindString:
		vs := make([]string, n)
		for i := n - 1; i >= 0; i-- {
			vs[i] = co.SStack.pop()
		}
		return &StringArray{Values: vs}
	default:
		vs := make([]any, n)
		for i := n - 1; i >= 0; i-- {
			vs[i] = co.OStack.pop()
		}
		return &ObjectArray{Values: vs}
	}
}

func arrayLen(v any) int {
	switch a := v.(type) {
	case *IntArray:
		return a.Len()
	case *FloatArray:
		return a.Len()
	case *StringArray:
		return a.Len()
	case *ObjectArray:
		return a.Len()
	}
	return 0
}

// makeRef builds the settable slot reference index_<kind> pushes, after
// resolving a possibly-negative index (spec.md §4.2/§4.6).
func makeRef(v any, idx int64) (any, bool) {
	switch a := v.(type) {
	case *IntArray:
		i, ok := resolveIndex(idx, len(a.Values))
		return IntRef{Arr: a, Idx: i}, ok
	case *FloatArray:
		i, ok := resolveIndex(idx, len(a.Values))
		return FloatRef{Arr: a, Idx: i}, ok
	case *StringArray:
		i, ok := resolveIndex(idx, len(a.Values))
		return StringRef{Arr: a, Idx: i}, ok
	case *ObjectArray:
		i, ok := resolveIndex(idx, len(a.Values))
		return ObjectRef{Arr: a, Idx: i}, ok
	}
	return nil, false
}

func derefValue(ref any) any {
	switch r := ref.(type) {
	case IntRef:
		return r.Get()
	case FloatRef:
		return r.Get()
	case StringRef:
		return r.Get()
	case ObjectRef:
		return r.Get()
	}
	return nil
}

// indexRef implements index_<kind>: pop an index and an array, push a
// reference to the resolved slot onto the object stack (spec.md §4.6).
func (vm *VM) indexRef(co *Coroutine, kind bytecode.Kind) (bool, error) {
	idx := co.IStack.pop()
	arr := co.OStack.pop()
	ref, ok := makeRef(arr, idx)
	if !ok {
		return vm.raise(co, MsgIndexError)
	}
	co.OStack.push(ref)
	return false, nil
}

// indexLoad implements index2_<kind>: pop an index and an array, push
// the resolved value onto the kind-matched stack.
func (vm *VM) indexLoad(co *Coroutine, kind bytecode.Kind) (bool, error) {
	idx := co.IStack.pop()
	arr := co.OStack.pop()
	ref, ok := makeRef(arr, idx)
	if !ok {
		return vm.raise(co, MsgIndexError)
	}
	v := derefValue(ref)
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
	return false, nil
}

// refStore implements refStore_<kind>: pop a reference off the object
// stack and a value off the kind-matched stack, and write through the
// reference (spec.md §4.6).
func (vm *VM) refStore(co *Coroutine, kind bytecode.Kind) (bool, error) {
	ref := co.OStack.pop()
	switch r := ref.(type) {
	case IntRef:
		r.Set(co.IStack.pop())
	case FloatRef:
		r.Set(co.FStack.pop())
	case StringRef:
		r.Set(co.SStack.pop())
	case ObjectRef:
		r.Set(co.OStack.pop())
	default:
		return vm.raise(co, MsgNullError)
	}
	return false, nil
}

func (vm *VM) arrayConcat(co *Coroutine, kind bytecode.Kind) (bool, error) {
	b, a := co.OStack.pop(), co.OStack.pop()
	switch kind {
	case bytecode.KindInt:
		aa, ba := a.(*IntArray), b.(*IntArray)
		co.OStack.push(&IntArray{Values: append(append([]int64{}, aa.Values...), ba.Values...)})
	case bytecode.KindFloat:
		aa, ba := a.(*FloatArray), b.(*FloatArray)
		co.OStack.push(&FloatArray{Values: append(append([]float64{}, aa.Values...), ba.Values...)})
	case bytecode.KindString:
		aa, ba := a.(*StringArray), b.(*StringArray)
		co.OStack.push(&StringArray{Values: append(append([]string{}, aa.Values...), ba.Values...)})
	default:
		aa, ba := a.(*ObjectArray), b.(*ObjectArray)
		co.OStack.push(&ObjectArray{Values: append(append([]any{}, aa.Values...), ba.Values...)})
	}
	return false, nil
}

func (vm *VM) arrayAppend(co *Coroutine, kind bytecode.Kind) (bool, error) {
	switch kind {
	case bytecode.KindInt:
		v := co.IStack.pop()
		arr := co.OStack.pop().(*IntArray)
		arr.Values = append(arr.Values, v)
		co.OStack.push(arr)
	case bytecode.KindFloat:
		v := co.FStack.pop()
		arr := co.OStack.pop().(*FloatArray)
		arr.Values = append(arr.Values, v)
		co.OStack.push(arr)
	case bytecode.KindString:
		v := co.SStack.pop()
		arr := co.OStack.pop().(*StringArray)
		arr.Values = append(arr.Values, v)
		co.OStack.push(arr)
	default:
		v := co.OStack.pop()
		arr := co.OStack.pop().(*ObjectArray)
		arr.Values = append(arr.Values, v)
		co.OStack.push(arr)
	}
	return false, nil
}

func (vm *VM) arrayPrepend(co *Coroutine, kind bytecode.Kind) (bool, error) {
	switch kind {
	case bytecode.KindInt:
		v := co.IStack.pop()
		arr := co.OStack.pop().(*IntArray)
		arr.Values = append([]int64{v}, arr.Values...)
		co.OStack.push(arr)
	case bytecode.KindFloat:
		v := co.FStack.pop()
		arr := co.OStack.pop().(*FloatArray)
		arr.Values = append([]float64{v}, arr.Values...)
		co.OStack.push(arr)
	case bytecode.KindString:
		v := co.SStack.pop()
		arr := co.OStack.pop().(*StringArray)
		arr.Values = append([]string{v}, arr.Values...)
		co.OStack.push(arr)
	default:
		v := co.OStack.pop()
		arr := co.OStack.pop().(*ObjectArray)
		arr.Values = append([]any{v}, arr.Values...)
		co.OStack.push(arr)
	}
	return false, nil
}

// arraysEqual implements array_eq's structural equality (spec.md §4.6).
func arraysEqual(a, b any) bool {
	switch av := a.(type) {
	case *IntArray:
		bv, ok := b.(*IntArray)
		if !ok || len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	case *FloatArray:
		bv, ok := b.(*FloatArray)
		if !ok || len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	case *StringArray:
		bv, ok := b.(*StringArray)
		if !ok || len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	case *ObjectArray:
		bv, ok := b.(*ObjectArray)
		if !ok || len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if !arraysEqual(av.Values[i], bv.Values[i]) && av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	}
	return false
}

// fieldLoad implements fieldLoad_<kind>(fieldIdx): pop the receiver off
// the object stack and push its field value (spec.md §4.6); a nil
// receiver raises NullError.
func (vm *VM) fieldLoad(co *Coroutine, kind bytecode.Kind, fieldIdx int) (bool, error) {
	recv := co.OStack.pop()
	obj, ok := recv.(*Object)
	if !ok || obj == nil {
		return vm.raise(co, MsgNullError)
	}
	i := fieldKindIndex(obj.Class, fieldIdx)
	switch kind {
	case bytecode.KindInt:
		co.IStack.push(obj.IFields[i])
	case bytecode.KindFloat:
		co.FStack.push(obj.FFields[i])
	case bytecode.KindString:
		co.SStack.push(obj.SFields[i])
	case bytecode.KindObject:
		co.OStack.push(obj.OFields[i])
	}
	return false, nil
}

// fieldStore implements fieldStore_<kind>(fieldIdx).
func (vm *VM) fieldStore(co *Coroutine, kind bytecode.Kind, fieldIdx int) (bool, error) {
	recv := co.OStack.pop()
	obj, ok := recv.(*Object)
	if !ok || obj == nil {
		return vm.raise(co, MsgNullError)
	}
	i := fieldKindIndex(obj.Class, fieldIdx)
	switch kind {
	case bytecode.KindInt:
		obj.IFields[i] = co.IStack.pop()
	case bytecode.KindFloat:
		obj.FFields[i] = co.FStack.pop()
	case bytecode.KindString:
		obj.SFields[i] = co.SStack.pop()
	case bytecode.KindObject:
		obj.OFields[i] = co.OStack.pop()
	}
	return false, nil
}
