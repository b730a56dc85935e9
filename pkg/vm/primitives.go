package vm

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// Call is the handle a primitive receives to read its arguments and
// write its result (spec.md §4.7/§6 "Primitive ABI"). Primitives run to
// completion synchronously within the calling coroutine's step and must
// not block — there is no yield path from inside a PrimitiveFunc.
type Call interface {
	GetInt(i int) int64
	GetFloat(i int) float64
	GetString(i int) string
	GetObject(i int) any

	SetInt(v int64)
	SetFloat(v float64)
	SetString(v string)
	SetObject(v any)

	// PushContext spawns a new coroutine at pc, the primitive-callable
	// equivalent of the task instruction (spec.md §4.7).
	PushContext(pc int)
}

// PrimitiveFunc is a host-supplied primitive implementation.
type PrimitiveFunc func(Call) error

// Library is a named, host-registered table of primitives merged into
// the VM by AddLibrary before Load (spec.md §6 "add_library(lib)").
type Library struct {
	Name  string
	ID    uuid.UUID
	Funcs map[string]PrimitiveFunc
}

// NewLibrary creates an empty, identifiable primitive library.
func NewLibrary(name string) *Library {
	return &Library{Name: name, ID: uuid.New(), Funcs: map[string]PrimitiveFunc{}}
}

// Register adds fn under name to the library.
func (l *Library) Register(name string, fn PrimitiveFunc) {
	l.Funcs[name] = fn
}

// parsedSignature is a PrimitiveDescriptor.Signature decoded into a
// callable name and its parameter/return kinds, e.g. "add(I,I)->I".
type parsedSignature struct {
	name    string
	params  []bytecode.Kind
	hasRet  bool
	retKind bytecode.Kind
}

func parseSignature(sig string) (parsedSignature, error) {
	open := strings.IndexByte(sig, '(')
	close := strings.IndexByte(sig, ')')
	arrow := strings.Index(sig, "->")
	if open < 0 || close < 0 || arrow < close {
		return parsedSignature{}, newHostError("malformed primitive signature %q", sig)
	}

	ps := parsedSignature{name: sig[:open]}
	paramList := strings.TrimSpace(sig[open+1 : close])
	if paramList != "" {
		for _, letter := range strings.Split(paramList, ",") {
			kind, err := kindFromLetter(strings.TrimSpace(letter))
			if err != nil {
				return parsedSignature{}, err
			}
			ps.params = append(ps.params, kind)
		}
	}

	ret := strings.TrimSpace(sig[arrow+2:])
	if ret != "" {
		kind, err := kindFromLetter(ret)
		if err != nil {
			return parsedSignature{}, err
		}
		ps.retKind, ps.hasRet = kind, true
	}
	return ps, nil
}

func kindFromLetter(l string) (bytecode.Kind, error) {
	switch l {
	case "I":
		return bytecode.KindInt, nil
	case "F":
		return bytecode.KindFloat, nil
	case "S":
		return bytecode.KindString, nil
	case "O":
		return bytecode.KindObject, nil
	default:
		return 0, newHostError("unknown primitive signature kind %q", l)
	}
}

// callImpl is the concrete Call a dispatched primitive_call receives.
type callImpl struct {
	vm *VM

	ints    []int64
	floats  []float64
	strings []string
	objects []any

	hasResult  bool
	resultKind bytecode.Kind
	resultI    int64
	resultF    float64
	resultS    string
	resultO    any
}

func (c *callImpl) GetInt(i int) int64       { return c.ints[i] }
func (c *callImpl) GetFloat(i int) float64   { return c.floats[i] }
func (c *callImpl) GetString(i int) string   { return c.strings[i] }
func (c *callImpl) GetObject(i int) any      { return c.objects[i] }
func (c *callImpl) SetInt(v int64)           { c.resultKind, c.resultI, c.hasResult = bytecode.KindInt, v, true }
func (c *callImpl) SetFloat(v float64)       { c.resultKind, c.resultF, c.hasResult = bytecode.KindFloat, v, true }
func (c *callImpl) SetString(v string)       { c.resultKind, c.resultS, c.hasResult = bytecode.KindString, v, true }
func (c *callImpl) SetObject(v any)          { c.resultKind, c.resultO, c.hasResult = bytecode.KindObject, v, true }
func (c *callImpl) PushContext(pc int)       { c.vm.spawnAt(pc) }

// invokePrimitive implements OpPrimitiveCall (spec.md §4.7/§6): look up
// the primitive's library and function by descriptor, pop its declared
// arguments off the coroutine's typed stacks, run it synchronously, and
// push its result (if any) onto the matching stack.
func (vm *VM) invokePrimitive(co *Coroutine, idx int) error {
	if idx < 0 || idx >= len(vm.bc.Primitives) {
		return newHostError("primitive index %d out of range", idx)
	}
	desc := vm.bc.Primitives[idx]
	if desc.LibraryIndex < 0 || desc.LibraryIndex >= len(vm.libraries) {
		return newHostError("primitive %d: library index %d out of range", idx, desc.LibraryIndex)
	}
	lib := vm.libraries[desc.LibraryIndex]

	sig, err := parseSignature(desc.Signature)
	if err != nil {
		return err
	}
	fn, ok := lib.Funcs[sig.name]
	if !ok {
		return newHostError("primitive %q not registered in library %q", sig.name, lib.Name)
	}

	call := &callImpl{vm: vm}
	// Parameters are popped last-declared first, each from its own typed
	// stack, and stored in declared order; a primitive signature mixing kinds addresses each kind's
	// arguments independently (get_int(0) is "my first int argument",
	// not "my first argument overall").
	for i := len(sig.params) - 1; i >= 0; i-- {
		switch sig.params[i] {
		case bytecode.KindInt:
			call.ints = append([]int64{co.IStack.pop()}, call.ints...)
		case bytecode.KindFloat:
			call.floats = append([]float64{co.FStack.pop()}, call.floats...)
		case bytecode.KindString:
			call.strings = append([]string{co.SStack.pop()}, call.strings...)
		case bytecode.KindObject:
			call.objects = append([]any{co.OStack.pop()}, call.objects...)
		}
	}

	if err := fn(call); err != nil {
		return wrapHostError(err, "primitive "+sig.name)
	}

	if call.hasResult {
		switch call.resultKind {
		case bytecode.KindInt:
			co.IStack.push(call.resultI)
		case bytecode.KindFloat:
			co.FStack.push(call.resultF)
		case bytecode.KindString:
			co.SStack.push(call.resultS)
		case bytecode.KindObject:
			co.OStack.push(call.resultO)
		}
	}
	return nil
}
