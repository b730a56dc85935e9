package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// Type-mask bits the host bridge checks on get/set (spec.md §4.7: "bit
// 0=int, 1=float, 2=string, 3=object").
const (
	maskInt uint8 = 1 << iota
	maskFloat
	maskString
	maskObject
)

func maskFor(k bytecode.Kind) uint8 {
	switch k {
	case bytecode.KindInt:
		return maskInt
	case bytecode.KindFloat:
		return maskFloat
	case bytecode.KindString:
		return maskString
	default:
		return maskObject
	}
}

func (vm *VM) lookupGlobal(name string, wantKind bytecode.Kind) (bytecode.GlobalDescriptor, error) {
	g, ok := vm.globalsByName[name]
	if !ok {
		return g, newHostError("unknown global variable %q", name)
	}
	if g.TypeMask&maskFor(wantKind) == 0 {
		return g, newHostError("global %q does not accept kind %s", name, wantKind)
	}
	return g, nil
}

// GetIntVariable, GetFloatVariable, GetStringVariable and GetObjectVariable
// implement the host bridge's get_<kind>_variable (spec.md §6).

func (vm *VM) GetIntVariable(name string) (int64, error) {
	g, err := vm.lookupGlobal(name, bytecode.KindInt)
	if err != nil {
		return 0, err
	}
	return vm.iGlobals[g.Index], nil
}

func (vm *VM) GetFloatVariable(name string) (float64, error) {
	g, err := vm.lookupGlobal(name, bytecode.KindFloat)
	if err != nil {
		return 0, err
	}
	return vm.fGlobals[g.Index], nil
}

func (vm *VM) GetStringVariable(name string) (string, error) {
	g, err := vm.lookupGlobal(name, bytecode.KindString)
	if err != nil {
		return "", err
	}
	return vm.sGlobals[g.Index], nil
}

func (vm *VM) GetObjectVariable(name string) (any, error) {
	g, err := vm.lookupGlobal(name, bytecode.KindObject)
	if err != nil {
		return nil, err
	}
	return vm.oGlobals[g.Index], nil
}

// SetIntVariable, SetFloatVariable, SetStringVariable and SetObjectVariable
// implement the host bridge's set_<kind>_variable (spec.md §6). Booleans
// are represented as 0/1 in the int partition and raw pointers/handles
// as opaque `any` values in the object partition, per spec.md §6's
// "including bool, int, float, string, raw-pointer, and the
// object-family containers".

func (vm *VM) SetIntVariable(name string, v int64) error {
	g, err := vm.lookupGlobal(name, bytecode.KindInt)
	if err != nil {
		return err
	}
	vm.iGlobals[g.Index] = v
	return nil
}

func (vm *VM) SetBoolVariable(name string, v bool) error {
	var i int64
	if v {
		i = 1
	}
	return vm.SetIntVariable(name, i)
}

func (vm *VM) SetFloatVariable(name string, v float64) error {
	g, err := vm.lookupGlobal(name, bytecode.KindFloat)
	if err != nil {
		return err
	}
	vm.fGlobals[g.Index] = v
	return nil
}

func (vm *VM) SetStringVariable(name string, v string) error {
	g, err := vm.lookupGlobal(name, bytecode.KindString)
	if err != nil {
		return err
	}
	vm.sGlobals[g.Index] = v
	return nil
}

func (vm *VM) SetObjectVariable(name string, v any) error {
	g, err := vm.lookupGlobal(name, bytecode.KindObject)
	if err != nil {
		return err
	}
	vm.oGlobals[g.Index] = v
	return nil
}
