package vm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// newTestIOLibrary returns a single-function "io" library whose print
// primitive appends its string argument to sink, standing in for a host's
// console in the absence of a real terminal during these tests.
func newTestIOLibrary(sink *[]string) *Library {
	lib := NewLibrary("io")
	lib.Register("print", func(c Call) error {
		*sink = append(*sink, c.GetString(0))
		return nil
	})
	return lib
}

func runToCompletion(t *testing.T, vm *VM) {
	t.Helper()
	for rounds := 0; vm.HasCoroutines(); rounds++ {
		require.Less(t, rounds, 1000, "runaway coroutine: never finished")
		require.NoError(t, vm.Process())
	}
}

// TestHelloWorld covers spec.md §8 scenario 1: a single primitive call
// writes a literal string and the coroutine terminates normally.
func TestHelloWorld(t *testing.T) {
	var sink []string
	bc := &bytecode.Bytecode{
		Opcodes: []uint32{
			bytecode.EncodeWord(bytecode.OpPushConstS, 0),
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 0),
			bytecode.EncodeWord(bytecode.OpReturn, 0),
		},
		SConsts:    []string{"hi"},
		Primitives: []bytecode.PrimitiveDescriptor{{LibraryIndex: 0, Signature: "print(S)->"}},
	}

	machine := New()
	machine.AddLibrary(newTestIOLibrary(&sink))
	require.NoError(t, machine.Load(bc))
	machine.Spawn()
	runToCompletion(t, machine)

	require.Equal(t, []string{"hi"}, sink)
	require.False(t, machine.IsPanicking())
}

// TestArithmeticAndTypecast covers spec.md §8 scenario 2: int and float
// arithmetic each feed a cast-to-string primitive before concatenation.
func TestArithmeticAndTypecast(t *testing.T) {
	var sink []string
	bc := &bytecode.Bytecode{
		Opcodes: []uint32{
			bytecode.EncodeWord(bytecode.OpPushI, 1),
			bytecode.EncodeWord(bytecode.OpPushI, 2),
			bytecode.EncodeWord(bytecode.OpAdd, int32(bytecode.KindInt)),
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 0), // itoa
			bytecode.EncodeWord(bytecode.OpPushConstS, 0),    // " "
			bytecode.EncodeWord(bytecode.OpConcat, 0),
			bytecode.EncodeWord(bytecode.OpPushConstF, 0), // 3.5
			bytecode.EncodeWord(bytecode.OpPushConstF, 1), // 2.0
			bytecode.EncodeWord(bytecode.OpDiv, int32(bytecode.KindFloat)),
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 1), // ftoa
			bytecode.EncodeWord(bytecode.OpConcat, 0),
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 2), // print
			bytecode.EncodeWord(bytecode.OpReturn, 0),
		},
		SConsts: []string{" "},
		FConsts: []float64{3.5, 2.0},
		Primitives: []bytecode.PrimitiveDescriptor{
			{LibraryIndex: 0, Signature: "itoa(I)->S"},
			{LibraryIndex: 0, Signature: "ftoa(F)->S"},
			{LibraryIndex: 0, Signature: "print(S)->"},
		},
	}

	lib := NewLibrary("fmtlib")
	lib.Register("itoa", func(c Call) error {
		c.SetString(strconv.FormatInt(c.GetInt(0), 10))
		return nil
	})
	lib.Register("ftoa", func(c Call) error {
		c.SetString(strconv.FormatFloat(c.GetFloat(0), 'g', -1, 64))
		return nil
	})
	lib.Register("print", func(c Call) error {
		sink = append(sink, c.GetString(0))
		return nil
	})

	machine := New()
	machine.AddLibrary(lib)
	require.NoError(t, machine.Load(bc))
	machine.Spawn()
	runToCompletion(t, machine)

	require.Equal(t, []string{"3 1.75"}, sink)
}

// TestDivisionByZeroEscalatesToVMPanic covers spec.md §8 scenario 3: an
// unhandled ZeroDivisionError at the root frame escalates to a VM-level
// panic and the coroutine is swept.
func TestDivisionByZeroEscalatesToVMPanic(t *testing.T) {
	bc := &bytecode.Bytecode{
		Opcodes: []uint32{
			bytecode.EncodeWord(bytecode.OpPushI, 10),
			bytecode.EncodeWord(bytecode.OpPushI, 0),
			bytecode.EncodeWord(bytecode.OpDiv, int32(bytecode.KindInt)),
			bytecode.EncodeWord(bytecode.OpReturn, 0),
		},
	}

	machine := New()
	require.NoError(t, machine.Load(bc))
	machine.Spawn()
	runToCompletion(t, machine)

	require.True(t, machine.IsPanicking())
	require.Equal(t, MsgZeroDivisionError, machine.PanicMessage())
}

// TestDeferRunsLIFO covers spec.md §8 scenario 4: two deferred blocks
// registered in source order run in reverse (most-recently-deferred
// first) when the frame returns.
func TestDeferRunsLIFO(t *testing.T) {
	var sink []string
	bc := &bytecode.Bytecode{
		Opcodes: []uint32{
			bytecode.EncodeWord(bytecode.OpDefer, 6), // pc0 -> body "a" at pc6
			bytecode.EncodeWord(bytecode.OpDefer, 2), // pc1 -> body "b" at pc3
			bytecode.EncodeWord(bytecode.OpReturn, 0),
			bytecode.EncodeWord(bytecode.OpPushConstS, 1), // pc3: "b"
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 0),
			bytecode.EncodeWord(bytecode.OpUnwind, 0),
			bytecode.EncodeWord(bytecode.OpPushConstS, 0), // pc6: "a"
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 0),
			bytecode.EncodeWord(bytecode.OpUnwind, 0),
		},
		SConsts:    []string{"a", "b"},
		Primitives: []bytecode.PrimitiveDescriptor{{LibraryIndex: 0, Signature: "print(S)->"}},
	}

	machine := New()
	machine.AddLibrary(newTestIOLibrary(&sink))
	require.NoError(t, machine.Load(bc))
	machine.Spawn()
	runToCompletion(t, machine)

	require.Equal(t, []string{"b", "a"}, sink)
	require.False(t, machine.IsPanicking())
}

// TestTryCatchRecoversAndTerminatesCleanly covers spec.md §8 scenario 5:
// a raise inside a try block is caught, the handler prints the message,
// and the coroutine ends without escalating to a VM panic.
func TestTryCatchRecoversAndTerminatesCleanly(t *testing.T) {
	var sink []string
	bc := &bytecode.Bytecode{
		Opcodes: []uint32{
			bytecode.EncodeWord(bytecode.OpTry, 4), // pc0 -> handler at pc4
			bytecode.EncodeWord(bytecode.OpPushConstS, 0),
			bytecode.EncodeWord(bytecode.OpRaise, 0),
			bytecode.EncodeWord(bytecode.OpNop, 0),
			bytecode.EncodeWord(bytecode.OpCatch, 2), // pc4: handler
			bytecode.EncodeWord(bytecode.OpPrimitiveCall, 0),
			bytecode.EncodeWord(bytecode.OpReturn, 0),
		},
		SConsts:    []string{"oops"},
		Primitives: []bytecode.PrimitiveDescriptor{{LibraryIndex: 0, Signature: "print(S)->"}},
	}

	machine := New()
	machine.AddLibrary(newTestIOLibrary(&sink))
	require.NoError(t, machine.Load(bc))
	machine.Spawn()
	runToCompletion(t, machine)

	require.Equal(t, []string{"oops"}, sink)
	require.False(t, machine.IsPanicking())
}

func TestHostBridgeRejectsUnknownGlobal(t *testing.T) {
	bc := &bytecode.Bytecode{Opcodes: []uint32{bytecode.EncodeWord(bytecode.OpReturn, 0)}}
	machine := New()
	require.NoError(t, machine.Load(bc))

	_, err := machine.GetIntVariable("missing")
	require.Error(t, err)
}

func TestHostBridgeRejectsKindMismatch(t *testing.T) {
	bc := &bytecode.Bytecode{
		Opcodes:      []uint32{bytecode.EncodeWord(bytecode.OpReturn, 0)},
		GlobalsCount: [bytecode.NumKinds]int{bytecode.KindInt: 1},
		Globals: []bytecode.GlobalDescriptor{
			{Name: "score", Kind: bytecode.KindInt, Index: 0, TypeMask: 1 << bytecode.KindInt},
		},
	}
	machine := New()
	require.NoError(t, machine.Load(bc))

	require.NoError(t, machine.SetIntVariable("score", 42))
	_, err := machine.GetFloatVariable("score")
	require.Error(t, err)

	got, err := machine.GetIntVariable("score")
	require.NoError(t, err)
	require.Equal(t, int64(42), got)
}
