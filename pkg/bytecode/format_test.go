package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &Bytecode{
		Opcodes: []uint32{
			EncodeWord(OpPushConstI, 0),
			EncodeWord(OpReturn, 0),
		},
		IConsts: []int64{42, -7},
		FConsts: []float64{3.5, -1.25},
		SConsts: []string{"hello", ""},
		GlobalsCount: [NumKinds]int{1: 2, 3: 1},
		Primitives: []PrimitiveDescriptor{
			{LibraryIndex: 0, Signature: "print(S)->"},
		},
		Globals: []GlobalDescriptor{
			{Name: "score", Kind: KindInt, Index: 0, TypeMask: 1 << KindInt},
		},
		Events: map[string]int{
			"on_tick": 4,
			"on_hit":  9,
		},
		Classes: []ClassDescriptor{
			{
				Name: "Vector",
				Fields: []FieldDescriptor{
					{Name: "x", Kind: KindFloat},
					{Name: "y", Kind: KindFloat},
				},
			},
		},
		DebugInfo: []DebugFunc{
			{Name: "main", BytecodePos: 0, Length: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))
	require.NotZero(t, buf.Len())

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, original.Opcodes, decoded.Opcodes)
	require.Equal(t, original.IConsts, decoded.IConsts)
	require.Equal(t, original.FConsts, decoded.FConsts)
	require.Equal(t, original.SConsts, decoded.SConsts)
	require.Equal(t, original.GlobalsCount, decoded.GlobalsCount)
	require.Equal(t, original.Primitives, decoded.Primitives)
	require.Equal(t, original.Globals, decoded.Globals)
	require.Equal(t, original.Events, decoded.Events)
	require.Equal(t, original.Classes, decoded.Classes)
	require.Equal(t, original.DebugInfo, decoded.DebugInfo)
}

func TestEncodeDecodeEmptyBytecode(t *testing.T) {
	original := &Bytecode{}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Opcodes)
	require.Empty(t, decoded.Events)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU32(&buf, 0xDEADBEEF))
	require.NoError(t, writeU32(&buf, FormatVersion))

	_, err := Decode(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU32(&buf, MagicNumber))
	require.NoError(t, writeU32(&buf, FormatVersion+1))

	_, err := Decode(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported format version")
}

func TestDecodeTruncatedStreamFails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU32(&buf, MagicNumber))
	require.NoError(t, writeU32(&buf, FormatVersion))
	// omit the rest of the header

	_, err := Decode(&buf)
	require.Error(t, err)
}
