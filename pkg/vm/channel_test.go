package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// TestChannelRendezvousAcrossRounds covers spec.md §8 scenario 6: one
// coroutine sends 1, 2, 3 into a capacity-1 channel while another receives
// three times and accumulates the sum into a shared int global. Because
// the channel only holds one value at a time, sender and receiver must
// hand off across multiple process() rounds.
func TestChannelRendezvousAcrossRounds(t *testing.T) {
	const chanIdx, sumIdx = 0, 0

	loadCh := bytecode.EncodeWord2(bytecode.OpLoadGlobal, uint8(bytecode.KindObject), chanIdx)
	loadSum := bytecode.EncodeWord2(bytecode.OpLoadGlobal, uint8(bytecode.KindInt), sumIdx)
	storeSum := bytecode.EncodeWord2(bytecode.OpStoreGlobal, uint8(bytecode.KindInt), sumIdx)
	addInt := bytecode.EncodeWord(bytecode.OpAdd, int32(bytecode.KindInt))
	sendInt := bytecode.EncodeWord(bytecode.OpSend, int32(bytecode.KindInt))
	recvInt := bytecode.EncodeWord(bytecode.OpReceive, int32(bytecode.KindInt))

	var producer, consumer []uint32
	for _, v := range []int32{1, 2, 3} {
		producer = append(producer, loadCh, bytecode.EncodeWord(bytecode.OpPushI, v), sendInt)
	}
	producer = append(producer, bytecode.EncodeWord(bytecode.OpReturn, 0))

	for i := 0; i < 3; i++ {
		consumer = append(consumer, loadCh, recvInt, loadSum, addInt, storeSum)
	}
	consumer = append(consumer, bytecode.EncodeWord(bytecode.OpReturn, 0))

	producerPC := 0
	consumerPC := len(producer)

	opcodes := append(append([]uint32{}, producer...), consumer...)

	bc := &bytecode.Bytecode{
		Opcodes:      opcodes,
		GlobalsCount: [bytecode.NumKinds]int{bytecode.KindInt: 1, bytecode.KindObject: 1},
		Globals: []bytecode.GlobalDescriptor{
			{Name: "ch", Kind: bytecode.KindObject, Index: chanIdx, TypeMask: 1 << bytecode.KindObject},
			{Name: "sum", Kind: bytecode.KindInt, Index: sumIdx, TypeMask: 1 << bytecode.KindInt},
		},
	}

	machine := New()
	require.NoError(t, machine.Load(bc))
	require.NoError(t, machine.SetObjectVariable("ch", NewChannel(bytecode.KindInt, 1)))

	machine.PushContext(producerPC)
	machine.PushContext(consumerPC)

	for machine.HasCoroutines() {
		require.NoError(t, machine.Process())
		require.Less(t, machine.Rounds(), 100, "runaway rendezvous: never finished")
	}

	require.GreaterOrEqual(t, machine.Rounds(), 3)
	sum, err := machine.GetIntVariable("sum")
	require.NoError(t, err)
	require.Equal(t, int64(6), sum)
}

// TestSelectFallsThroughOnImmediateSuccess covers the try_channel /
// check_channel pairing (spec.md §4.4 item 2): a case whose send succeeds
// immediately falls through to its body without restoring the saved
// stack or touching select_jump_pc.
func TestSelectFallsThroughOnImmediateSuccess(t *testing.T) {
	const chanIdx = 0

	loadCh := bytecode.EncodeWord2(bytecode.OpLoadGlobal, uint8(bytecode.KindObject), chanIdx)
	sendInt := bytecode.EncodeWord(bytecode.OpSend, int32(bytecode.KindInt))

	opcodes := []uint32{
		bytecode.EncodeWord(bytecode.OpStartSelectChannel, 0), // pc0
		bytecode.EncodeWord(bytecode.OpTryChannel, 4),         // pc1 -> fallback at pc5 if blocked/closed
		loadCh,                                                // pc2
		bytecode.EncodeWord(bytecode.OpPushI, 7),              // pc3
		sendInt,                                               // pc4: succeeds immediately (capacity 1, empty)
		bytecode.EncodeWord(bytecode.OpCheckChannel, 0),       // pc5
		bytecode.EncodeWord(bytecode.OpEndSelectChannel, 0),   // pc6
		bytecode.EncodeWord(bytecode.OpReturn, 0),             // pc7
	}

	bc := &bytecode.Bytecode{
		Opcodes:      opcodes,
		GlobalsCount: [bytecode.NumKinds]int{bytecode.KindObject: 1},
		Globals: []bytecode.GlobalDescriptor{
			{Name: "ch", Kind: bytecode.KindObject, Index: chanIdx, TypeMask: 1 << bytecode.KindObject},
		},
	}

	machine := New()
	require.NoError(t, machine.Load(bc))
	ch := NewChannel(bytecode.KindInt, 1)
	require.NoError(t, machine.SetObjectVariable("ch", ch))

	machine.Spawn()
	for machine.HasCoroutines() {
		require.NoError(t, machine.Process())
		require.Less(t, machine.Rounds(), 100, "runaway select: never finished")
	}

	require.False(t, machine.IsPanicking())
	require.Equal(t, []any{int64(7)}, ch.Buf)
}
