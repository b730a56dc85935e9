package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackPushPopOrder(t *testing.T) {
	s := newStack[int64](4)
	s.push(1)
	s.push(2)
	s.push(3)
	require.Equal(t, 3, s.len())
	require.Equal(t, int64(3), s.top())
	require.Equal(t, int64(2), s.at(1))
	require.Equal(t, int64(3), s.pop())
	require.Equal(t, int64(2), s.pop())
	require.Equal(t, int64(1), s.pop())
	require.Equal(t, 0, s.len())
}

func TestStackGrowsPastInitialCapacity(t *testing.T) {
	s := newStack[int64](2)
	for i := int64(0); i < 64; i++ {
		s.push(i)
	}
	require.Equal(t, 64, s.len())
	for i := int64(63); i >= 0; i-- {
		require.Equal(t, i, s.pop())
	}
}

func TestStackDupAndSwap(t *testing.T) {
	s := newStack[int64](4)
	s.push(1)
	s.push(2)
	s.dup()
	require.Equal(t, []int64{1, 2, 2}, s.data)
	s.swapTop()
	require.Equal(t, []int64{1, 2, 2}, s.data) // swapping two equal tops is a no-op observationally
	s.data = []int64{1, 2}
	s.swapTop()
	require.Equal(t, []int64{2, 1}, s.data)
}

func TestStackShiftDropsAndReserves(t *testing.T) {
	s := newStack[int64](4)
	s.push(1)
	s.push(2)
	s.push(3)
	s.shift(-2)
	require.Equal(t, []int64{1}, s.data)
	s.shift(2)
	require.Equal(t, []int64{1, 0, 0}, s.data)
}

func TestArenaFrameEnterLeaveRestoresBase(t *testing.T) {
	a := newArena[int64](16)
	a.resize(3)
	a.set(0, 10)
	a.set(1, 20)
	a.set(2, 30)

	savedBase, savedSize := a.enterFrame()
	require.Equal(t, 0, savedBase)
	require.Equal(t, 3, savedSize)
	require.Equal(t, 3, a.base)
	require.Equal(t, 0, a.size)

	a.resize(2)
	a.set(0, 99)
	require.Equal(t, int64(99), a.get(0))

	a.leaveFrame(savedBase, savedSize)
	require.Equal(t, 0, a.base)
	require.Equal(t, 3, a.size)
	require.Equal(t, int64(10), a.get(0))
	require.Equal(t, int64(20), a.get(1))
	require.Equal(t, int64(30), a.get(2))
}

func TestArenaGrowsWhenNestedFrameOverflowsCapacity(t *testing.T) {
	a := newArena[int64](4) // newArena raises any capacity below 16 to 16
	a.resize(3)
	a.enterFrame()
	a.resize(14) // base=3, size=14 -> need 17 slots, past initial capacity of 16
	a.set(13, 7)
	require.Equal(t, int64(7), a.get(13))
	require.GreaterOrEqual(t, len(a.data), 17)
}
