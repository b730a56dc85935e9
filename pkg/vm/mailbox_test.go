package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

func TestMailboxVisibleOnlyAfterSwap(t *testing.T) {
	m := newMailbox()
	m.push(bytecode.KindInt, []any{int64(1), int64(2)})

	require.Empty(t, m.pop(bytecode.KindInt, 2), "pushed values must not be visible before a swap")

	m.swap()
	require.Equal(t, []any{int64(1), int64(2)}, m.pop(bytecode.KindInt, 2))
	require.Empty(t, m.pop(bytecode.KindInt, 1))
}

func TestMailboxPopClampsToAvailable(t *testing.T) {
	m := newMailbox()
	m.push(bytecode.KindString, []any{"a"})
	m.swap()

	got := m.pop(bytecode.KindString, 5)
	require.Equal(t, []any{"a"}, got)
}
