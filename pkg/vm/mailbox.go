package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// mailbox is the process-wide, type-partitioned queue spec.md §3/§9
// uses to carry arguments from a spawner to a newly spawned coroutine.
// Each type's pair of in/out buffers is swapped at the top of every
// round (pkg/vm/scheduler.go Process), so a value pushed this round is
// only visible to globalPop_<kind> calls starting next round — the
// "spawned next tick" guarantee with no cross-coroutine synchronization.
type mailbox struct {
	i [bytecode.NumKinds]*mailboxPair
}

type mailboxPair struct {
	in, out []any
}

func newMailbox() *mailbox {
	m := &mailbox{}
	for k := 0; k < bytecode.NumKinds; k++ {
		m.i[k] = &mailboxPair{}
	}
	return m
}

// push drains n values into kind's outgoing buffer. The caller is
// responsible for popping them off the issuing coroutine's stack in
// order before calling this (globalPush_<kind>, spec.md §4.4).
func (m *mailbox) push(kind bytecode.Kind, values []any) {
	p := m.i[kind]
	p.out = append(p.out, values...)
}

// pop removes and returns up to n values from kind's incoming buffer,
// in FIFO order (globalPop_<kind>, a spawned task's prologue).
func (m *mailbox) pop(kind bytecode.Kind, n int) []any {
	p := m.i[kind]
	if n > len(p.in) {
		n = len(p.in)
	}
	values := p.in[:n]
	p.in = p.in[n:]
	return values
}

// swap exchanges each partition's in/out buffers and clears the new out
// buffer, called once at the top of every scheduler round.
func (m *mailbox) swap() {
	for k := 0; k < bytecode.NumKinds; k++ {
		p := m.i[k]
		p.in, p.out = p.out, p.in[:0]
	}
}
