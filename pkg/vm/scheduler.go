// Package vm implements the Grimoire bytecode virtual machine.
//
// The VM is a single-threaded, cooperative scheduler over a pool of
// Coroutines (spec.md §2/§5). It owns one Bytecode artifact, the four
// type-partitioned global arrays, the cross-coroutine mailbox, and the
// registered primitive libraries. The host drives execution by calling
// Process repeatedly; each call is one "round" (spec.md §5).
package vm

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Zenohate/grimoire/pkg/bytecode"
)

// VM is the Host API capability set spec.md §6 requires: add_library,
// load, spawn/spawn_event/push_context, process, has_coroutines,
// is_panicking/panic_message, get/set_<kind>_variable, and the
// cooperative is_running cancellation flag.
type VM struct {
	bc *bytecode.Bytecode

	iGlobals []int64
	fGlobals []float64
	sGlobals []string
	oGlobals []any

	globalsByName map[string]bytecode.GlobalDescriptor

	mail *mailbox

	ready      []*Coroutine
	spawnQueue []*Coroutine

	libraries []*Library

	// IsRunning is the host-settable cooperative cancellation flag
	// (spec.md §5 "Cancellation"). Process checks it at the top of
	// every instruction step; clearing it mid-round leaves every
	// coroutine's PC intact for a later resume.
	IsRunning bool

	vmPanicking    bool
	vmPanicMessage string
	vmPanicTrace   []StackFrame
	vmPanicError   *RuntimeError

	rounds int

	// Log is optional; when the zero value, logging is silent (a
	// library must not force logging on an embedder). Set it with
	// zerolog.New(...) before Load to observe rounds, panics and kills.
	Log zerolog.Logger
}

// New constructs an unloaded VM. Register libraries with AddLibrary,
// then call Load before spawning any coroutine.
func New() *VM {
	return &VM{
		mail:          newMailbox(),
		globalsByName: map[string]bytecode.GlobalDescriptor{},
		IsRunning:     true,
	}
}

// AddLibrary registers a primitive library (spec.md §6 "add_library").
// A primitive descriptor's library index is resolved against the
// registered libraries each time its primitive_call executes, not at
// Load.
func (vm *VM) AddLibrary(lib *Library) int {
	vm.libraries = append(vm.libraries, lib)
	return len(vm.libraries) - 1
}

// Load performs one-time initialization from a Bytecode artifact
// (spec.md §6 "load(bytecode)"): allocate the four global arrays per
// GlobalsCount and index the named-global table for the host bridge.
func (vm *VM) Load(bc *bytecode.Bytecode) error {
	vm.bc = bc
	vm.iGlobals = make([]int64, bc.GlobalsCount[bytecode.KindInt])
	vm.fGlobals = make([]float64, bc.GlobalsCount[bytecode.KindFloat])
	vm.sGlobals = make([]string, bc.GlobalsCount[bytecode.KindString])
	vm.oGlobals = make([]any, bc.GlobalsCount[bytecode.KindObject])

	for _, g := range bc.Globals {
		vm.globalsByName[g.Name] = g
	}
	vm.Log.Debug().Int("opcodes", len(bc.Opcodes)).Int("classes", len(bc.Classes)).Msg("bytecode loaded")
	return nil
}

// Spawn seeds a root coroutine at PC 0 (spec.md §2 "spawn() seeds a root
// coroutine").
func (vm *VM) Spawn() {
	vm.spawnAt(0)
}

// SpawnEvent looks up name in the bytecode's event table and enqueues a
// new coroutine at its PC (spec.md §4.7). Returns a host-level error if
// the event is unknown.
func (vm *VM) SpawnEvent(name string) error {
	pc, ok := vm.bc.Events[name]
	if !ok {
		return newHostError("unknown event %q", name)
	}
	vm.spawnAt(pc)
	return nil
}

// PushContext is the host-facing equivalent of a primitive's
// Call.PushContext: spawn a coroutine at an arbitrary PC.
func (vm *VM) PushContext(pc int) {
	vm.spawnAt(pc)
}

func (vm *VM) spawnAt(pc int) {
	co := newCoroutine(pc)
	vm.spawnQueue = append(vm.spawnQueue, co)
	vm.Log.Debug().Str("coroutine", co.ID.String()).Int("pc", pc).Msg("spawned")
}

// HasCoroutines reports whether any coroutine is still ready to run.
func (vm *VM) HasCoroutines() bool {
	return len(vm.ready) > 0 || len(vm.spawnQueue) > 0
}

// IsPanicking reports whether the VM escalated a script panic to the
// root (spec.md §4.5 item 4).
func (vm *VM) IsPanicking() bool { return vm.vmPanicking }

// PanicMessage returns the message captured when the VM escalated to a
// panic, or "" if it never has.
func (vm *VM) PanicMessage() string { return vm.vmPanicMessage }

// PanicTrace returns the stack trace captured from the coroutine whose
// panic escalated to the VM, most recent frame first, or nil if the VM
// never panicked (spec.md §7 Diagnostics).
func (vm *VM) PanicTrace() []StackFrame { return vm.vmPanicTrace }

// PanicError returns the RuntimeError built from the escalating panic's
// message and captured stack trace, or nil if the VM never panicked.
func (vm *VM) PanicError() *RuntimeError { return vm.vmPanicError }

// Rounds returns the number of completed Process() calls, used by tests
// asserting the "process() rounds ≥ 3" channel rendezvous property
// (spec.md §8 scenario 6).
func (vm *VM) Rounds() int { return vm.rounds }

// Process drives one scheduling round (spec.md §4.4/§5): swap the
// mailbox, promote the spawn queue into the ready list in insertion
// order, then step every ready coroutine once up to its next suspension
// point. Coroutines marked for removal during the round are swept at
// the end, preserving the ready list's iteration order for everyone
// else mid-round.
func (vm *VM) Process() error {
	vm.mail.swap()

	vm.ready = append(vm.ready, vm.spawnQueue...)
	vm.spawnQueue = vm.spawnQueue[:0]

	for _, co := range vm.ready {
		if co.pendingRemoval {
			continue
		}
		if err := vm.runCoroutine(co); err != nil {
			return errors.Wrap(err, "coroutine step")
		}
	}

	vm.sweep()
	vm.rounds++
	vm.Log.Debug().Int("round", vm.rounds).Int("ready", len(vm.ready)).Msg("round complete")
	return nil
}

// sweep removes every coroutine marked for removal this round, per the
// "mark-for-removal sweep" scheduling design (spec.md §9).
func (vm *VM) sweep() {
	live := vm.ready[:0]
	for _, co := range vm.ready {
		if !co.pendingRemoval {
			live = append(live, co)
		}
	}
	vm.ready = live
}

// killAll marks every live coroutine except the given one killed and
// clears the spawn queue (spec.md §4.4 "kill_all", §4.5 item 4 root-frame
// panic escalation).
func (vm *VM) killAll(except *Coroutine) {
	for _, co := range vm.ready {
		if co == except {
			continue
		}
		co.IsKilled = true
	}
	vm.spawnQueue = vm.spawnQueue[:0]
	vm.Log.Debug().Int("ready", len(vm.ready)).Msg("killed all coroutines")
}
