// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// StackFrame is a single resolved frame in a stack trace: either a named
// function range from debug_info, or the "Unknown Function" fallback
// spec.md §7 requires for unresolvable frames.
type StackFrame struct {
	Name string // resolved function name, or "Unknown Function"
	PC   int    // instruction pointer at the time of the trace
}

// RuntimeError is a script-level exception (spec.md §7): a message plus
// the stack trace captured by resolving the coroutine's call stack
// against debug_info when the panic escalates past its root frame
// (pkg/vm/unwind.go). Frames the unwinding sequence already tore down
// are not part of that trace.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

// Error formats the message with a stack trace, most recent frame first.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for _, frame := range e.StackTrace {
			b.WriteString(fmt.Sprintf("\n  at %s [instr %d]", frame.Name, frame.PC))
		}
	}

	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{
		Message:    message,
		StackTrace: stack,
	}
}

// Script-level exception messages spec.md §4.2/§4.6/§4.4 mandate for
// specific failure conditions; raise() uses these verbatim as the
// message, indistinguishable to script code from a user raise("msg").
const (
	MsgZeroDivisionError = "ZeroDivisionError"
	MsgIndexError        = "IndexError"
	MsgNullError         = "NullError"
	MsgChannelError      = "ChannelError"
	MsgSelectError       = "SelectError"
)

// HostError is a host-level error (spec.md §7): VM misuse — unknown
// global, bad type mask, out-of-range primitive index, malformed
// bytecode — rather than a recoverable script exception. HostErrors
// never enter the unwinding sequence; they return directly to the host
// caller with a github.com/pkg/errors cause chain attached.
type HostError struct {
	cause error
}

func (e *HostError) Error() string { return e.cause.Error() }
func (e *HostError) Unwrap() error { return e.cause }

func newHostError(format string, args ...any) error {
	return &HostError{cause: errors.Errorf(format, args...)}
}

func wrapHostError(err error, context string) error {
	if err == nil {
		return nil
	}
	return &HostError{cause: errors.Wrap(err, context)}
}
