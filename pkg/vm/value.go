package vm

import "github.com/Zenohate/grimoire/pkg/bytecode"

// IntArray, FloatArray, StringArray and ObjectArray are the four mutable
// typed sequences spec.md §3 names as value containers. They live on the
// object stack/locals/globals/fields like any other object-partition
// value and are shared by reference, matching the teacher's own
// reference-typed Array.
type IntArray struct{ Values []int64 }
type FloatArray struct{ Values []float64 }
type StringArray struct{ Values []string }
type ObjectArray struct{ Values []any }

func (a *IntArray) Len() int    { return len(a.Values) }
func (a *FloatArray) Len() int  { return len(a.Values) }
func (a *StringArray) Len() int { return len(a.Values) }
func (a *ObjectArray) Len() int { return len(a.Values) }

// resolveIndex applies the negative-wrap-once rule of spec.md §4.2/§4.6
// ("idx < 0 ⇒ idx + len") and bounds-checks the result against [0, len).
func resolveIndex(idx int64, length int) (int, bool) {
	i := idx
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}

// IntRef, FloatRef, StringRef and ObjectRef are the settable slot
// references index_<kind> pushes onto the object stack for a later
// refStore_<kind> to write through (spec.md §4.6). Each closes over the
// exact backing array and slot rather than re-resolving the index, so a
// reference stays valid even if the stack above it is rearranged before
// the store happens.
type IntRef struct {
	Arr *IntArray
	Idx int
}

func (r IntRef) Get() int64    { return r.Arr.Values[r.Idx] }
func (r IntRef) Set(v int64)   { r.Arr.Values[r.Idx] = v }

type FloatRef struct {
	Arr *FloatArray
	Idx int
}

func (r FloatRef) Get() float64  { return r.Arr.Values[r.Idx] }
func (r FloatRef) Set(v float64) { r.Arr.Values[r.Idx] = v }

type StringRef struct {
	Arr *StringArray
	Idx int
}

func (r StringRef) Get() string  { return r.Arr.Values[r.Idx] }
func (r StringRef) Set(v string) { r.Arr.Values[r.Idx] = v }

type ObjectRef struct {
	Arr *ObjectArray
	Idx int
}

func (r ObjectRef) Get() any  { return r.Arr.Values[r.Idx] }
func (r ObjectRef) Set(v any) { r.Arr.Values[r.Idx] = v }

// Object is an instance of a class descriptor: a fixed set of typed
// fields, partitioned the same way the VM's stacks are (spec.md §3
// "Object has a fixed set of typed fields named by its class
// descriptor"). Field storage is split per kind and addressed by the
// field's rank among fields of its own kind, which fieldKindIndex
// computes on every field access.
type Object struct {
	Class   *bytecode.ClassDescriptor
	IFields []int64
	FFields []float64
	SFields []string
	OFields []any
}

// fieldKindIndex returns the index of class.Fields[fieldIdx] within its
// own kind's field slice.
func fieldKindIndex(class *bytecode.ClassDescriptor, fieldIdx int) int {
	target := class.Fields[fieldIdx]
	n := 0
	for i := 0; i < fieldIdx; i++ {
		if class.Fields[i].Kind == target.Kind {
			n++
		}
	}
	return n
}

// NewObject allocates an Object from a class descriptor with every
// field default-initialized per its declared kind (spec.md §4.6).
func NewObject(class *bytecode.ClassDescriptor) *Object {
	obj := &Object{Class: class}
	for _, f := range class.Fields {
		switch f.Kind {
		case bytecode.KindInt:
			obj.IFields = append(obj.IFields, 0)
		case bytecode.KindFloat:
			obj.FFields = append(obj.FFields, 0)
		case bytecode.KindString:
			obj.SFields = append(obj.SFields, "")
		case bytecode.KindObject:
			obj.OFields = append(obj.OFields, nil)
		}
	}
	return obj
}

// Channel is a bounded rendezvous channel of one type partition (spec.md
// §3/§4.4). Values in Buf are always boxed as `any` regardless of Kind so
// the same struct serves all four partitions; send_<kind>/receive_<kind>
// in the dispatcher are responsible for boxing/unboxing the right type.
type Channel struct {
	Kind          bytecode.Kind
	Capacity      int
	Buf           []any
	ReceiverReady bool
	Owned         bool
}

func NewChannel(kind bytecode.Kind, capacity int) *Channel {
	return &Channel{Kind: kind, Capacity: capacity, Owned: true}
}

func (c *Channel) CanSend() bool    { return c.Owned && len(c.Buf) < c.Capacity }
func (c *Channel) CanReceive() bool { return len(c.Buf) > 0 }

func (c *Channel) Send(v any) {
	c.Buf = append(c.Buf, v)
	c.ReceiverReady = false
}

func (c *Channel) Receive() any {
	v := c.Buf[0]
	c.Buf = c.Buf[1:]
	return v
}
