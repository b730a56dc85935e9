// Package bytecode — binary serialization for .gvc bytecode files.
//
// File Format Specification (little-endian throughout, spec.md §6):
//
//	[Header]
//	  Magic (4 bytes): "GRIM"
//	  Version (4 bytes)
//	  n_iconst, n_fconst, n_sconst, n_opcodes (4 bytes each)
//
//	[Constant pools]
//	  iconsts: i64 × n_iconst
//	  fconsts: f64 × n_fconst
//	  sconsts: (u32 length + UTF-8 bytes) × n_sconst
//
//	[Opcodes]
//	  opcodes: u32 × n_opcodes
//
//	[Globals]
//	  GlobalsCount per kind (u32 × NumKinds)
//
//	[Primitives]
//	  count (u32), then (libraryIndex u32, signature string) × count
//
//	[Globals]
//	  count (u32), then (name string, kind byte, index u32, typeMask byte) × count
//
//	[Events]
//	  count (u32), then (name string, pc u32) × count
//
//	[Classes]
//	  count (u32), then per class: name string, field count (u32), then
//	  (name string, kind byte) × field count
//
//	[Debug info] (optional section, always present but may be empty)
//	  count (u32), then (name string, bytecodePos u32, length u32) × count
//
// All counts precede their payloads, matching spec.md §6's only hard
// requirement; the concrete section order and string encoding are this
// implementation's choice, made the way the teacher's own .sg format
// makes it (magic number, versioned header, length-prefixed strings,
// count-then-payload slices — see pkg/bytecode/format.go in the example
// pack this was adapted from).
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MagicNumber identifies a .gvc file: "GRIM".
const MagicNumber uint32 = 0x4752494D

// FormatVersion is the current on-disk format version.
const FormatVersion uint32 = 1

// Encode serializes bc to w in the .gvc binary format.
func Encode(bc *Bytecode, w io.Writer) error {
	if err := writeU32(w, MagicNumber); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := writeU32(w, FormatVersion); err != nil {
		return errors.Wrap(err, "write version")
	}
	if err := writeU32(w, uint32(len(bc.IConsts))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(bc.FConsts))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(bc.SConsts))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(bc.Opcodes))); err != nil {
		return err
	}

	for _, v := range bc.IConsts {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Wrap(err, "write iconst")
		}
	}
	for _, v := range bc.FConsts {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Wrap(err, "write fconst")
		}
	}
	for _, v := range bc.SConsts {
		if err := writeString(w, v); err != nil {
			return errors.Wrap(err, "write sconst")
		}
	}
	for _, v := range bc.Opcodes {
		if err := writeU32(w, v); err != nil {
			return errors.Wrap(err, "write opcode")
		}
	}

	for _, n := range bc.GlobalsCount {
		if err := writeU32(w, uint32(n)); err != nil {
			return errors.Wrap(err, "write globals count")
		}
	}

	if err := writeU32(w, uint32(len(bc.Primitives))); err != nil {
		return err
	}
	for _, p := range bc.Primitives {
		if err := writeU32(w, uint32(p.LibraryIndex)); err != nil {
			return errors.Wrap(err, "write primitive library index")
		}
		if err := writeString(w, p.Signature); err != nil {
			return errors.Wrap(err, "write primitive signature")
		}
	}

	if err := writeU32(w, uint32(len(bc.Globals))); err != nil {
		return err
	}
	for _, g := range bc.Globals {
		if err := writeString(w, g.Name); err != nil {
			return errors.Wrap(err, "write global name")
		}
		if _, err := w.Write([]byte{byte(g.Kind)}); err != nil {
			return errors.Wrap(err, "write global kind")
		}
		if err := writeU32(w, uint32(g.Index)); err != nil {
			return err
		}
		if _, err := w.Write([]byte{g.TypeMask}); err != nil {
			return errors.Wrap(err, "write global type mask")
		}
	}

	if err := writeU32(w, uint32(len(bc.Events))); err != nil {
		return err
	}
	for name, pc := range bc.Events {
		if err := writeString(w, name); err != nil {
			return errors.Wrap(err, "write event name")
		}
		if err := writeU32(w, uint32(pc)); err != nil {
			return errors.Wrap(err, "write event pc")
		}
	}

	if err := writeU32(w, uint32(len(bc.Classes))); err != nil {
		return err
	}
	for _, c := range bc.Classes {
		if err := writeString(w, c.Name); err != nil {
			return errors.Wrap(err, "write class name")
		}
		if err := writeU32(w, uint32(len(c.Fields))); err != nil {
			return err
		}
		for _, f := range c.Fields {
			if err := writeString(w, f.Name); err != nil {
				return errors.Wrap(err, "write field name")
			}
			if _, err := w.Write([]byte{byte(f.Kind)}); err != nil {
				return errors.Wrap(err, "write field kind")
			}
		}
	}

	if err := writeU32(w, uint32(len(bc.DebugInfo))); err != nil {
		return err
	}
	for _, d := range bc.DebugInfo {
		if err := writeString(w, d.Name); err != nil {
			return errors.Wrap(err, "write debug func name")
		}
		if err := writeU32(w, uint32(d.BytecodePos)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(d.Length)); err != nil {
			return err
		}
	}

	return nil
}

// Decode reads a .gvc file from r and reconstructs the Bytecode artifact.
func Decode(r io.Reader) (*Bytecode, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("bytecode: invalid magic number 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "read version")
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d (expected %d)", version, FormatVersion)
	}

	nIConst, err := readU32(r)
	if err != nil {
		return nil, err
	}
	nFConst, err := readU32(r)
	if err != nil {
		return nil, err
	}
	nSConst, err := readU32(r)
	if err != nil {
		return nil, err
	}
	nOpcodes, err := readU32(r)
	if err != nil {
		return nil, err
	}

	bc := &Bytecode{
		IConsts: make([]int64, nIConst),
		FConsts: make([]float64, nFConst),
		SConsts: make([]string, nSConst),
		Opcodes: make([]uint32, nOpcodes),
	}

	for i := range bc.IConsts {
		if err := binary.Read(r, binary.LittleEndian, &bc.IConsts[i]); err != nil {
			return nil, errors.Wrap(err, "read iconst")
		}
	}
	for i := range bc.FConsts {
		if err := binary.Read(r, binary.LittleEndian, &bc.FConsts[i]); err != nil {
			return nil, errors.Wrap(err, "read fconst")
		}
	}
	for i := range bc.SConsts {
		s, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read sconst")
		}
		bc.SConsts[i] = s
	}
	for i := range bc.Opcodes {
		w, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read opcode")
		}
		bc.Opcodes[i] = w
	}

	for i := range bc.GlobalsCount {
		n, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read globals count")
		}
		bc.GlobalsCount[i] = int(n)
	}

	nPrim, err := readU32(r)
	if err != nil {
		return nil, err
	}
	bc.Primitives = make([]PrimitiveDescriptor, nPrim)
	for i := range bc.Primitives {
		libIdx, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read primitive library index")
		}
		sig, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read primitive signature")
		}
		bc.Primitives[i] = PrimitiveDescriptor{LibraryIndex: int(libIdx), Signature: sig}
	}

	nGlobals, err := readU32(r)
	if err != nil {
		return nil, err
	}
	bc.Globals = make([]GlobalDescriptor, nGlobals)
	for i := range bc.Globals {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read global name")
		}
		var kindByte [1]byte
		if _, err := io.ReadFull(r, kindByte[:]); err != nil {
			return nil, errors.Wrap(err, "read global kind")
		}
		idx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		var maskByte [1]byte
		if _, err := io.ReadFull(r, maskByte[:]); err != nil {
			return nil, errors.Wrap(err, "read global type mask")
		}
		bc.Globals[i] = GlobalDescriptor{Name: name, Kind: Kind(kindByte[0]), Index: int(idx), TypeMask: maskByte[0]}
	}

	nEvents, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if nEvents > 0 {
		bc.Events = make(map[string]int, nEvents)
	}
	for i := uint32(0); i < nEvents; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read event name")
		}
		pc, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read event pc")
		}
		bc.Events[name] = int(pc)
	}

	nClasses, err := readU32(r)
	if err != nil {
		return nil, err
	}
	bc.Classes = make([]ClassDescriptor, nClasses)
	for i := range bc.Classes {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read class name")
		}
		nFields, err := readU32(r)
		if err != nil {
			return nil, err
		}
		fields := make([]FieldDescriptor, nFields)
		for j := range fields {
			fname, err := readString(r)
			if err != nil {
				return nil, errors.Wrap(err, "read field name")
			}
			var kindByte [1]byte
			if _, err := io.ReadFull(r, kindByte[:]); err != nil {
				return nil, errors.Wrap(err, "read field kind")
			}
			fields[j] = FieldDescriptor{Name: fname, Kind: Kind(kindByte[0])}
		}
		bc.Classes[i] = ClassDescriptor{Name: name, Fields: fields}
	}

	nDebug, err := readU32(r)
	if err != nil {
		return nil, err
	}
	bc.DebugInfo = make([]DebugFunc, nDebug)
	for i := range bc.DebugInfo {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "read debug func name")
		}
		pos, err := readU32(r)
		if err != nil {
			return nil, err
		}
		length, err := readU32(r)
		if err != nil {
			return nil, err
		}
		bc.DebugInfo[i] = DebugFunc{Name: name, BytecodePos: int(pos), Length: int(length)}
	}

	return bc, nil
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
