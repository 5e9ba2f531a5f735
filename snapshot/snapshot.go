// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package snapshot implements the wire format (module map's "Ambient:
// snapshot I/O"): a parsed bytecode.Bytecode tree serialized header,
// literal pool, then opcode stream, the way spec.md section 6 describes
// it. A static snapshot additionally pre-resolves every literal into
// self-contained bytes rather than a live heap.Index, making the
// encoded form position-independent; Load refuses to run one unless the
// caller passes allowStatic, mirroring the reference's ALLOW_STATIC
// build flag gate.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

// Magic identifies a snapshot stream, spec.md section 6's {magic: "JRRY"}.
var Magic = [4]byte{'J', 'R', 'R', 'Y'}

// FormatVersion is bumped whenever the encoding below changes shape.
// Load rejects any other version outright rather than guessing at
// forward/backward compatibility.
const FormatVersion uint16 = 1

// Flags carries per-snapshot boolean metadata, written into the header.
type Flags uint16

const (
	// FlagStatic marks a snapshot whose literals are fully self-contained
	// and position-independent - spec.md section 6's "static snapshot".
	// Load requires allowStatic=true to produce a runnable Bytecode from
	// one of these.
	FlagStatic Flags = 1 << iota
	FlagHasLineInfo
)

// Has reports whether bit is set.
func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// BuildID identifies the running engine build. It is generated once per
// process rather than pinned to a version string, so that a snapshot
// written by one engine build can only be loaded by that same build -
// spec.md's domain-stack note that google/uuid stamps snapshots so a
// mismatched snapshot/engine-version pair "fails fast at load instead of
// silently misinterpreting bytes." An embedder linking a fixed engine
// build across process restarts that wants snapshots to survive a
// restart should persist and reuse a BuildID of its own choosing instead
// of relying on this default.
var BuildID = uuid.New()

// Header is the fixed-size preamble spec.md section 6 describes, plus
// the BuildID check this engine adds on top of it.
type Header struct {
	Version      uint16
	Flags        Flags
	BuildID      uuid.UUID
	LiteralCount uint32
}

// ErrBuildIDMismatch is returned by Load when the snapshot was written
// by a different engine build than the one attempting to load it.
var ErrBuildIDMismatch = fmt.Errorf("snapshot: build id does not match this engine build")

// ErrStaticNotAllowed is returned by Load when a FlagStatic snapshot is
// loaded without allowStatic.
var ErrStaticNotAllowed = fmt.Errorf("snapshot: static snapshot requires allowStatic")

// Save encodes bc (and, recursively, every nested function template it
// holds) to w. arena resolves the heap references bc's literal pool
// holds (interned strings) to their raw bytes.
func Save(w io.Writer, arena *heap.Arena, bc *bytecode.Bytecode, flags Flags) error {
	var buf bytes.Buffer
	if err := writeBytecode(&buf, arena, bc); err != nil {
		return err
	}

	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	hdr := Header{Version: FormatVersion, Flags: flags, BuildID: BuildID, LiteralCount: uint32(len(bc.Literals))}
	if err := writeHeader(w, hdr); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Load decodes a snapshot written by Save, re-interning any literal
// strings through interner and boxing any non-small numeric literals on
// arena. allowStatic must be true to load a FlagStatic snapshot.
func Load(r io.Reader, arena *heap.Arena, interner *strtab.InternSet, allowStatic bool) (*bytecode.Bytecode, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("snapshot: reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("snapshot: bad magic %q, expected %q", magic, Magic)
	}
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported format version %d, engine is %d", hdr.Version, FormatVersion)
	}
	if hdr.BuildID != BuildID {
		return nil, ErrBuildIDMismatch
	}
	if hdr.Flags.Has(FlagStatic) && !allowStatic {
		return nil, ErrStaticNotAllowed
	}
	return readBytecode(r, arena, interner)
}

func writeHeader(w io.Writer, h Header) error {
	if err := binary.Write(w, binary.LittleEndian, h.Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.Flags); err != nil {
		return err
	}
	idBytes, err := h.BuildID.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.LiteralCount)
}

func readHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Flags); err != nil {
		return h, err
	}
	var idBytes [16]byte
	if _, err := io.ReadFull(r, idBytes[:]); err != nil {
		return h, err
	}
	if err := h.BuildID.UnmarshalBinary(idBytes[:]); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.LiteralCount); err != nil {
		return h, err
	}
	return h, nil
}

// literal tags distinguish the handful of value.Value shapes the literal
// pool actually holds (the parser only ever emits small integers, simple
// immediates, and interned strings into Literals - see parser/expr.go's
// internLiteral/Literal call sites).
const (
	litSmallInt byte = iota
	litImmediate
	litString
)

func writeBytecode(w io.Writer, arena *heap.Arena, bc *bytecode.Bytecode) error {
	if !bc.Header.SourceUserValue.IsUndefined() {
		return fmt.Errorf("snapshot: cannot serialize a bytecode with an embedder SourceUserValue attached")
	}

	if err := binary.Write(w, binary.LittleEndian, bc.Header.ArgCount); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, bc.Header.RegisterCount); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, bc.Header.StackLimit); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, bc.Header.Flags); err != nil {
		return err
	}
	if err := writeString(w, bc.Header.SourceName); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.Literals))); err != nil {
		return err
	}
	for _, lit := range bc.Literals {
		if err := writeLiteral(w, arena, lit); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.Numbers))); err != nil {
		return err
	}
	for _, n := range bc.Numbers {
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.Functions))); err != nil {
		return err
	}
	for _, fn := range bc.Functions {
		var sub bytes.Buffer
		if err := writeBytecode(&sub, arena, fn); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(sub.Len())); err != nil {
			return err
		}
		if _, err := w.Write(sub.Bytes()); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.Code))); err != nil {
		return err
	}
	if _, err := w.Write(bc.Code); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.Handlers))); err != nil {
		return err
	}
	for _, h := range bc.Handlers {
		for _, n := range []int{h.TryStart, h.TryEnd, h.CatchIP, h.FinallyIP} {
			if err := binary.Write(w, binary.LittleEndian, int32(n)); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(bc.LineInfo))); err != nil {
		return err
	}
	for _, le := range bc.LineInfo {
		if err := binary.Write(w, binary.LittleEndian, int32(le.CodeOffset)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(le.Line)); err != nil {
			return err
		}
	}

	if err := writeU16Slice(w, bc.HoistedVars); err != nil {
		return err
	}
	return writeU16Slice(w, bc.ParamNames)
}

func readBytecode(r io.Reader, arena *heap.Arena, interner *strtab.InternSet) (*bytecode.Bytecode, error) {
	bc := &bytecode.Bytecode{}

	if err := binary.Read(r, binary.LittleEndian, &bc.Header.ArgCount); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &bc.Header.RegisterCount); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &bc.Header.StackLimit); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &bc.Header.Flags); err != nil {
		return nil, err
	}
	sourceName, err := readString(r)
	if err != nil {
		return nil, err
	}
	bc.Header.SourceName = sourceName
	bc.Header.SourceUserValue = value.Undefined

	var litCount uint32
	if err := binary.Read(r, binary.LittleEndian, &litCount); err != nil {
		return nil, err
	}
	bc.Literals = make([]value.Value, litCount)
	for i := range bc.Literals {
		v, err := readLiteral(r, arena, interner)
		if err != nil {
			return nil, err
		}
		bc.Literals[i] = v
	}

	var numCount uint32
	if err := binary.Read(r, binary.LittleEndian, &numCount); err != nil {
		return nil, err
	}
	bc.Numbers = make([]float64, numCount)
	for i := range bc.Numbers {
		if err := binary.Read(r, binary.LittleEndian, &bc.Numbers[i]); err != nil {
			return nil, err
		}
	}

	var fnCount uint32
	if err := binary.Read(r, binary.LittleEndian, &fnCount); err != nil {
		return nil, err
	}
	bc.Functions = make([]*bytecode.Bytecode, fnCount)
	for i := range bc.Functions {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		sub := io.LimitReader(r, int64(size))
		fn, err := readBytecode(sub, arena, interner)
		if err != nil {
			return nil, err
		}
		bc.Functions[i] = fn
	}

	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	bc.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, bc.Code); err != nil {
		return nil, err
	}

	var handlerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &handlerCount); err != nil {
		return nil, err
	}
	bc.Handlers = make([]bytecode.Handler, handlerCount)
	for i := range bc.Handlers {
		ints := make([]int32, 4)
		for j := range ints {
			if err := binary.Read(r, binary.LittleEndian, &ints[j]); err != nil {
				return nil, err
			}
		}
		bc.Handlers[i] = bytecode.Handler{
			TryStart: int(ints[0]), TryEnd: int(ints[1]), CatchIP: int(ints[2]), FinallyIP: int(ints[3]),
		}
	}

	var lineCount uint32
	if err := binary.Read(r, binary.LittleEndian, &lineCount); err != nil {
		return nil, err
	}
	bc.LineInfo = make([]bytecode.LineEntry, lineCount)
	for i := range bc.LineInfo {
		var offset, line int32
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		bc.LineInfo[i] = bytecode.LineEntry{CodeOffset: int(offset), Line: int(line)}
	}

	bc.HoistedVars, err = readU16Slice(r)
	if err != nil {
		return nil, err
	}
	bc.ParamNames, err = readU16Slice(r)
	if err != nil {
		return nil, err
	}

	return bc, nil
}

func writeLiteral(w io.Writer, arena *heap.Arena, v value.Value) error {
	switch {
	case v.IsSmallInt():
		if _, err := w.Write([]byte{litSmallInt}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.AsSmallInt())
	case v.IsImmediate():
		if _, err := w.Write([]byte{litImmediate}); err != nil {
			return err
		}
		_, err := w.Write([]byte{byte(v.AsImmediate())})
		return err
	case v.IsHeapRef():
		cell, ok := arena.TryGet(v.AsHeapRef())
		if !ok {
			return fmt.Errorf("snapshot: literal heap reference is not live")
		}
		hs, ok := cell.(*strtab.HeapString)
		if !ok {
			return fmt.Errorf("snapshot: literal pool entry of kind %v is not serializable", cell.Kind())
		}
		if _, err := w.Write([]byte{litString}); err != nil {
			return err
		}
		return writeBytes(w, hs.Bytes())
	default:
		return fmt.Errorf("snapshot: literal has no recognized encoding")
	}
}

func readLiteral(r io.Reader, arena *heap.Arena, interner *strtab.InternSet) (value.Value, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return value.Undefined, err
	}
	switch tagByte[0] {
	case litSmallInt:
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Undefined, err
		}
		v, ok := value.SmallInt(n)
		if !ok {
			return value.Undefined, fmt.Errorf("snapshot: small-int literal %d out of range", n)
		}
		return v, nil
	case litImmediate:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Undefined, err
		}
		return immediateFromOrdinal(value.Immediate(b[0]))
	case litString:
		raw, err := readBytes(r)
		if err != nil {
			return value.Undefined, err
		}
		idx, err := interner.Intern(raw)
		if err != nil {
			return value.Undefined, err
		}
		return value.HeapRef(idx), nil
	default:
		return value.Undefined, fmt.Errorf("snapshot: unknown literal tag %d", tagByte[0])
	}
}

// immediateFromOrdinal maps a serialized Immediate ordinal back to its
// canonical singleton Value. value.Value does not expose a generic
// "construct from ordinal" constructor since script code never needs
// one; a snapshot's literal pool is the one place that does.
func immediateFromOrdinal(imm value.Immediate) (value.Value, error) {
	switch imm {
	case value.ImmUndefined:
		return value.Undefined, nil
	case value.ImmNull:
		return value.Null, nil
	case value.ImmFalse:
		return value.False, nil
	case value.ImmTrue:
		return value.True, nil
	case value.ImmEmpty:
		return value.Empty, nil
	case value.ImmNotFound:
		return value.NotFound, nil
	default:
		return value.Undefined, fmt.Errorf("snapshot: unknown immediate ordinal %d", imm)
	}
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeU16Slice(w io.Writer, s []uint16) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readU16Slice(r io.Reader) ([]uint16, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	s := make([]uint16, n)
	for i := range s {
		if err := binary.Read(r, binary.LittleEndian, &s[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}
