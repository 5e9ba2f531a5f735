// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/kraklabs/jjs/value"
)

// Builder accumulates a single bytecode object's opcode stream and
// literal pool as the parser walks source text, emitting bytecode
// directly during parse with no intermediate AST (spec.md section 4.5,
// "no AST materialization"). Forward branches are patched once their
// target offset is known via Label/PatchJump.
type Builder struct {
	code       []byte
	literals   []value.Value
	litIndex   map[value.Value]int
	numbers    []float64
	numIndex   map[float64]int
	functions  []*Bytecode
	handlers   []Handler
	lines      []LineEntry
	maxStack   int
	curStack   int
	hoisted    []uint16
	hoistSeen  map[uint16]bool
	params     []uint16
}

// Param records the literal pool index naming the next positional
// parameter, in declaration order, so the VM can bind argument values to
// names at call time without re-deriving them from the opcode stream.
func (b *Builder) Param(lit uint16) {
	b.params = append(b.params, lit)
}

// HoistVar records a literal-pool index naming a `var`-declared binding
// that must exist (as undefined) in the environment record before the
// bytecode's first instruction runs, since a `var` declaration with no
// initializer emits no OpInitBinding of its own (spec.md section 4.5's
// scope-analysis pass already tracks the name; this surfaces it to the
// VM instead of requiring the VM to re-derive it from the opcode stream).
func (b *Builder) HoistVar(lit uint16) {
	if b.hoistSeen == nil {
		b.hoistSeen = make(map[uint16]bool)
	}
	if b.hoistSeen[lit] {
		return
	}
	b.hoistSeen[lit] = true
	b.hoisted = append(b.hoisted, lit)
}

func NewBuilder() *Builder {
	return &Builder{litIndex: make(map[value.Value]int), numIndex: make(map[float64]int)}
}

// NumberLiteral interns a raw double into the bytecode's number pool,
// separate from Literals because a non-small-integer number has no
// compressed-pointer form until it is boxed into a target heap.Arena at
// run time; the parser itself never touches an Arena.
func (b *Builder) NumberLiteral(f float64) uint16 {
	if idx, ok := b.numIndex[f]; ok {
		return uint16(idx)
	}
	idx := len(b.numbers)
	b.numbers = append(b.numbers, f)
	b.numIndex[f] = idx
	return uint16(idx)
}

// Literal interns v into the pool, returning its index, and reuses an
// existing slot when the same immediate or heap-ref value was already
// emitted (keeping pools compact, per spec.md section 4.5's emphasis on
// a compact literal pool referenced by small indices).
func (b *Builder) Literal(v value.Value) uint16 {
	if idx, ok := b.litIndex[v]; ok {
		return uint16(idx)
	}
	idx := len(b.literals)
	b.literals = append(b.literals, v)
	b.litIndex[v] = idx
	return uint16(idx)
}

func (b *Builder) trackStack(delta int) {
	b.curStack += delta
	if b.curStack > b.maxStack {
		b.maxStack = b.curStack
	}
}

// Offset returns the current write position, usable as a jump target.
func (b *Builder) Offset() int { return len(b.code) }

func (b *Builder) emitByte(v byte)         { b.code = append(b.code, v) }
func (b *Builder) emitU16(v uint16)        { b.code = binary.LittleEndian.AppendUint16(b.code, v) }
func (b *Builder) emitI16(v int16)         { b.emitU16(uint16(v)) }

// Emit appends op with no operand and the given net stack-depth effect.
func (b *Builder) Emit(op Op, stackDelta int) {
	b.emitByte(byte(op))
	b.trackStack(stackDelta)
}

func (b *Builder) EmitLiteral(op Op, lit uint16, stackDelta int) {
	b.emitByte(byte(op))
	b.emitU16(lit)
	b.trackStack(stackDelta)
}

func (b *Builder) EmitU8(op Op, operand uint8, stackDelta int) {
	b.emitByte(byte(op))
	b.emitByte(operand)
	b.trackStack(stackDelta)
}

// FunctionLiteral registers a nested function template, returning its
// index into the bytecode's Functions pool.
func (b *Builder) FunctionLiteral(fn *Bytecode) uint16 {
	idx := len(b.functions)
	b.functions = append(b.functions, fn)
	return uint16(idx)
}

func (b *Builder) EmitExt(ext ExtOp, lit uint16, stackDelta int) {
	b.emitByte(byte(OpExt))
	b.emitByte(byte(ext))
	b.emitU16(lit)
	b.trackStack(stackDelta)
}

// Jump marks op(jump-kind) is recorded in the `code` at a placeholder
// i16 offset and returns the offset of that placeholder so the caller
// can patch it once the target is known (PatchJump), implementing the
// "patch-backs for forward branches" the parser relies on.
func (b *Builder) Jump(op Op) int {
	b.emitByte(byte(op))
	placeholder := len(b.code)
	b.emitI16(0)
	if op != OpJump {
		b.trackStack(-1) // conditional jumps consume the tested value
	}
	return placeholder
}

// PatchJump rewrites the placeholder at patchAt (returned by Jump) to
// branch to the current offset.
func (b *Builder) PatchJump(patchAt int) error {
	return b.PatchJumpTo(patchAt, b.Offset())
}

// PatchJumpTo rewrites the placeholder at patchAt to branch to target,
// for backward branches (loop heads) whose target is already known.
func (b *Builder) PatchJumpTo(patchAt, target int) error {
	offset := target - (patchAt + 2)
	if offset < -(1<<15) || offset > (1<<15)-1 {
		return fmt.Errorf("bytecode: branch offset %d out of i16 range", offset)
	}
	binary.LittleEndian.PutUint16(b.code[patchAt:], uint16(int16(offset)))
	return nil
}

// EnterTry registers a new try-range starting at the current offset and
// returns its handler index so LeaveTry can fill in the range end and
// catch/finally targets.
func (b *Builder) EnterTry() int {
	b.handlers = append(b.handlers, Handler{TryStart: b.Offset(), CatchIP: NoIP, FinallyIP: NoIP})
	return len(b.handlers) - 1
}

// LeaveTry finalizes the handler at index hIdx.
func (b *Builder) LeaveTry(hIdx int, catchIP, finallyIP int) {
	b.handlers[hIdx].TryEnd = b.Offset()
	b.handlers[hIdx].CatchIP = catchIP
	b.handlers[hIdx].FinallyIP = finallyIP
}

// MarkLine records a source line boundary at the current offset.
func (b *Builder) MarkLine(line int) {
	b.lines = append(b.lines, LineEntry{CodeOffset: b.Offset(), Line: line})
}

// Finish produces the immutable Bytecode object. argCount/registerCount
// come from the parser's scope analysis pass; withLineInfo controls
// whether the recorded line table is retained (spec.md section 4.5:
// "optional line-info").
func (b *Builder) Finish(argCount, registerCount uint16, flags Flags, sourceName string, withLineInfo bool) *Bytecode {
	h := Header{
		ArgCount:        argCount,
		RegisterCount:   registerCount,
		StackLimit:      uint16(b.maxStack),
		Flags:           flags,
		SourceName:      sourceName,
		SourceUserValue: value.Undefined,
	}
	if withLineInfo {
		h.Flags |= FlagHasLineInfo
	}
	bc := &Bytecode{
		Header:      h,
		Literals:    b.literals,
		Numbers:     b.numbers,
		Functions:   b.functions,
		Code:        b.code,
		Handlers:    b.handlers,
		HoistedVars: b.hoisted,
		ParamNames:  b.params,
	}
	if withLineInfo {
		bc.LineInfo = b.lines
	}
	return bc
}
