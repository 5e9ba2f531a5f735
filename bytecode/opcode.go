// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bytecode defines the compact instruction format the parser
// emits and the VM executes: a small-integer opcode space, a literal
// pool of compressed pointers, and 8/16-bit branch offsets (spec.md
// section 4.5, "Bytecode").
package bytecode

// Op is a single bytecode opcode. The primary table fits one byte;
// operations too rare to deserve a primary slot sit behind OpExt in the
// CBC_EXT secondary table (spec.md section 4.5: "a 'CBC_EXT_' secondary
// table for rare opcodes").
type Op byte

const (
	OpNop Op = iota

	// Stack and literal loading.
	OpPushLiteral   // operand: u16 literal pool index
	OpPushSmallInt  // operand: i16 immediate, sign-extended
	OpPushNumber    // operand: u16 index into the bytecode's raw-double pool
	OpPushUndefined
	OpPushNull
	OpPushTrue
	OpPushFalse
	OpPushThis
	OpPushEmptyObject
	OpPushEmptyArray
	OpPop
	OpDup
	OpDup2 // duplicates the top two stack slots, preserving their order

	// Register/variable access. Registers are frame-local slots below
	// the operand stack; spec.md section 4.5 "register-less" refers to
	// there being no general-purpose register allocation in source
	// operands, not the absence of a local-slot file.
	OpGetRegister // operand: u16 register index
	OpSetRegister

	// Environment-record bound identifiers. Operand is a u16 literal
	// pool index naming the binding; the VM resolves it by walking
	// env.Chain from the frame's current environment record.
	OpGetBinding
	OpSetBinding
	OpInitBinding // first assignment to a let/const binding (clears TDZ)

	// Property access.
	OpGetProperty    // stack: obj, key -> value
	OpSetProperty    // stack: obj, key, value -> (value)
	OpGetPropertyLit // operand: u16 literal pool index (name); stack: obj -> value
	OpSetPropertyLit
	OpDeleteProperty    // stack: obj, key -> bool
	OpDeletePropertyLit // operand: u16 literal pool index (name); stack: obj -> bool

	// Arithmetic and comparison. Stack: lhs, rhs -> result.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpNeg
	OpNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr
	OpUShr
	OpEq
	OpStrictEq
	OpNotEq
	OpStrictNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpTypeof
	OpInstanceof
	OpIn

	// Control flow. Jump operands are i16 signed offsets from the byte
	// immediately following the operand (spec.md section 4.5).
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpJumpIfNullish // for `??` short-circuit

	// Calls and construction.
	OpCall    // operand: u8 argument count
	OpNew     // operand: u8 argument count
	OpReturn
	OpThrow

	// Try/catch/finally bookkeeping. The parser emits these as markers
	// consumed by the bytecode-to-handler-table pass (Header.Handlers);
	// they do not themselves affect control flow at decode time.
	OpEnterTry  // operand: u16 index into Header.Handlers
	OpLeaveTry

	// Object/array literal construction.
	OpDefineProperty  // stack: obj, key, value -> obj (non-enumerable off by default flags in operand)
	OpAppendElement   // stack: arr, value -> arr

	// Generators/async.
	OpYield
	OpAwait

	// OpExt escapes into the secondary opcode table; operand: u8
	// secondary opcode from the ExtOp enumeration below.
	OpExt
)

// ExtOp is the secondary ("CBC_EXT_") opcode space for operations rare
// enough that giving them a primary-table slot would waste encoding
// space on the hot path.
type ExtOp byte

const (
	ExtCreateClosure ExtOp = iota // operand: u16 literal pool index of function template
	ExtCreateClass
	ExtSpread
	ExtGetIterator
	ExtIteratorNext
	ExtTaggedTemplate
	ExtCopyDataProperties // object spread
	ExtDebugger
)

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(?)"
}

var opNames = [...]string{
	OpNop: "nop", OpPushLiteral: "push.lit", OpPushSmallInt: "push.i",
	OpPushNumber: "push.num",
	OpPushUndefined: "push.undef", OpPushNull: "push.null", OpPushTrue: "push.true",
	OpPushFalse: "push.false", OpPushThis: "push.this", OpPushEmptyObject: "push.obj",
	OpPushEmptyArray: "push.arr", OpPop: "pop", OpDup: "dup", OpDup2: "dup2",
	OpGetRegister: "reg.get", OpSetRegister: "reg.set",
	OpGetBinding: "bind.get", OpSetBinding: "bind.set", OpInitBinding: "bind.init",
	OpGetProperty: "prop.get", OpSetProperty: "prop.set",
	OpGetPropertyLit: "prop.get.lit", OpSetPropertyLit: "prop.set.lit",
	OpDeleteProperty: "prop.delete", OpDeletePropertyLit: "prop.delete.lit",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpExp: "exp",
	OpNeg: "neg", OpNot: "not", OpBitAnd: "bit.and", OpBitOr: "bit.or", OpBitXor: "bit.xor",
	OpBitNot: "bit.not", OpShl: "shl", OpShr: "shr", OpUShr: "ushr",
	OpEq: "eq", OpStrictEq: "seq", OpNotEq: "ne", OpStrictNotEq: "sne",
	OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte",
	OpTypeof: "typeof", OpInstanceof: "instanceof", OpIn: "in",
	OpJump: "jump", OpJumpIfFalse: "jump.iffalse", OpJumpIfTrue: "jump.iftrue",
	OpJumpIfNullish: "jump.ifnullish",
	OpCall: "call", OpNew: "new", OpReturn: "return", OpThrow: "throw",
	OpEnterTry: "try.enter", OpLeaveTry: "try.leave",
	OpDefineProperty: "prop.define", OpAppendElement: "arr.append",
	OpYield: "yield", OpAwait: "await", OpExt: "ext",
}
