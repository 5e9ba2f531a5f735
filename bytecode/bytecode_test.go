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
	"testing"

	"github.com/kraklabs/jjs/value"
	"github.com/stretchr/testify/require"
)

func TestBuilder_LiteralDeduplicates(t *testing.T) {
	b := NewBuilder()
	v, _ := value.SmallInt(7)
	i1 := b.Literal(v)
	i2 := b.Literal(v)
	require.Equal(t, i1, i2)

	other, _ := value.SmallInt(8)
	i3 := b.Literal(other)
	require.NotEqual(t, i1, i3)
}

func TestBuilder_ForwardJumpPatch(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpPushTrue, 1)
	patch := b.Jump(OpJumpIfFalse)
	b.Emit(OpPushSmallInt, 1) // consequent
	require.NoError(t, b.PatchJump(patch))
	b.Emit(OpReturn, 0)

	bc := b.Finish(0, 0, 0, "test.js", false)
	require.NotEmpty(t, bc.Code)
	// patched offset should point just past itself to the PatchJump call site
	offset := int(int16(bc.Code[patch]) | int16(bc.Code[patch+1])<<8)
	target := patch + 2 + offset
	require.Equal(t, patch+2+1, target) // one OpPushSmallInt opcode byte (3 bytes total but target is pre-operand)
}

func TestBuilder_BackwardJumpPatch(t *testing.T) {
	b := NewBuilder()
	loopHead := b.Offset()
	b.Emit(OpPushFalse, 1)
	patch := b.Jump(OpJumpIfTrue)
	require.NoError(t, b.PatchJumpTo(patch, loopHead))

	bc := b.Finish(0, 0, 0, "loop.js", false)
	offset := int(int16(bc.Code[patch]) | int16(bc.Code[patch+1])<<8)
	target := patch + 2 + offset
	require.Equal(t, loopHead, target)
}

func TestBuilder_TryHandlerRange(t *testing.T) {
	b := NewBuilder()
	hIdx := b.EnterTry()
	b.Emit(OpPushUndefined, 1)
	catchIP := b.Offset()
	b.Emit(OpPop, -1)
	b.LeaveTry(hIdx, catchIP, NoIP)
	b.Emit(OpReturn, 0)

	bc := b.Finish(0, 0, 0, "try.js", false)
	require.Len(t, bc.Handlers, 1)

	h, ok := bc.HandlerFor(0)
	require.True(t, ok)
	require.Equal(t, catchIP, h.CatchIP)

	_, ok = bc.HandlerFor(catchIP + 1)
	require.False(t, ok, "offsets after the try range are unprotected")
}

func TestBytecode_LineForOffset(t *testing.T) {
	b := NewBuilder()
	b.MarkLine(1)
	b.Emit(OpPushUndefined, 1)
	b.MarkLine(2)
	b.Emit(OpReturn, 0)
	bc := b.Finish(0, 0, 0, "lines.js", true)

	require.True(t, bc.Header.Flags.Has(FlagHasLineInfo))
	require.Equal(t, 1, bc.LineForOffset(0))
	require.Equal(t, 2, bc.LineForOffset(1))
}

func TestBuilder_StackLimitTracksPeak(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpPushUndefined, 1)
	b.Emit(OpPushUndefined, 1)
	b.Emit(OpAdd, -1)
	bc := b.Finish(0, 0, 0, "stack.js", false)
	require.Equal(t, uint16(2), bc.Header.StackLimit)
}
