// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/kraklabs/jjs/builtins"
	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/parser"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
	"github.com/stretchr/testify/require"
)

// newEngine builds a complete arena/interner/store/VM quadruple the way
// job/promise_test.go's newJobVM does, so a loaded snapshot can actually
// be run rather than just structurally compared.
func newEngine(t *testing.T) (*heap.Arena, *strtab.InternSet, *vm.VM) {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	store := object.NewStore(a, interner)
	chain := env.NewChain(a)
	v, err := vm.New(a, store, interner, chain, nil)
	require.NoError(t, err)
	require.NoError(t, builtins.Install(v, store, builtins.DefaultConfig()))
	return a, interner, v
}

func compile(t *testing.T, interner *strtab.InternSet, src string) *bytecode.Bytecode {
	t.Helper()
	bc, err := parser.Parse(src, interner, parser.Options{SourceName: "snap.js"})
	require.NoError(t, err)
	return bc
}

func TestSaveLoadRoundTripRunsIdentically(t *testing.T) {
	srcArena, srcInterner, srcVM := newEngine(t)
	bc := compile(t, srcInterner, `
		function greet(name) {
			return "hello " + name + "!";
		}
		return greet("world") + " " + (2 + 2);
	`)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, srcArena, bc, 0))

	dstArena, dstInterner, dstVM := newEngine(t)
	loaded, err := Load(&buf, dstArena, dstInterner, false)
	require.NoError(t, err)

	result, err := dstVM.RunProgram(loaded, value.Undefined)
	require.NoError(t, err)
	s, err := dstVM.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "hello world! 4", s)

	// Sanity: the source engine evaluates the same program to the same
	// result, so the round trip didn't change program behavior.
	original, err := srcVM.RunProgram(compile(t, srcInterner, `
		function greet(name) { return "hello " + name + "!"; }
		return greet("world") + " " + (2 + 2);
	`), value.Undefined)
	require.NoError(t, err)
	origStr, err := srcVM.ToDisplayString(original)
	require.NoError(t, err)
	require.Equal(t, s, origStr)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, interner, _ := newEngine(t)
	arena := heap.NewArena(heap.Config{})
	_, err := Load(bytes.NewReader([]byte("nope, not a snapshot")), arena, interner, false)
	require.Error(t, err)
}

func TestLoadRejectsBuildIDMismatch(t *testing.T) {
	srcArena, srcInterner, _ := newEngine(t)
	bc := compile(t, srcInterner, `return 1;`)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, srcArena, bc, 0))

	saved := BuildID
	next := uuid.New()
	for next == saved {
		next = uuid.New()
	}
	BuildID = next
	defer func() { BuildID = saved }()

	dstArena, dstInterner, _ := newEngine(t)
	_, err := Load(&buf, dstArena, dstInterner, false)
	require.ErrorIs(t, err, ErrBuildIDMismatch)
}

func TestLoadRejectsStaticSnapshotWithoutAllowStatic(t *testing.T) {
	srcArena, srcInterner, _ := newEngine(t)
	bc := compile(t, srcInterner, `return 1;`)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, srcArena, bc, FlagStatic))
	raw := append([]byte(nil), buf.Bytes()...)

	dstArena, dstInterner, _ := newEngine(t)
	_, err := Load(bytes.NewReader(raw), dstArena, dstInterner, false)
	require.ErrorIs(t, err, ErrStaticNotAllowed)

	loaded, err := Load(bytes.NewReader(raw), dstArena, dstInterner, true)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestMergeRejectsMismatchedFlags(t *testing.T) {
	_, interner, _ := newEngine(t)
	a := compile(t, interner, `return 1;`)
	b := compile(t, interner, `return 2;`)

	_, err := Merge([]*bytecode.Bytecode{a, b}, []Flags{0, FlagStatic})
	require.ErrorIs(t, err, ErrFlagMismatch)

	bundle, err := Merge([]*bytecode.Bytecode{a, b}, []Flags{FlagStatic, FlagStatic})
	require.NoError(t, err)
	require.Len(t, bundle.Scripts, 2)
}

func TestSaveLoadBundleRoundTrip(t *testing.T) {
	srcArena, srcInterner, _ := newEngine(t)
	a := compile(t, srcInterner, `return "a";`)
	b := compile(t, srcInterner, `return "b";`)
	bundle, err := Merge([]*bytecode.Bytecode{a, b}, []Flags{0, 0})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SaveBundle(&buf, srcArena, bundle))

	dstArena, dstInterner, dstVM := newEngine(t)
	loaded, err := LoadBundle(&buf, dstArena, dstInterner, false)
	require.NoError(t, err)
	require.Len(t, loaded.Scripts, 2)

	r0, err := dstVM.RunProgram(loaded.Scripts[0], value.Undefined)
	require.NoError(t, err)
	s0, err := dstVM.ToDisplayString(r0)
	require.NoError(t, err)
	require.Equal(t, "a", s0)

	r1, err := dstVM.RunProgram(loaded.Scripts[1], value.Undefined)
	require.NoError(t, err)
	s1, err := dstVM.ToDisplayString(r1)
	require.NoError(t, err)
	require.Equal(t, "b", s1)
}

func TestSaveRejectsBytecodeWithEmbedderUserValue(t *testing.T) {
	srcArena, srcInterner, _ := newEngine(t)
	bc := compile(t, srcInterner, `return 1;`)
	strVal, err := srcInterner.InternString("opaque")
	require.NoError(t, err)
	bc.Header.SourceUserValue = value.HeapRef(strVal)

	var buf bytes.Buffer
	err = Save(&buf, srcArena, bc, 0)
	require.Error(t, err)
}
