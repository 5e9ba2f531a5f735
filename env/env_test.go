// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package env

import (
	"testing"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T) (*heap.Arena, *strtab.InternSet, *Chain) {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	return a, strtab.NewInternSet(a), NewChain(a)
}

func internName(t *testing.T, interner *strtab.InternSet, s string) value.Value {
	t.Helper()
	idx, err := interner.InternString(s)
	require.NoError(t, err)
	return value.HeapRef(idx)
}

func TestRecord_CreateInitializeGetBinding(t *testing.T) {
	a, interner, _ := newTestChain(t)
	idx, err := a.Alloc(NewRecord(KindDeclarative, heap.NullIndex))
	require.NoError(t, err)
	rec := a.Get(idx).(*Record)

	name := internName(t, interner, "x")
	rec.CreateBinding(name, false)

	_, initialized, found := rec.GetBindingValue(name)
	require.True(t, found)
	require.False(t, initialized, "let/const bindings start uninitialized (TDZ)")

	v, _ := value.SmallInt(10)
	require.True(t, rec.InitializeBinding(name, v))

	got, initialized, found := rec.GetBindingValue(name)
	require.True(t, found)
	require.True(t, initialized)
	require.Equal(t, int32(10), got.AsSmallInt())
}

func TestRecord_SetMutableBindingRejectsConst(t *testing.T) {
	a, interner, _ := newTestChain(t)
	idx, _ := a.Alloc(NewRecord(KindDeclarative, heap.NullIndex))
	rec := a.Get(idx).(*Record)

	name := internName(t, interner, "c")
	rec.CreateBinding(name, false) // const: not mutable
	one, _ := value.SmallInt(1)
	rec.InitializeBinding(name, one)

	two, _ := value.SmallInt(2)
	found, mutable := rec.SetMutableBinding(name, two)
	require.True(t, found)
	require.False(t, mutable)
}

func TestChain_ResolveWalksOuter(t *testing.T) {
	a, interner, chain := newTestChain(t)
	outerIdx, _ := chain.NewChild(KindFunction, heap.NullIndex)
	outer := a.Get(outerIdx).(*Record)
	name := internName(t, interner, "shared")
	outer.CreateBinding(name, true)
	v, _ := value.SmallInt(5)
	outer.InitializeBinding(name, v)

	innerIdx, _ := chain.NewChild(KindDeclarative, outerIdx)

	owner, got, initialized, found := chain.Resolve(innerIdx, name, 10)
	require.True(t, found)
	require.True(t, initialized)
	require.Equal(t, outerIdx, owner)
	require.Equal(t, int32(5), got.AsSmallInt())
}

func TestChain_ResolveBindingMutatesOuter(t *testing.T) {
	a, interner, chain := newTestChain(t)
	outerIdx, _ := chain.NewChild(KindFunction, heap.NullIndex)
	outer := a.Get(outerIdx).(*Record)
	name := internName(t, interner, "counter")
	outer.CreateBinding(name, true)
	zero, _ := value.SmallInt(0)
	outer.InitializeBinding(name, zero)

	innerIdx, _ := chain.NewChild(KindDeclarative, outerIdx)

	one, _ := value.SmallInt(1)
	found, mutable := chain.ResolveBinding(innerIdx, name, one, 10)
	require.True(t, found)
	require.True(t, mutable)

	got, _, _ := outer.GetBindingValue(name)
	require.Equal(t, int32(1), got.AsSmallInt())
}

func TestChain_ResolveNotFound(t *testing.T) {
	_, interner, chain := newTestChain(t)
	globalIdx, _ := chain.NewChild(KindGlobal, heap.NullIndex)
	name := internName(t, interner, "missing")

	_, _, _, found := chain.Resolve(globalIdx, name, 10)
	require.False(t, found)
}

func TestRecord_Refs(t *testing.T) {
	a, interner, _ := newTestChain(t)
	outerIdx, _ := a.Alloc(NewRecord(KindGlobal, heap.NullIndex))
	idx, _ := a.Alloc(NewRecord(KindDeclarative, outerIdx))
	rec := a.Get(idx).(*Record)

	name := internName(t, interner, "y")
	rec.CreateBinding(name, true)
	v, _ := value.SmallInt(3)
	rec.InitializeBinding(name, v)

	refs := rec.Refs()
	require.Contains(t, refs, outerIdx)
	require.Contains(t, refs, name.AsHeapRef())
}
