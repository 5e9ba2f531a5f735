// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package object

import (
	"fmt"
	"testing"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*heap.Arena, *strtab.InternSet, *Store) {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	return a, interner, NewStore(a, interner)
}

func internName(t *testing.T, interner *strtab.InternSet, s string) value.Value {
	t.Helper()
	idx, err := interner.InternString(s)
	require.NoError(t, err)
	return value.HeapRef(idx)
}

func TestStore_DefineAndGetOwnProperty(t *testing.T) {
	a, interner, store := newTestStore(t)
	objIdx, err := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	require.NoError(t, err)

	name := internName(t, interner, "foo")
	val, _ := value.SmallInt(42)
	require.NoError(t, store.DefineOwnDataProperty(objIdx, name, val, FlagWritable|FlagEnumerable|FlagConfigurable))

	slot, ok := store.GetOwnProperty(objIdx, name)
	require.True(t, ok)
	require.Equal(t, int32(42), slot.Data.AsSmallInt())
}

func TestStore_PrototypeChainWalk(t *testing.T) {
	a, interner, store := newTestStore(t)
	protoIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	childIdx, _ := a.Alloc(NewObject(KindPlain, protoIdx))

	name := internName(t, interner, "inherited")
	val, _ := value.SmallInt(7)
	require.NoError(t, store.DefineOwnDataProperty(protoIdx, name, val, FlagWritable))

	_, ok := store.GetOwnProperty(childIdx, name)
	require.False(t, ok, "own property lookup must not walk the prototype chain")

	slot, owner, ok := store.GetProperty(childIdx, name, 100)
	require.True(t, ok)
	require.Equal(t, protoIdx, owner)
	require.Equal(t, int32(7), slot.Data.AsSmallInt())
}

func TestStore_PrototypeCycleGuard(t *testing.T) {
	a, interner, store := newTestStore(t)
	objIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	obj := a.Get(objIdx).(*Object)
	obj.Prototype = objIdx // self-cycle

	name := internName(t, interner, "missing")
	_, _, ok := store.GetProperty(objIdx, name, 1000)
	require.False(t, ok) // must terminate, not loop forever
}

func TestStore_HashmapAttachesPastThreshold(t *testing.T) {
	a, interner, store := newTestStore(t)
	objIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))

	for i := 0; i < HashmapThreshold+1; i++ {
		name := internName(t, interner, fmt.Sprintf("prop%d", i))
		val, _ := value.SmallInt(int32(i))
		require.NoError(t, store.DefineOwnDataProperty(objIdx, name, val, FlagWritable))
	}

	obj := a.Get(objIdx).(*Object)
	require.False(t, obj.Hashmap.IsNull())

	name := internName(t, interner, "prop0")
	slot, ok := store.GetOwnProperty(objIdx, name)
	require.True(t, ok)
	require.Equal(t, int32(0), slot.Data.AsSmallInt())
}

func TestStore_DeleteRejectsNonConfigurable(t *testing.T) {
	a, interner, store := newTestStore(t)
	objIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	name := internName(t, interner, "locked")
	val, _ := value.SmallInt(1)
	require.NoError(t, store.DefineOwnDataProperty(objIdx, name, val, FlagWritable)) // no FlagConfigurable

	ok := store.DeleteOwnProperty(objIdx, name)
	require.False(t, ok)
	_, stillThere := store.GetOwnProperty(objIdx, name)
	require.True(t, stillThere)
}

func TestFastArray_GetSetWithinBounds(t *testing.T) {
	_, _, store := newTestStore(t)
	arrIdx, err := store.NewFastArray(heap.NullIndex, 3)
	require.NoError(t, err)

	v, _ := value.SmallInt(99)
	escaped := store.SetElement(arrIdx, 1, v)
	require.False(t, escaped)

	got, ok := store.GetElement(arrIdx, 1)
	require.True(t, ok)
	require.Equal(t, int32(99), got.AsSmallInt())

	_, ok = store.GetElement(arrIdx, 0)
	require.False(t, ok, "unset slot is a hole")
}

func TestFastArray_AppendGrows(t *testing.T) {
	_, _, store := newTestStore(t)
	arrIdx, _ := store.NewFastArray(heap.NullIndex, 0)
	v, _ := value.SmallInt(5)
	escaped := store.SetElement(arrIdx, 0, v)
	require.False(t, escaped)
	obj := store.Arena.Get(arrIdx).(*Object)
	require.Equal(t, 1, obj.Extra.(*ArrayData).Length())
}

func TestFastArray_SparseWriteEscapes(t *testing.T) {
	_, _, store := newTestStore(t)
	arrIdx, _ := store.NewFastArray(heap.NullIndex, 1)
	v, _ := value.SmallInt(1)
	escaped := store.SetElement(arrIdx, 10, v)
	require.True(t, escaped)
	obj := store.Arena.Get(arrIdx).(*Object)
	require.False(t, obj.Flags().Has(ObjFastArray))
}

func TestProxy_RevokeBlocksFurtherAccess(t *testing.T) {
	a, _, store := newTestStore(t)
	targetIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	handlerIdx, _ := a.Alloc(NewObject(KindPlain, heap.NullIndex))
	proxyIdx, err := store.NewProxy(targetIdx, handlerIdx)
	require.NoError(t, err)

	tgt, hnd, err := store.TargetAndHandler(proxyIdx)
	require.NoError(t, err)
	require.Equal(t, targetIdx, tgt)
	require.Equal(t, handlerIdx, hnd)

	store.Revoke(proxyIdx)
	_, _, err = store.TargetAndHandler(proxyIdx)
	require.ErrorIs(t, err, ErrProxyRevoked)
}
