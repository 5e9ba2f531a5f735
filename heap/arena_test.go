// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testCell struct {
	kind Kind
	refs []Index
}

func (c testCell) Kind() Kind   { return c.kind }
func (c testCell) Refs() []Index { return c.refs }

func TestArena_AllocGetRoundTrip(t *testing.T) {
	a := NewArena(Config{})
	idx, err := a.Alloc(testCell{kind: KindObject})
	require.NoError(t, err)
	require.False(t, idx.IsNull())
	require.Equal(t, KindObject, a.Get(idx).Kind())
}

func TestArena_AllocRespectsLimit(t *testing.T) {
	a := NewArena(Config{Limit: 1})
	_, err := a.Alloc(testCell{kind: KindObject})
	require.NoError(t, err)
	_, err = a.Alloc(testCell{kind: KindObject})
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestArena_PinUnpin(t *testing.T) {
	a := NewArena(Config{})
	idx, _ := a.Alloc(testCell{kind: KindString})
	a.Pin(idx)
	require.EqualValues(t, 1, a.RefCount(idx))
	a.Unpin(idx)
	require.EqualValues(t, 0, a.RefCount(idx))
	require.Panics(t, func() { a.Unpin(idx) })
}

func TestArena_Collect_SweepsUnreachable(t *testing.T) {
	a := NewArena(Config{})
	root, _ := a.Alloc(testCell{kind: KindObject})
	child, _ := a.Alloc(testCell{kind: KindString})
	a.slots[root].cell = testCell{kind: KindObject, refs: []Index{child}}
	orphan, _ := a.Alloc(testCell{kind: KindString})

	stats := a.Collect([]Index{root}, PressureHigh)

	require.Equal(t, 2, stats.Marked) // root + child
	require.Equal(t, 1, stats.Swept)  // orphan
	_, ok := a.TryGet(orphan)
	require.False(t, ok)
	_, ok = a.TryGet(child)
	require.True(t, ok)
}

func TestArena_Collect_PinnedSurvives(t *testing.T) {
	a := NewArena(Config{})
	pinned, _ := a.Alloc(testCell{kind: KindString})
	a.Pin(pinned)

	stats := a.Collect(nil, PressureHigh)

	require.Equal(t, 1, stats.Marked)
	_, ok := a.TryGet(pinned)
	require.True(t, ok)
}

func TestArena_Collect_LowPressureSkipsBelowThreshold(t *testing.T) {
	a := NewArena(Config{})
	for i := 0; i < 100; i++ {
		idx, _ := a.Alloc(testCell{kind: KindString})
		a.Pin(idx)
	}
	a.allocatedSinceGC = 1 // well below 1/32 of 100 live cells after first GC baseline

	stats := a.Collect(nil, PressureLow)
	require.Zero(t, stats.Marked)
	require.Zero(t, stats.Swept)
}

type finalizingCell struct {
	testCell
	finalized *bool
}

func (c finalizingCell) Finalize() { *c.finalized = true }

func TestArena_Collect_RunsFinalizers(t *testing.T) {
	a := NewArena(Config{})
	finalized := false
	_, _ = a.Alloc(finalizingCell{testCell: testCell{kind: KindObject}, finalized: &finalized})

	stats := a.Collect(nil, PressureHigh)

	require.Equal(t, 1, stats.Finalized)
	require.True(t, finalized)
}

func TestBoundaryTagRegion_AllocFreeCoalesce(t *testing.T) {
	buf := make([]byte, 128)
	r := newBoundaryTagRegion(buf)

	a, err := r.Alloc(16, 8)
	require.NoError(t, err)
	b, err := r.Alloc(16, 8)
	require.NoError(t, err)

	a[0] = 0xAA
	b[0] = 0xBB
	require.Equal(t, byte(0xAA), a[0])
	require.Equal(t, byte(0xBB), b[0])

	r.Free(0, 16)
	r.Free(16, 16)
	require.Len(t, r.freed, 1)
	require.Equal(t, 128, r.freed[0].Length)
}
