// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package value

import (
	"testing"

	"github.com/kraklabs/jjs/heap"
	"github.com/stretchr/testify/require"
)

func TestSmallInt_RoundTrip(t *testing.T) {
	for _, n := range []int32{0, 1, -1, SmallIntMin, SmallIntMax, 42, -42} {
		v, ok := SmallInt(n)
		require.True(t, ok, "n=%d", n)
		require.True(t, v.IsSmallInt())
		require.Equal(t, n, v.AsSmallInt())
	}
}

func TestSmallInt_OutOfRange(t *testing.T) {
	_, ok := SmallInt(SmallIntMax + 1)
	require.False(t, ok)
	_, ok = SmallInt(SmallIntMin - 1)
	require.False(t, ok)
}

func TestImmediates_AreDistinctAndIdentified(t *testing.T) {
	require.True(t, Undefined.IsUndefined())
	require.True(t, Null.IsNull())
	require.True(t, True.IsBoolean())
	require.True(t, True.AsBoolean())
	require.True(t, False.IsBoolean())
	require.False(t, False.AsBoolean())
	require.True(t, Empty.IsEmpty())
	require.True(t, NotFound.IsNotFound())
	require.True(t, Null.IsNullish())
	require.True(t, Undefined.IsNullish())
	require.False(t, True.IsNullish())
}

func TestErrorBit_OrthogonalToPayload(t *testing.T) {
	v, _ := SmallInt(7)
	marked := v.WithError()
	require.True(t, marked.IsError())
	require.True(t, marked.IsSmallInt())
	require.Equal(t, int32(7), marked.AsSmallInt())

	cleared := marked.WithoutError()
	require.False(t, cleared.IsError())
	require.Equal(t, v, cleared)
}

func TestHeapRef_RoundTrip(t *testing.T) {
	idx := heap.Index(12345)
	v := HeapRef(idx)
	require.True(t, v.IsHeapRef())
	require.Equal(t, idx, v.AsHeapRef())
}

func TestHeapRef_SurvivesErrorBit(t *testing.T) {
	idx := heap.Index(9)
	v := HeapRef(idx).WithError()
	require.True(t, v.IsError())
	require.True(t, v.IsHeapRef())
	require.Equal(t, idx, v.AsHeapRef())
}
