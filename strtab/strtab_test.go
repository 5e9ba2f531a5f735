// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package strtab

import (
	"testing"

	"github.com/kraklabs/jjs/heap"
	"github.com/stretchr/testify/require"
)

func TestCESU8_RoundTripBMP(t *testing.T) {
	s := "hello, world! \"quoted\""
	require.Equal(t, s, DecodeCESU8(EncodeCESU8(s)))
}

func TestCESU8_RoundTripSupplementary(t *testing.T) {
	s := "emoji: \U0001F600 done"
	encoded := EncodeCESU8(s)
	require.Equal(t, s, DecodeCESU8(encoded))
	// A supplementary code point costs two 3-byte surrogate units = 6
	// bytes, never a native 4-byte UTF-8 sequence.
	require.NotContains(t, string(encoded), "\U0001F600")
}

func TestCodeUnitLength_CountsSurrogatePairsAsTwo(t *testing.T) {
	encoded := EncodeCESU8("\U0001F600")
	require.Equal(t, 2, CodeUnitLength(encoded))
}

func TestUTF16LERoundTrip(t *testing.T) {
	cesu8 := EncodeCESU8("héllo")
	utf16le, err := UTF16LEFromCESU8(cesu8)
	require.NoError(t, err)
	back, err := CESU8FromUTF16LE(utf16le)
	require.NoError(t, err)
	require.Equal(t, cesu8, back)
}

func TestInternSet_DedupsEqualBytes(t *testing.T) {
	a := heap.NewArena(heap.Config{})
	set := NewInternSet(a)

	idx1, err := set.InternString("length")
	require.NoError(t, err)
	idx2, err := set.InternString("length")
	require.NoError(t, err)
	require.Equal(t, idx1, idx2)
	require.Equal(t, 1, set.Len())
}

func TestInternSet_UsesMagicTableForKnownNames(t *testing.T) {
	a := heap.NewArena(heap.Config{})
	set := NewInternSet(a)

	idx, err := set.InternString("length")
	require.NoError(t, err)
	hs := a.Get(idx).(*HeapString)
	require.Equal(t, ReprLiteral, hs.repr)
}

func TestInternSet_DistinguishesDifferentNames(t *testing.T) {
	a := heap.NewArena(heap.Config{})
	set := NewInternSet(a)

	idxA, _ := set.InternString("foo")
	idxB, _ := set.InternString("bar")
	require.NotEqual(t, idxA, idxB)
}

func TestBuilder_FinalizeProducesContiguousString(t *testing.T) {
	b := NewBuilder(0)
	b.AppendString("foo").AppendString("bar").AppendString("baz")
	hs := b.Finalize()
	require.Equal(t, "foobarbaz", DecodeCESU8(hs.Bytes()))
	require.Equal(t, 0, b.Len())
}

func TestExtendMagicTable_AssignsStableIndices(t *testing.T) {
	before := len(MagicTable)
	first := ExtendMagicTable("__customOne", "__customTwo")
	require.Equal(t, before, first)
	idx, ok := LookupMagic(EncodeCESU8("__customOne"))
	require.True(t, ok)
	require.Equal(t, first, idx)
}
