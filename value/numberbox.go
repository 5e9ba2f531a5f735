// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package value

import "github.com/kraklabs/jjs/heap"

// NumberBox is the heap.Cell backing any ECMAScript number that doesn't
// fit the word's direct small-integer range (spec.md section 3: numbers
// outside the small-int range "box to a NUMBER cell holding a double").
// bytecode.Builder.NumberLiteral defers exactly this boxing to run time,
// since the parser never touches an Arena.
type NumberBox struct {
	F float64
}

func (n *NumberBox) Kind() heap.Kind   { return heap.KindNumberBox }
func (n *NumberBox) Refs() []heap.Index { return nil }

// BoxNumber allocates a NumberBox for f and returns it as a Value. Callers
// on the arithmetic hot path should prefer SmallInt first and only box
// when that fails or f is not integral.
func BoxNumber(arena *heap.Arena, f float64) (Value, error) {
	idx, err := arena.Alloc(&NumberBox{F: f})
	if err != nil {
		return Undefined, err
	}
	return HeapRef(idx), nil
}

// IsNumber reports whether v holds either encoding of a JS number.
func (v Value) IsNumber(arena *heap.Arena) bool {
	if v.IsSmallInt() {
		return true
	}
	if !v.IsHeapRef() {
		return false
	}
	cell, ok := arena.TryGet(v.AsHeapRef())
	if !ok {
		return false
	}
	_, ok = cell.(*NumberBox)
	return ok
}

// ToFloat64 reads v's numeric payload, unifying the small-int and boxed
// representations. The caller must know v is a number (IsNumber).
func (v Value) ToFloat64(arena *heap.Arena) float64 {
	if v.IsSmallInt() {
		return float64(v.AsSmallInt())
	}
	box := arena.Get(v.AsHeapRef()).(*NumberBox)
	return box.F
}

// Number encodes f as a Value, choosing the small-integer direct form
// when f is an integer in range and boxing it onto arena otherwise.
func Number(arena *heap.Arena, f float64) (Value, error) {
	if i := int32(f); float64(i) == f {
		if v, ok := SmallInt(i); ok {
			return v, nil
		}
	}
	return BoxNumber(arena, f)
}
