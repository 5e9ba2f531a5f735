// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package heap implements the engine's managed heap: a page-backed
// allocator with size-classed free lists for small objects, a boundary-tag
// free list for larger variable-size blocks, and a tri-color mark-and-sweep
// collector over an Arena of compressed-pointer-addressed cells.
//
// Per spec.md section 9 (Design Notes), the reference engine's 16/32-bit
// heap-relative compressed pointers are modeled here as a single Arena
// holding every GC-managed object, with Index as a Copy-able, borrow-free
// newtype. Dereferencing is always an explicit Arena.Get call returning a
// short-lived reference - there is no global heap and no thread-local
// context pointer (spec.md section 5 and section 9, "Global mutable
// state").
package heap

// Index is a compressed pointer: an offset into an Arena's cell table.
// It is the Go analogue of the reference engine's 16/32-bit
// heap-offset-divided-by-alignment-granule handle (spec.md section 3).
// Index is Copy, carries no borrow, and has no meaning outside the Arena
// that produced it - values must never be compared across arenas
// (spec.md section 5, "Shared resources").
type Index uint32

// NullIndex is the distinguished sentinel denoting "no object", matching
// the reference's NULL compressed pointer. Index 0 is never allocated to
// a live object; the Arena reserves slot 0 at construction.
const NullIndex Index = 0

// IsNull reports whether idx is the null sentinel.
func (idx Index) IsNull() bool { return idx == NullIndex }

// MaxIndex bounds how many live cells an Arena may address at once.
// value.Value reserves 2 tag bits and 1 error-flag bit out of its 32-bit
// word, leaving 29 bits for a compressed pointer payload - so MaxIndex is
// set to match that capacity rather than the full uint32 range, ensuring
// every Index the Arena ever hands out is representable as a
// value.Value.HeapRef without truncation. A Config.Limit further narrows
// this to emulate the reference's smaller 16-bit-compressed-pointer
// builds for conformance testing.
const MaxIndex Index = 1<<29 - 1
