// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package strtab

import "github.com/kraklabs/jjs/heap"

// Repr distinguishes the four heap string representations spec.md
// section 3 names.
type Repr uint8

const (
	// ReprDirect stores bytes inline in the cell (<= DirectInlineLimit
	// bytes), avoiding a second allocation for short strings.
	ReprDirect Repr = iota
	// ReprExtended stores bytes in a separately allocated Go []byte owned
	// by this cell.
	ReprExtended
	// ReprExternal stores bytes owned by the embedder, released via
	// FreeCallback on collection.
	ReprExternal
	// ReprLiteral stores only an index into the magic table; Bytes() and
	// CodeUnits() resolve through MagicTable.
	ReprLiteral
)

// DirectInlineLimit is the inline-storage threshold (spec.md section 3:
// "direct (<= N bytes inline in the descriptor)"), aligned to the
// allocator's largest small size class (heap.FitsSmallClass) so a direct
// string never needs a second allocation beyond its own cell.
const DirectInlineLimit = 64

// HeapString is a heap.Cell holding one CESU-8 string.
type HeapString struct {
	repr       Repr
	bytes      []byte // unused when repr == ReprLiteral
	codeUnits  int    // cached CESU-8 code-unit length
	magicIndex int    // valid when repr == ReprLiteral
	freeFn     func([]byte)
	hash       uint32
}

func (s *HeapString) Kind() heap.Kind   { return heap.KindString }
func (s *HeapString) Refs() []heap.Index { return nil }

// Bytes returns the CESU-8 byte representation.
func (s *HeapString) Bytes() []byte {
	if s.repr == ReprLiteral {
		return MagicTable[s.magicIndex]
	}
	return s.bytes
}

// CodeUnitLength returns the string's length in CESU-8 (UTF-16) code
// units, tracked separately from byte size (spec.md section 3).
func (s *HeapString) CodeUnitLength() int { return s.codeUnits }

// Hash returns the cached content hash used by both the intern set and
// object property lookup (spec.md section 4.3, "Interning").
func (s *HeapString) Hash() uint32 { return s.hash }

// Finalize releases the externally-owned buffer, if any (spec.md section
// 4.2, "Finalization").
func (s *HeapString) Finalize() {
	if s.repr == ReprExternal && s.freeFn != nil {
		s.freeFn(s.bytes)
		s.freeFn = nil
	}
}

// NewDirectOrExtended builds a HeapString from CESU-8 bytes, choosing the
// direct or extended representation by size.
func NewDirectOrExtended(cesu8 []byte) *HeapString {
	repr := ReprExtended
	if len(cesu8) <= DirectInlineLimit {
		repr = ReprDirect
	}
	buf := make([]byte, len(cesu8))
	copy(buf, cesu8)
	return &HeapString{
		repr:      repr,
		bytes:     buf,
		codeUnits: CodeUnitLength(buf),
		hash:      FNV1a(buf),
	}
}

// NewExternal wraps embedder-owned bytes; freeFn is invoked at GC sweep
// (spec.md section 3, "external (embedder-provided bytes + free
// callback)").
func NewExternal(cesu8 []byte, freeFn func([]byte)) *HeapString {
	return &HeapString{
		repr:      ReprExternal,
		bytes:     cesu8,
		codeUnits: CodeUnitLength(cesu8),
		freeFn:    freeFn,
		hash:      FNV1a(cesu8),
	}
}

// NewLiteral wraps a magic-table index; no heap allocation for the bytes
// themselves (spec.md section 3, "literal (index into the read-only magic
// table)").
func NewLiteral(idx int) *HeapString {
	bytes := MagicTable[idx]
	return &HeapString{
		repr:       ReprLiteral,
		magicIndex: idx,
		codeUnits:  CodeUnitLength(bytes),
		hash:       FNV1a(bytes),
	}
}

// FNV1a is the (length, byte-hash) key strtab.InternSet and
// object.hashmap both use (spec.md section 4.3, "Lookup key is (length,
// byte-hash)"). FNV-1a is used rather than a cryptographic hash since
// collision resistance against adversarial input is not a goal for an
// in-process property-name table, and it is branch-free and allocation-
// free, unlike crypto/sha256 (which the teacher uses for content-addressed
// file hashing in pkg/ingestion/hash_delta.go, a different threat model).
func FNV1a(b []byte) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime
	}
	return h
}
