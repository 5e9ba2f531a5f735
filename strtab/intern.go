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

// InternSet holds every literal appearing in source and every string used
// as a property name, one per engine Context (spec.md section 4.3,
// "Interning"). It is a GC root: the owning Context includes
// InternSet.Roots() in every Collect call so interned strings survive as
// long as the context does, matching the reference's single
// open-addressed hash set per context.
type InternSet struct {
	arena   *heap.Arena
	byHash  map[uint32][]heap.Index // collisions compared bytewise
	entries int
}

// NewInternSet creates an empty set bound to arena.
func NewInternSet(arena *heap.Arena) *InternSet {
	return &InternSet{arena: arena, byHash: make(map[uint32][]heap.Index)}
}

// Intern returns the Index of the canonical HeapString for cesu8,
// allocating one (or resolving to a magic-table literal) on first sight.
func (s *InternSet) Intern(cesu8 []byte) (heap.Index, error) {
	if magicIdx, ok := LookupMagic(cesu8); ok {
		hs := NewLiteral(magicIdx)
		return s.insertNew(hs)
	}

	h := FNV1a(cesu8)
	for _, idx := range s.byHash[h] {
		cell, ok := s.arena.TryGet(idx)
		if !ok {
			continue
		}
		existing := cell.(*HeapString)
		if string(existing.Bytes()) == string(cesu8) {
			return idx, nil
		}
	}

	hs := NewDirectOrExtended(cesu8)
	idx, err := s.arena.Alloc(hs)
	if err != nil {
		return heap.NullIndex, err
	}
	s.byHash[h] = append(s.byHash[h], idx)
	s.entries++
	return idx, nil
}

func (s *InternSet) insertNew(hs *HeapString) (heap.Index, error) {
	h := hs.Hash()
	for _, idx := range s.byHash[h] {
		cell, ok := s.arena.TryGet(idx)
		if ok && string(cell.(*HeapString).Bytes()) == string(hs.Bytes()) {
			return idx, nil
		}
	}
	idx, err := s.arena.Alloc(hs)
	if err != nil {
		return heap.NullIndex, err
	}
	s.byHash[h] = append(s.byHash[h], idx)
	s.entries++
	return idx, nil
}

// InternString is a convenience wrapper over Intern for a Go string.
func (s *InternSet) InternString(str string) (heap.Index, error) {
	return s.Intern(EncodeCESU8(str))
}

// Len reports the number of distinct interned strings.
func (s *InternSet) Len() int { return s.entries }

// Roots returns every Index the intern set holds live, for GC rooting.
func (s *InternSet) Roots() []heap.Index {
	out := make([]heap.Index, 0, s.entries)
	for _, bucket := range s.byHash {
		out = append(out, bucket...)
	}
	return out
}
