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
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

// Store bundles the arena and the single shared LookupCache an engine
// Context owns, so property operations can consult/update both without
// every call site threading two parameters. One Store exists per
// Context - matching spec.md section 4.4's "A small (default 128-entry)
// direct-mapped L1" being one cache shared across every object in the
// context, not one per object.
type Store struct {
	Arena    *heap.Arena
	Cache    *LookupCache
	Interner *strtab.InternSet
}

func NewStore(arena *heap.Arena, interner *strtab.InternSet) *Store {
	return &Store{Arena: arena, Cache: NewLookupCache(), Interner: interner}
}

func nameBytes(arena *heap.Arena, name value.Value) []byte {
	if !name.IsHeapRef() {
		return nil
	}
	cell, ok := arena.TryGet(name.AsHeapRef())
	if !ok {
		return nil
	}
	if hs, ok := cell.(*strtab.HeapString); ok {
		return hs.Bytes()
	}
	return nil
}

func nameHash(arena *heap.Arena, name value.Value) uint32 {
	if !name.IsHeapRef() {
		return uint32(name)
	}
	cell, ok := arena.TryGet(name.AsHeapRef())
	if !ok {
		return 0
	}
	if hs, ok := cell.(*strtab.HeapString); ok {
		return hs.Hash()
	}
	return 0
}

// GetOwnProperty walks obj's property-pair chain (consulting the hashmap
// or lookup cache first when available) and returns the slot bound to
// name, if any (spec.md section 4.4, "Own property access").
func (s *Store) GetOwnProperty(objIdx heap.Index, name value.Value) (Slot, bool) {
	obj := s.Arena.Get(objIdx).(*Object)
	nb := nameBytes(s.Arena, name)
	h := nameHash(s.Arena, name)

	if pair, slotIdx, ok := s.Cache.Lookup(objIdx, h); ok {
		if cell, ok := s.Arena.TryGet(pair); ok {
			pp := cell.(*PropertyPair)
			if !pp.Slots[slotIdx].Empty() && sameName(s.Arena, pp.Slots[slotIdx].Name, name) {
				return pp.Slots[slotIdx], true
			}
		}
	}

	if !obj.Hashmap.IsNull() {
		hm := s.Arena.Get(obj.Hashmap).(*Hashmap)
		if ref, ok := hm.Get(nb); ok {
			pp := s.Arena.Get(ref.Pair).(*PropertyPair)
			s.Cache.Store(objIdx, h, ref.Pair, ref.Slot)
			return pp.Slots[ref.Slot], true
		}
		return Slot{}, false
	}

	cur := obj.Properties
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for i, slot := range pp.Slots {
			if slot.Empty() {
				continue
			}
			if sameName(s.Arena, slot.Name, name) {
				s.Cache.Store(objIdx, h, cur, i)
				return slot, true
			}
		}
		cur = pp.Next
	}
	return Slot{}, false
}

func sameName(arena *heap.Arena, a, b value.Value) bool {
	if a == b {
		return true
	}
	ab, bb := nameBytes(arena, a), nameBytes(arena, b)
	if ab == nil || bb == nil {
		return false
	}
	return string(ab) == string(bb)
}

// DefineOwnDataProperty inserts or overwrites a data property. It does
// not implement the full reject-on-incompatible-redefinition matrix
// (that lives in vm/ecma semantics, which calls this after validating);
// this is the mechanical storage operation spec.md section 4.4 describes:
// walk-or-append into the pair chain, attach a Hashmap past
// HashmapThreshold, and invalidate the lookup cache.
func (s *Store) DefineOwnDataProperty(objIdx heap.Index, name value.Value, data value.Value, flags PropFlags) error {
	flags |= FlagIsData
	return s.defineSlot(objIdx, Slot{Name: name, Data: data, Flags: flags})
}

// DefineOwnAccessorProperty installs a getter/setter pair.
func (s *Store) DefineOwnAccessorProperty(objIdx heap.Index, name value.Value, getter, setter heap.Index, flags PropFlags) error {
	flags |= FlagIsAccessor
	if !getter.IsNull() {
		flags |= FlagGetDefined
	}
	if !setter.IsNull() {
		flags |= FlagSetDefined
	}
	return s.defineSlot(objIdx, Slot{Name: name, Getter: getter, Setter: setter, Flags: flags})
}

func (s *Store) defineSlot(objIdx heap.Index, newSlot Slot) error {
	obj := s.Arena.Get(objIdx).(*Object)
	h := nameHash(s.Arena, newSlot.Name)

	// Overwrite in place if the property already exists.
	cur := obj.Properties
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for i := range pp.Slots {
			if !pp.Slots[i].Empty() && sameName(s.Arena, pp.Slots[i].Name, newSlot.Name) {
				pp.Slots[i] = newSlot
				s.invalidate(objIdx, h)
				return nil
			}
		}
		cur = pp.Next
	}

	// Find a free slot in the chain, or append a new pair.
	cur = obj.Properties
	var lastPairIdx heap.Index = heap.NullIndex
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for i := range pp.Slots {
			if pp.Slots[i].Empty() {
				pp.Slots[i] = newSlot
				obj.propCount++
				s.indexIfAttached(obj, nameBytes(s.Arena, newSlot.Name), cur, i)
				s.invalidate(objIdx, h)
				s.maybeAttachHashmap(objIdx, obj)
				return nil
			}
		}
		lastPairIdx = cur
		cur = pp.Next
	}

	pp := NewPropertyPair()
	pp.Slots[0] = newSlot
	idx, err := s.Arena.Alloc(pp)
	if err != nil {
		return err
	}
	if lastPairIdx.IsNull() {
		obj.Properties = idx
	} else {
		lastPP := s.Arena.Get(lastPairIdx).(*PropertyPair)
		lastPP.Next = idx
	}
	obj.propCount++
	s.indexIfAttached(obj, nameBytes(s.Arena, newSlot.Name), idx, 0)
	s.invalidate(objIdx, h)
	s.maybeAttachHashmap(objIdx, obj)
	return nil
}

func (s *Store) indexIfAttached(obj *Object, nb []byte, pair heap.Index, slot int) {
	if obj.Hashmap.IsNull() || nb == nil {
		return
	}
	s.Arena.Get(obj.Hashmap).(*Hashmap).Put(nb, pair, slot)
}

func (s *Store) invalidate(objIdx heap.Index, h uint32) {
	s.Cache.Invalidate()
}

// maybeAttachHashmap builds and attaches a Hashmap once the property
// chain exceeds HashmapThreshold (spec.md section 4.4).
func (s *Store) maybeAttachHashmap(objIdx heap.Index, obj *Object) {
	if !obj.Hashmap.IsNull() || obj.propCount <= HashmapThreshold {
		return
	}
	hm := NewHashmap()
	cur := obj.Properties
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for i, slot := range pp.Slots {
			if slot.Empty() {
				continue
			}
			if nb := nameBytes(s.Arena, slot.Name); nb != nil {
				hm.Put(nb, cur, i)
			}
		}
		cur = pp.Next
	}
	idx, err := s.Arena.Alloc(hm)
	if err != nil {
		return // allocation failure: keep operating without the index
	}
	obj.Hashmap = idx
}

// DeleteOwnProperty clears the slot bound to name, if present, and
// returns whether it was configurable (and thus deletable).
func (s *Store) DeleteOwnProperty(objIdx heap.Index, name value.Value) bool {
	obj := s.Arena.Get(objIdx).(*Object)
	h := nameHash(s.Arena, name)
	cur := obj.Properties
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for i := range pp.Slots {
			if pp.Slots[i].Empty() || !sameName(s.Arena, pp.Slots[i].Name, name) {
				continue
			}
			if !pp.Slots[i].Flags.Has(FlagConfigurable) {
				return false
			}
			nb := nameBytes(s.Arena, pp.Slots[i].Name)
			pp.Slots[i] = Slot{Name: value.NotFound}
			obj.propCount--
			if !obj.Hashmap.IsNull() && nb != nil {
				s.Arena.Get(obj.Hashmap).(*Hashmap).Delete(nb)
			}
			s.invalidate(objIdx, h)
			return true
		}
		cur = pp.Next
	}
	return true // deleting an absent property succeeds, per ECMA-262
}

// OwnPropertyNames returns the own enumerable property names of objIdx in
// insertion order, the mechanical support Object.keys/values/assign (the
// vm/builtins layer) need and which the property-pair chain doesn't
// otherwise expose a batch accessor for.
func (s *Store) OwnPropertyNames(objIdx heap.Index) []value.Value {
	obj := s.Arena.Get(objIdx).(*Object)
	var names []value.Value
	cur := obj.Properties
	for !cur.IsNull() {
		pp := s.Arena.Get(cur).(*PropertyPair)
		for _, slot := range pp.Slots {
			if slot.Empty() || !slot.Flags.Has(FlagEnumerable) {
				continue
			}
			names = append(names, slot.Name)
		}
		cur = pp.Next
	}
	return names
}

// GetProperty walks the prototype chain for [[Get]] (spec.md section
// 4.4, "Prototype chain"). It does not invoke accessors or Proxy traps -
// callers needing full [[Get]] semantics (this-binding, trap dispatch)
// build on this in the vm/builtins layer.
func (s *Store) GetProperty(objIdx heap.Index, name value.Value, maxDepth int) (Slot, heap.Index, bool) {
	cur := objIdx
	seen := map[heap.Index]bool{}
	for i := 0; !cur.IsNull() && i < maxDepth; i++ {
		if seen[cur] {
			break // prototype cycle guard
		}
		seen[cur] = true
		if slot, ok := s.GetOwnProperty(cur, name); ok {
			return slot, cur, true
		}
		cur = s.Arena.Get(cur).(*Object).Prototype
	}
	return Slot{}, heap.NullIndex, false
}
