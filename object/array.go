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
	"strconv"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/value"
)

// ArrayData is the Extra payload for a fast array: contiguous element
// storage equal in length to Length, with holes counted rather than
// flagged individually (spec.md section 4.4, "Fast arrays").
type ArrayData struct {
	Elements  []value.Value
	HoleCount int
}

func NewArrayData() *ArrayData { return &ArrayData{} }

func (a *ArrayData) Refs() []heap.Index {
	refs := make([]heap.Index, 0, len(a.Elements))
	for _, v := range a.Elements {
		if v.IsHeapRef() {
			refs = append(refs, v.AsHeapRef())
		}
	}
	return refs
}

func (a *ArrayData) Length() int { return len(a.Elements) }

// NewFastArray allocates an array Object backed by ArrayData and marks it
// ObjFastArray | ObjIsArray.
func (s *Store) NewFastArray(prototype heap.Index, length int) (heap.Index, error) {
	obj := NewObject(KindArray, prototype)
	obj.SetFlag(ObjIsArray | ObjFastArray)
	data := NewArrayData()
	data.Elements = make([]value.Value, length)
	for i := range data.Elements {
		data.Elements[i] = value.Empty // hole marker; see GetElement
		data.HoleCount++
	}
	obj.Extra = data
	return s.Arena.Alloc(obj)
}

// GetElement reads index i on the fast path, returning (value, true) if
// within bounds and not a hole, bypassing the property machinery entirely
// while IsFastArray holds (spec.md section 4.4: "Element access bypasses
// the property machinery entirely while fast").
func (s *Store) GetElement(objIdx heap.Index, i int) (value.Value, bool) {
	obj := s.Arena.Get(objIdx).(*Object)
	if !obj.Flags().Has(ObjFastArray) {
		return value.Value(0), false
	}
	data := obj.Extra.(*ArrayData)
	if i < 0 || i >= len(data.Elements) {
		return value.Value(0), false
	}
	v := data.Elements[i]
	if v.IsEmpty() {
		return value.Value(0), false // hole
	}
	return v, true
}

// SetElement writes index i on the fast path, growing the backing slice
// when i == Length (append), or escaping to the generic representation
// when i is out of the contiguous range or violates another fast-array
// invariant. The caller (vm/builtins) is responsible for re-dispatching
// to the generic property path when escaped returns true.
func (s *Store) SetElement(objIdx heap.Index, i int, v value.Value) (escaped bool) {
	obj := s.Arena.Get(objIdx).(*Object)
	if !obj.Flags().Has(ObjFastArray) {
		return true
	}
	data := obj.Extra.(*ArrayData)
	switch {
	case i >= 0 && i < len(data.Elements):
		if data.Elements[i].IsEmpty() {
			data.HoleCount--
		}
		data.Elements[i] = v
		return false
	case i == len(data.Elements):
		data.Elements = append(data.Elements, v)
		return false
	default:
		// A sparse write beyond length+1 would introduce an unflagged
		// hole range; escape to the generic representation instead of
		// fabricating holes the fast path can't represent compactly.
		s.EscapeFastArray(objIdx)
		return true
	}
}

// EscapeFastArray converts a fast array to a generic object with indexed
// properties, per the triggers in spec.md section 4.4 (a): a non-index
// own property is added; (b) a non-writable element is defined; (c) an
// accessor is installed; (d) length is set below a non-configurable
// element.
func (s *Store) EscapeFastArray(objIdx heap.Index) error {
	obj := s.Arena.Get(objIdx).(*Object)
	if !obj.Flags().Has(ObjFastArray) {
		return nil
	}
	data := obj.Extra.(*ArrayData)
	obj.ClearFlag(ObjFastArray)
	for i, v := range data.Elements {
		if v.IsEmpty() {
			continue // hole: no own property at all
		}
		name, err := s.internIndexName(i)
		if err != nil {
			return err
		}
		if err := s.DefineOwnDataProperty(objIdx, name, v, FlagWritable|FlagEnumerable|FlagConfigurable|FlagValueDefined); err != nil {
			return err
		}
	}
	obj.Extra = nil
	return nil
}

// internIndexName produces the canonical numeric-string property name for
// an array index (spec.md section 3, invariant 3: "ordinal array indices
// ... are represented as the canonical numeric-string form").
func (s *Store) internIndexName(i int) (value.Value, error) {
	idx, err := s.Interner.InternString(strconv.Itoa(i))
	if err != nil {
		return value.Value(0), err
	}
	return value.HeapRef(idx), nil
}
