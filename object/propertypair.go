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
	"github.com/kraklabs/jjs/value"
)

// Slot is one of the two property entries in a PropertyPair.
type Slot struct {
	Name   value.Value // heap ref to an interned string or a symbol; NotFound if empty
	Data   value.Value // data property value; unused when IsAccessor
	Getter heap.Index  // function object Index; NullIndex if absent
	Setter heap.Index
	Flags  PropFlags
}

// Empty reports whether the slot holds no property.
func (s Slot) Empty() bool { return s.Name.IsNotFound() }

// PropertyPair is the unit of property storage: two slots, chained via
// Next. A full pair is always allocated even if only one slot is used
// (spec.md section 3, "Property pair").
type PropertyPair struct {
	Slots [2]Slot
	Next  heap.Index
}

func NewPropertyPair() *PropertyPair {
	return &PropertyPair{
		Slots: [2]Slot{{Name: value.NotFound}, {Name: value.NotFound}},
		Next:  heap.NullIndex,
	}
}

func (p *PropertyPair) Kind() heap.Kind { return heap.KindPropertyPair }

func (p *PropertyPair) Refs() []heap.Index {
	refs := make([]heap.Index, 0, 6)
	for _, s := range p.Slots {
		if s.Empty() {
			continue
		}
		if s.Name.IsHeapRef() {
			refs = append(refs, s.Name.AsHeapRef())
		}
		if s.Flags.Has(FlagIsData) && s.Data.IsHeapRef() {
			refs = append(refs, s.Data.AsHeapRef())
		}
		if s.Flags.Has(FlagGetDefined) {
			refs = append(refs, s.Getter)
		}
		if s.Flags.Has(FlagSetDefined) {
			refs = append(refs, s.Setter)
		}
	}
	if !p.Next.IsNull() {
		refs = append(refs, p.Next)
	}
	return refs
}
