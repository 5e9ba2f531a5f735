// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package object

import "github.com/kraklabs/jjs/heap"

// Extra holds kind-specific data that doesn't fit the common object
// header - the Go analogue of the reference's "extended object ... 8
// bytes of type-specific payload" (spec.md section 3). Each concrete
// Extra implementation owns its own Refs() contribution, merged into
// Object.Refs().
type Extra interface {
	Refs() []heap.Index
}

// Object is the engine's object header plus its Extra payload (spec.md
// section 3, "Object"). Object itself is the heap.Cell; PropertyPair
// chains and an optional Hashmap are separate cells linked by Index.
type Object struct {
	kind       Kind
	flags      ObjFlags
	Prototype  heap.Index
	Properties heap.Index // head of the PropertyPair chain, or NullIndex
	Hashmap    heap.Index // NullIndex until HashmapThreshold is exceeded
	Extra      Extra

	propCount int // live (non-empty) slots, tracked to decide hashmap attach
}

func NewObject(kind Kind, prototype heap.Index) *Object {
	return &Object{
		kind:      kind,
		flags:     ObjExtensible,
		Prototype: prototype,
	}
}

func (o *Object) Kind() heap.Kind { return heap.KindObject }

func (o *Object) ObjectKind() Kind { return o.kind }

func (o *Object) Flags() ObjFlags        { return o.flags }
func (o *Object) SetFlag(f ObjFlags)     { o.flags |= f }
func (o *Object) ClearFlag(f ObjFlags)   { o.flags &^= f }
func (o *Object) IsExtensible() bool     { return o.flags.Has(ObjExtensible) }
func (o *Object) SetExtensible(b bool) {
	if b {
		o.flags |= ObjExtensible
	} else {
		o.flags &^= ObjExtensible
	}
}

func (o *Object) Refs() []heap.Index {
	refs := make([]heap.Index, 0, 4)
	if !o.Prototype.IsNull() {
		refs = append(refs, o.Prototype)
	}
	if !o.Properties.IsNull() {
		refs = append(refs, o.Properties)
	}
	if !o.Hashmap.IsNull() {
		refs = append(refs, o.Hashmap)
	}
	if o.Extra != nil {
		refs = append(refs, o.Extra.Refs()...)
	}
	return refs
}
