// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package env

import (
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/value"
)

// Chain walks a Record's Outer links through an Arena, the lexical
// environment chain a VM frame follows to resolve an identifier
// reference (spec.md section 4, L8/L10 boundary).
type Chain struct {
	Arena *heap.Arena
}

func NewChain(arena *heap.Arena) *Chain { return &Chain{Arena: arena} }

// Resolve searches from startIdx outward for name, returning the record
// that owns the binding, its value, and whether it was found. maxDepth
// bounds the walk against a malformed or cyclic chain.
func (c *Chain) Resolve(startIdx heap.Index, name value.Value, maxDepth int) (owner heap.Index, v value.Value, initialized, found bool) {
	cur := startIdx
	for i := 0; !cur.IsNull() && i < maxDepth; i++ {
		rec := c.Arena.Get(cur).(*Record)
		if val, init, ok := rec.GetBindingValue(name); ok {
			return cur, val, init, true
		}
		cur = rec.Outer
	}
	return heap.NullIndex, value.Undefined, false, false
}

// ResolveBinding mutates an existing binding found anywhere in the chain.
// It returns (found, mutable) exactly like Record.SetMutableBinding.
func (c *Chain) ResolveBinding(startIdx heap.Index, name value.Value, v value.Value, maxDepth int) (found, mutable bool) {
	cur := startIdx
	for i := 0; !cur.IsNull() && i < maxDepth; i++ {
		rec := c.Arena.Get(cur).(*Record)
		if rec.HasBinding(name) {
			return rec.SetMutableBinding(name, v)
		}
		cur = rec.Outer
	}
	return false, false
}

// NewChild allocates a new Record of kind, linked to outer, and returns
// its heap index.
func (c *Chain) NewChild(kind Kind, outer heap.Index) (heap.Index, error) {
	return c.Arena.Alloc(NewRecord(kind, outer))
}
