// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package jjs

import "github.com/kraklabs/jjs/heap"

// HandleScope bulk-releases API handles created while it is open,
// ported from jjs-ext/handle-scope/handle-scope.c: rather than the
// embedder calling value.Free() per value, every Value retained inside
// the scope is released in one Close() call. Grounded on
// heap.Arena.Pin/Unpin (the external reference count spec.md section 3
// already gives every heap value) rather than the reference's separate
// free-list-of-blocks allocator, since the Arena already tracks exactly
// the count a HandleScope needs to undo.
type HandleScope struct {
	ctx    *Context
	pinned []heap.Index
}

// OpenHandleScope begins a new scope on ctx.
func (c *Context) OpenHandleScope() *HandleScope {
	return &HandleScope{ctx: c}
}

// Retain pins v for the lifetime of the scope and returns it unchanged,
// so call sites can wrap a value-producing expression: `x := scope
// .Retain(ctx.Eval(...))`.
func (s *HandleScope) Retain(v Value) Value {
	if v.raw.IsHeapRef() {
		idx := v.raw.AsHeapRef()
		s.ctx.Arena.Pin(idx)
		s.pinned = append(s.pinned, idx)
	}
	return v
}

// Close unpins every Value retained in the scope. A HandleScope must not
// be used after Close.
func (s *HandleScope) Close() {
	for _, idx := range s.pinned {
		s.ctx.Arena.Unpin(idx)
	}
	s.pinned = nil
}
