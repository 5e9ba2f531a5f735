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

// FunctionData is the Extra payload for a callable object (spec.md
// section 4.7, "Every built-in object stores a compact (builtin-id,
// routine-id) pair"). A function is either bytecode-backed (Code set,
// RoutineID negative) or native (RoutineID >= 0, dispatched through the
// builtins package's routine table); it is never both.
type FunctionData struct {
	Code    heap.Index // *bytecode.Bytecode cell; NullIndex for native functions
	Closure heap.Index // env.Record the closure was created in; NullIndex at global scope

	BuiltinID int // identifies the owning built-in (Array, String, ...); -1 for bytecode functions
	RoutineID int // routine within BuiltinID's table; -1 for bytecode functions

	HomeObject heap.Index // [[HomeObject]] for methods using `super`; NullIndex otherwise
	IsArrow    bool       // arrow functions have no own `this`/`arguments`/[[Construct]]

	// Bound-function fields; only meaningful when the owning Object's
	// Kind is KindBoundFunction.
	BoundTarget heap.Index
	BoundThis   value.Value
	BoundArgs   []value.Value
}

func (f *FunctionData) Refs() []heap.Index {
	refs := make([]heap.Index, 0, len(f.BoundArgs)+4)
	if !f.Code.IsNull() {
		refs = append(refs, f.Code)
	}
	if !f.Closure.IsNull() {
		refs = append(refs, f.Closure)
	}
	if !f.HomeObject.IsNull() {
		refs = append(refs, f.HomeObject)
	}
	if !f.BoundTarget.IsNull() {
		refs = append(refs, f.BoundTarget)
	}
	if f.BoundThis.IsHeapRef() {
		refs = append(refs, f.BoundThis.AsHeapRef())
	}
	for _, a := range f.BoundArgs {
		if a.IsHeapRef() {
			refs = append(refs, a.AsHeapRef())
		}
	}
	return refs
}

// IsNative reports whether the function dispatches through the builtins
// routine table rather than running interpreted bytecode.
func (f *FunctionData) IsNative() bool { return f.Code.IsNull() && f.BuiltinID >= 0 }

// NewBytecodeFunction allocates a callable KindFunction object wrapping
// code, closing over closure (NullIndex for top-level functions).
func (s *Store) NewBytecodeFunction(prototype heap.Index, code, closure heap.Index) (heap.Index, error) {
	obj := NewObject(KindFunction, prototype)
	obj.SetFlag(ObjIsCallable | ObjIsConstructor)
	obj.Extra = &FunctionData{Code: code, Closure: closure, BuiltinID: -1, RoutineID: -1, HomeObject: heap.NullIndex, BoundTarget: heap.NullIndex}
	return s.Arena.Alloc(obj)
}

// NewNativeFunction allocates a callable KindFunction object dispatching
// to builtinID/routineID. constructable controls ObjIsConstructor (most
// built-in methods are not constructors; a handful, like Array, are).
func (s *Store) NewNativeFunction(prototype heap.Index, builtinID, routineID int, constructable bool) (heap.Index, error) {
	obj := NewObject(KindFunction, prototype)
	flags := ObjIsCallable
	if constructable {
		flags |= ObjIsConstructor
	}
	obj.SetFlag(flags)
	obj.Extra = &FunctionData{Code: heap.NullIndex, Closure: heap.NullIndex, BuiltinID: builtinID, RoutineID: routineID, HomeObject: heap.NullIndex, BoundTarget: heap.NullIndex}
	return s.Arena.Alloc(obj)
}
