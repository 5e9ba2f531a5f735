// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package env implements environment records: the lexical and variable
// scopes a function or block introduces, and the binding shapes within
// them (spec.md section 4 L8, "Environment records").
package env

import (
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/value"
)

// Kind distinguishes the ECMA-262 environment record flavors this engine
// materializes at runtime. Function- and block-scoped declarative
// records share one representation (Declarative); Global and Object
// records additionally consult an object for bindings not captured in
// Names/Values (the global object, and `with` statement bindings
// respectively).
type Kind uint8

const (
	KindDeclarative Kind = iota
	KindFunction
	KindGlobal
	KindObject
	KindModule
)

// BindingFlags records per-binding mutability and initialization state.
type BindingFlags uint8

const (
	BindMutable BindingFlags = 1 << iota
	BindInitialized
	BindStrict // `let`/`const`/class bindings: accessing before init throws
)

// Record is one environment record, linked to its Outer record to form
// the lexical scope chain (spec.md section 4, L8). It is a heap.Cell so
// closures captured by a Function's [[Environment]] slot keep the chain
// alive for as long as any live function references it.
type Record struct {
	kind  Kind
	Outer heap.Index // NullIndex for the outermost (global) record

	Names  []value.Value // interned string heap refs; index-aligned with Values
	Values []value.Value
	Flags  []BindingFlags

	// GlobalObject/WithObject backs Global/Object-kind records; NullIndex
	// otherwise.
	BackingObject heap.Index

	ThisValue    value.Value // set on function environment records
	HasThis      bool
	NewTargetVal value.Value
}

func NewRecord(kind Kind, outer heap.Index) *Record {
	return &Record{kind: kind, Outer: outer}
}

func (r *Record) Kind() heap.Kind { return heap.KindEnvironment }

func (r *Record) Refs() []heap.Index {
	refs := make([]heap.Index, 0, len(r.Values)+2)
	if !r.Outer.IsNull() {
		refs = append(refs, r.Outer)
	}
	if !r.BackingObject.IsNull() {
		refs = append(refs, r.BackingObject)
	}
	for _, n := range r.Names {
		if n.IsHeapRef() {
			refs = append(refs, n.AsHeapRef())
		}
	}
	for _, v := range r.Values {
		if v.IsHeapRef() {
			refs = append(refs, v.AsHeapRef())
		}
	}
	return refs
}

// EnvKind returns the environment record flavor.
func (r *Record) EnvKind() Kind { return r.kind }

func sameInterned(a, b value.Value) bool { return a == b }

// CreateBinding declares a new name in this record. mutable corresponds
// to `var`/`function` (true) vs `const`/class (false, until init).
func (r *Record) CreateBinding(name value.Value, mutable bool) {
	var flags BindingFlags
	if mutable {
		flags |= BindMutable
	}
	r.Names = append(r.Names, name)
	r.Values = append(r.Values, value.Undefined)
	r.Flags = append(r.Flags, flags)
}

// InitializeBinding marks name as initialized and stores its first value,
// completing a `let`/`const`/class declaration's temporal-dead-zone exit.
func (r *Record) InitializeBinding(name value.Value, v value.Value) bool {
	for i, n := range r.Names {
		if sameInterned(n, name) {
			r.Values[i] = v
			r.Flags[i] |= BindInitialized
			return true
		}
	}
	return false
}

// GetBindingValue returns name's value and whether it was found
// initialized in this record (not searching Outer).
func (r *Record) GetBindingValue(name value.Value) (value.Value, bool, bool) {
	for i, n := range r.Names {
		if sameInterned(n, name) {
			return r.Values[i], r.Flags[i]&BindInitialized != 0, true
		}
	}
	return value.Undefined, false, false
}

// SetMutableBinding assigns to an existing, already-initialized mutable
// binding. It returns (found, mutable) so the caller can distinguish "no
// such binding" (ReferenceError, in sloppy-mode-create or strict throw)
// from "assignment to constant" (TypeError).
func (r *Record) SetMutableBinding(name value.Value, v value.Value) (found, mutable bool) {
	for i, n := range r.Names {
		if sameInterned(n, name) {
			if r.Flags[i]&BindMutable == 0 {
				return true, false
			}
			r.Values[i] = v
			r.Flags[i] |= BindInitialized
			return true, true
		}
	}
	return false, false
}

// HasBinding reports whether name is declared in this record.
func (r *Record) HasBinding(name value.Value) bool {
	for _, n := range r.Names {
		if sameInterned(n, name) {
			return true
		}
	}
	return false
}
