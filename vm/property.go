// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vm

import (
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

const maxPrototypeDepth = 512

// toPropertyKey coerces v (the result of evaluating a computed member
// expression, or a pre-interned literal) into the value.Value form the
// object package's Store methods expect: strings and small integers pass
// through as interned-string heap refs, everything else falls back to
// ToDisplayString (spec.md does not yet define Symbol property keys at
// this layer).
func (vm *VM) toPropertyKey(v value.Value) (value.Value, error) {
	if v.IsHeapRef() {
		if _, ok := vm.Arena.Get(v.AsHeapRef()).(*object.Object); !ok {
			return v, nil // already an interned string
		}
	}
	s, err := vm.ToDisplayString(v)
	if err != nil {
		return value.Undefined, err
	}
	return vm.NewJSString(s)
}

// getProperty implements [[Get]] for a non-null/undefined receiver:
// own-then-prototype lookup, dispatching to the getter function for an
// accessor property. Returns a *ThrownValue-wrapped error on failure,
// matching every other fallible VM operation.
func (vm *VM) getProperty(objVal, keyVal value.Value) (value.Value, error) {
	if objVal.IsNullish() {
		s, _ := vm.ToDisplayString(keyVal)
		exn, err := vm.typeError("Cannot read properties of %s (reading '%s')", vm.TypeofString(objVal), s)
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	if !objVal.IsHeapRef() {
		return value.Undefined, nil // primitive receivers: no boxed-wrapper prototypes wired yet
	}
	objIdx := objVal.AsHeapRef()
	cell := vm.Arena.Get(objIdx)
	obj, isObj := cell.(*object.Object)
	if !isObj {
		// String/number primitives have no property-pair storage of their
		// own; `.length` on a string is the one case common enough to
		// special-case here rather than leave for the builtins layer's
		// eventual String.prototype wrapper objects.
		if hs, isStr := cell.(*strtab.HeapString); isStr && keyVal == vm.names.length {
			n, err := value.SmallInt(int32(hs.CodeUnitLength()))
			return n, err
		}
		return value.Undefined, nil
	}
	if obj.Flags().Has(object.ObjFastArray) {
		if i, isIdx := smallArrayIndex(vm, keyVal); isIdx {
			if v, found := vm.Objects.GetElement(objIdx, i); found {
				return v, nil
			}
			return value.Undefined, nil
		}
	}
	slot, owner, found := vm.Objects.GetProperty(objIdx, keyVal, maxPrototypeDepth)
	if !found {
		return value.Undefined, nil
	}
	if slot.Flags.Has(object.FlagIsAccessor) {
		if slot.Getter.IsNull() {
			return value.Undefined, nil
		}
		return vm.callValue(value.HeapRef(slot.Getter), objVal, nil, value.Undefined)
	}
	_ = owner
	return slot.Data, nil
}

// setProperty implements a simplified [[Set]]: own-property accessor
// dispatch, otherwise a direct own-property write (it does not walk the
// prototype chain to find an inherited accessor/non-writable data
// property before falling back to an own write, a known simplification).
func (vm *VM) setProperty(objVal, keyVal, val value.Value) error {
	if objVal.IsNullish() {
		exn, err := vm.typeError("Cannot set properties of %s", vm.TypeofString(objVal))
		if err != nil {
			return err
		}
		return &ThrownValue{Value: exn}
	}
	if !objVal.IsHeapRef() {
		return nil // writes to primitive receivers are silently ignored, sloppy-mode semantics
	}
	objIdx := objVal.AsHeapRef()
	obj, isObj := vm.Arena.Get(objIdx).(*object.Object)
	if !isObj {
		return nil // strings/numbers have no own property storage; sloppy-mode write is a no-op
	}
	if obj.Flags().Has(object.ObjFastArray) {
		if i, isIdx := smallArrayIndex(vm, keyVal); isIdx {
			if escaped := vm.Objects.SetElement(objIdx, i, val); !escaped {
				return nil
			}
		}
	}
	if slot, ok := vm.Objects.GetOwnProperty(objIdx, keyVal); ok && slot.Flags.Has(object.FlagIsAccessor) {
		if slot.Setter.IsNull() {
			return nil
		}
		_, err := vm.callValue(value.HeapRef(slot.Setter), objVal, []value.Value{val}, value.Undefined)
		return err
	}
	flags := object.FlagWritable | object.FlagEnumerable | object.FlagConfigurable | object.FlagValueDefined
	return vm.Objects.DefineOwnDataProperty(objIdx, keyVal, val, flags)
}

// smallArrayIndex reports whether key names a non-negative array index,
// letting OpGetProperty/OpSetProperty take the ArrayData fast path for
// computed numeric access (`arr[i]`) the way OpGetPropertyLit never needs
// to, since a literal property name is never an index.
func smallArrayIndex(vm *VM, key value.Value) (int, bool) {
	if key.IsSmallInt() {
		n := key.AsSmallInt()
		if n >= 0 {
			return int(n), true
		}
		return 0, false
	}
	return 0, false
}

func (vm *VM) deleteProperty(objVal, keyVal value.Value) (bool, error) {
	if !objVal.IsHeapRef() {
		return true, nil
	}
	objIdx := objVal.AsHeapRef()
	obj, isObj := vm.Arena.Get(objIdx).(*object.Object)
	if !isObj {
		return true, nil // strings/numbers have no own property storage to delete from
	}
	if obj.Flags().Has(object.ObjFastArray) {
		if i, isIdx := smallArrayIndex(vm, keyVal); isIdx {
			vm.Objects.SetElement(objIdx, i, value.Empty)
			return true, nil
		}
	}
	return vm.Objects.DeleteOwnProperty(objIdx, keyVal), nil
}

// getBinding resolves name through the environment chain starting at
// env. An unresolved name is a ReferenceError; a resolved-but-not-yet-
// initialized let/const binding currently reads as undefined rather than
// throwing the TDZ ReferenceError ECMA-262 requires (documented gap:
// env.Record carries no per-binding "has TDZ" distinct from "not
// created").
func (vm *VM) getBinding(envIdx heap.Index, name value.Value) (value.Value, error) {
	_, v, _, found := vm.Envs.Resolve(envIdx, name, vm.MaxEnvDepth)
	if !found {
		s, _ := vm.ToDisplayString(name)
		exn, err := vm.referenceError("%s is not defined", s)
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	return v, nil
}

// resolveThis walks env outward to the nearest record that binds a
// `this` value (function-scope records; arrow functions deliberately
// never set HasThis on their own record, so `this` inside an arrow
// resolves to whichever enclosing ordinary function or the global
// record bound it).
func (vm *VM) resolveThis(envIdx heap.Index) value.Value {
	cur := envIdx
	for i := 0; !cur.IsNull() && i < vm.MaxEnvDepth; i++ {
		rec := vm.Arena.Get(cur).(*env.Record)
		if rec.HasThis {
			return rec.ThisValue
		}
		cur = rec.Outer
	}
	return value.Undefined
}

func (vm *VM) setBinding(envIdx heap.Index, name, v value.Value) error {
	found, mutable := vm.Envs.ResolveBinding(envIdx, name, v, vm.MaxEnvDepth)
	if !found {
		// Sloppy-mode implicit global creation (ECMA-262 PutValue step for
		// an unresolvable reference in non-strict code).
		rec := vm.Arena.Get(vm.GlobalEnv).(*env.Record)
		rec.CreateBinding(name, true)
		rec.InitializeBinding(name, v)
		return nil
	}
	if !mutable {
		s, _ := vm.ToDisplayString(name)
		exn, err := vm.typeError("Assignment to constant variable '%s'", s)
		if err != nil {
			return err
		}
		return &ThrownValue{Value: exn}
	}
	return nil
}
