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
	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
)

// callValue implements the abstract Call operation: calleeVal must be a
// callable object; args are positional argument values. this is bound
// per the caller's calling convention - member-expression calls in this
// implementation do not yet thread their receiver through OpCall (a
// documented gap; see DESIGN.md), so this is usually value.Undefined
// except where callValue is invoked directly from a getter/setter/native
// dispatch that already knows its receiver.
func (vm *VM) callValue(calleeVal, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	return vm.callValueFrom(calleeVal, this, args, newTarget, nil)
}

// callValueFrom is callValue with an explicit caller frame, threaded
// through so a bytecode-to-bytecode call chain is visible to
// CaptureBacktrace; caller is nil for calls originating outside any
// running frame (host/builtins Call/Construct entry points).
func (vm *VM) callValueFrom(calleeVal, this value.Value, args []value.Value, newTarget value.Value, caller *Frame) (value.Value, error) {
	if !calleeVal.IsHeapRef() {
		exn, err := vm.typeError("value is not a function")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	fnIdx := calleeVal.AsHeapRef()
	obj, ok := vm.Arena.Get(fnIdx).(*object.Object)
	if !ok || !obj.Flags().Has(object.ObjIsCallable) {
		exn, err := vm.typeError("value is not a function")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	if !newTarget.IsUndefined() && !obj.Flags().Has(object.ObjIsConstructor) {
		exn, err := vm.typeError("value is not a constructor")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	fd := obj.Extra.(*object.FunctionData)

	if obj.ObjectKind() == object.KindBoundFunction {
		merged := make([]value.Value, 0, len(fd.BoundArgs)+len(args))
		merged = append(merged, fd.BoundArgs...)
		merged = append(merged, args...)
		return vm.callValueFrom(value.HeapRef(fd.BoundTarget), fd.BoundThis, merged, newTarget, caller)
	}

	if fd.IsNative() {
		if fd.RoutineID < 0 || fd.RoutineID >= len(vm.natives) {
			return value.Undefined, ErrNotCallable
		}
		return vm.natives[fd.RoutineID](vm, this, args, newTarget)
	}

	bc := vm.Arena.Get(fd.Code).(*bytecode.Bytecode)
	callEnv, err := vm.Envs.NewChild(env.KindFunction, fd.Closure)
	if err != nil {
		return value.Undefined, err
	}
	if err := vm.bindParams(bc, callEnv, args); err != nil {
		return value.Undefined, err
	}
	if err := vm.hoistVars(bc, callEnv); err != nil {
		return value.Undefined, err
	}
	rec := vm.Arena.Get(callEnv).(*env.Record)
	if !fd.IsArrow {
		rec.HasThis = true
		rec.ThisValue = this
		rec.NewTargetVal = newTarget
	}
	f := newFrame(bc, callEnv, this, newTarget, fnIdx, caller)
	return vm.execFrame(f)
}

func (vm *VM) bindParams(bc *bytecode.Bytecode, envIdx heap.Index, args []value.Value) error {
	rec := vm.Arena.Get(envIdx).(*env.Record)
	for i, lit := range bc.ParamNames {
		name := bc.Literals[lit]
		var v value.Value
		if i < len(args) {
			v = args[i]
		} else {
			v = value.Undefined
		}
		rec.CreateBinding(name, true)
		rec.InitializeBinding(name, v)
	}
	return nil
}

// isConstructor reports whether calleeVal is a heap object flagged
// constructible, guarding Construct's property lookup against a panic on
// a string/number primitive masquerading as a heap ref (e.g. `new "x"()`).
func (vm *VM) isConstructor(calleeVal value.Value) bool {
	if !calleeVal.IsHeapRef() {
		return false
	}
	obj, ok := vm.Arena.Get(calleeVal.AsHeapRef()).(*object.Object)
	return ok && obj.Flags().Has(object.ObjIsConstructor)
}

// Call invokes a public, already-resolved function value with no
// specific `this` - the entry point the builtins/public-API layers use
// once they have a function Value in hand (e.g. invoking a user callback
// passed into Array.prototype.forEach).
func (vm *VM) Call(calleeVal value.Value, this value.Value, args []value.Value) (value.Value, error) {
	return vm.callValue(calleeVal, this, args, value.Undefined)
}

// Construct implements the abstract Construct operation (`new`):
// allocates a fresh ordinary object linked to the callee's "prototype"
// own property (falling back to ObjectProto), invokes the callee with
// that object as `this`, and returns the callee's own return value if it
// is an object, else the newly allocated one (ECMA-262 [[Construct]]
// ordinary-function semantics).
func (vm *VM) Construct(calleeVal value.Value, args []value.Value) (value.Value, error) {
	return vm.constructFrom(calleeVal, args, nil)
}

func (vm *VM) constructFrom(calleeVal value.Value, args []value.Value, caller *Frame) (value.Value, error) {
	if !vm.isConstructor(calleeVal) {
		exn, err := vm.typeError("value is not a constructor")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	proto := vm.ObjectProto
	if slot, ok := vm.Objects.GetOwnProperty(calleeVal.AsHeapRef(), vm.names.prototype); ok && slot.Data.IsHeapRef() {
		proto = slot.Data.AsHeapRef()
	}
	instIdx, err := vm.Arena.Alloc(object.NewObject(object.KindPlain, proto))
	if err != nil {
		return value.Undefined, err
	}
	instVal := value.HeapRef(instIdx)
	result, err := vm.callValueFrom(calleeVal, instVal, args, instVal, caller)
	if err != nil {
		return value.Undefined, err
	}
	if result.IsHeapRef() {
		if _, ok := vm.Arena.Get(result.AsHeapRef()).(*object.Object); ok {
			return result, nil
		}
	}
	return instVal, nil
}
