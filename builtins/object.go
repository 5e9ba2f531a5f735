// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"strconv"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

func installObjectBuiltin(v *vm.VM, objects *object.Store) error {
	if err := v.DefineMethod(v.ObjectProto, "hasOwnProperty", objectHasOwnProperty(objects)); err != nil {
		return err
	}
	if err := v.DefineMethod(v.ObjectProto, "toString", objectToString()); err != nil {
		return err
	}
	if err := v.DefineMethod(v.ObjectProto, "isPrototypeOf", objectIsPrototypeOf()); err != nil {
		return err
	}

	ctorVal, err := v.NewNativeFunctionValue(objectConstructor(objects), true)
	if err != nil {
		return err
	}
	ctorIdx := ctorVal.AsHeapRef()
	protoName, err := v.NewJSString("prototype")
	if err != nil {
		return err
	}
	if err := objects.DefineOwnDataProperty(ctorIdx, protoName, value.HeapRef(v.ObjectProto), object.FlagValueDefined); err != nil {
		return err
	}
	if err := v.DefineMethod(ctorIdx, "keys", objectKeys(objects)); err != nil {
		return err
	}
	if err := v.DefineMethod(ctorIdx, "values", objectValues(objects)); err != nil {
		return err
	}
	if err := v.DefineMethod(ctorIdx, "assign", objectAssign(objects, v)); err != nil {
		return err
	}
	if err := v.DefineMethod(ctorIdx, "freeze", objectFreeze(objects)); err != nil {
		return err
	}
	if err := v.DefineMethod(ctorIdx, "isFrozen", objectIsFrozen(objects)); err != nil {
		return err
	}
	return v.DefineGlobalValue("Object", ctorVal)
}

func objectConstructor(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if len(args) > 0 && args[0].IsHeapRef() {
			return args[0], nil
		}
		idx, err := objects.Arena.Alloc(object.NewObject(object.KindPlain, vctx.ObjectProto))
		if err != nil {
			return value.Undefined, err
		}
		return value.HeapRef(idx), nil
	}
}

func objectHasOwnProperty(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if !this.IsHeapRef() {
			return value.Bool(false), nil
		}
		key, err := vctx.ToDisplayString(argOr(args, 0))
		if err != nil {
			return value.Undefined, err
		}
		nameVal, err := vctx.NewJSString(key)
		if err != nil {
			return value.Undefined, err
		}
		_, ok := objects.GetOwnProperty(this.AsHeapRef(), nameVal)
		return value.Bool(ok), nil
	}
}

func objectToString() vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if this.IsNull() {
			return vctx.NewJSString("[object Null]")
		}
		if this.IsUndefined() {
			return vctx.NewJSString("[object Undefined]")
		}
		return vctx.NewJSString("[object Object]")
	}
}

func objectIsPrototypeOf() vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		target := argOr(args, 0)
		if !this.IsHeapRef() || !target.IsHeapRef() {
			return value.Bool(false), nil
		}
		proto := this.AsHeapRef()
		cur := vctx.Arena.Get(target.AsHeapRef()).(*object.Object).Prototype
		for i := 0; !cur.IsNull() && i < maxPrototypeWalk; i++ {
			if cur == proto {
				return value.Bool(true), nil
			}
			cur = vctx.Arena.Get(cur).(*object.Object).Prototype
		}
		return value.Bool(false), nil
	}
}

const maxPrototypeWalk = 4096

func objectKeys(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		arg := argOr(args, 0)
		if !arg.IsHeapRef() {
			return vctx.NewFastArrayValue(nil)
		}
		names := ownEnumerableKeys(vctx, objects, arg.AsHeapRef())
		return vctx.NewFastArrayValue(names)
	}
}

func objectValues(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		arg := argOr(args, 0)
		if !arg.IsHeapRef() {
			return vctx.NewFastArrayValue(nil)
		}
		objIdx := arg.AsHeapRef()
		names := ownEnumerableKeys(vctx, objects, objIdx)
		vals := make([]value.Value, 0, len(names))
		for _, n := range names {
			if slot, ok := objects.GetOwnProperty(objIdx, n); ok {
				vals = append(vals, slot.Data)
			}
		}
		return vctx.NewFastArrayValue(vals)
	}
}

func objectAssign(objects *object.Store, v *vm.VM) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if len(args) == 0 || !args[0].IsHeapRef() {
			return argOr(args, 0), nil
		}
		target := args[0].AsHeapRef()
		for _, src := range args[1:] {
			if !src.IsHeapRef() {
				continue
			}
			srcIdx := src.AsHeapRef()
			for _, name := range objects.OwnPropertyNames(srcIdx) {
				slot, ok := objects.GetOwnProperty(srcIdx, name)
				if !ok {
					continue
				}
				flags := object.FlagWritable | object.FlagEnumerable | object.FlagConfigurable | object.FlagValueDefined
				if err := objects.DefineOwnDataProperty(target, name, slot.Data, flags); err != nil {
					return value.Undefined, err
				}
			}
		}
		return args[0], nil
	}
}

func objectFreeze(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		arg := argOr(args, 0)
		if !arg.IsHeapRef() {
			return arg, nil
		}
		objIdx := arg.AsHeapRef()
		obj := objects.Arena.Get(objIdx).(*object.Object)
		if obj.Flags().Has(object.ObjFastArray) {
			if err := objects.EscapeFastArray(objIdx); err != nil {
				return value.Undefined, err
			}
		}
		obj.SetExtensible(false)
		for _, name := range objects.OwnPropertyNames(objIdx) {
			slot, ok := objects.GetOwnProperty(objIdx, name)
			if !ok {
				continue
			}
			slot.Flags &^= object.FlagWritable | object.FlagConfigurable
			if err := objects.DefineOwnDataProperty(objIdx, name, slot.Data, slot.Flags); err != nil {
				return value.Undefined, err
			}
		}
		return arg, nil
	}
}

func objectIsFrozen(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		arg := argOr(args, 0)
		if !arg.IsHeapRef() {
			return value.Bool(true), nil
		}
		objIdx := arg.AsHeapRef()
		obj := objects.Arena.Get(objIdx).(*object.Object)
		if obj.IsExtensible() {
			return value.Bool(false), nil
		}
		for _, name := range objects.OwnPropertyNames(objIdx) {
			slot, ok := objects.GetOwnProperty(objIdx, name)
			if ok && (slot.Flags.Has(object.FlagWritable) || slot.Flags.Has(object.FlagConfigurable)) {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}
}

// ownEnumerableKeys returns objIdx's own enumerable keys as string
// Values, special-casing a still-fast array's numeric indices since
// those never go through the property-pair chain OwnPropertyNames walks.
func ownEnumerableKeys(vctx *vm.VM, objects *object.Store, objIdx heap.Index) []value.Value {
	obj := objects.Arena.Get(objIdx).(*object.Object)
	var names []value.Value
	if obj.Flags().Has(object.ObjFastArray) {
		data := obj.Extra.(*object.ArrayData)
		for i, el := range data.Elements {
			if el.IsEmpty() {
				continue
			}
			if s, err := vctx.NewJSString(strconv.Itoa(i)); err == nil {
				names = append(names, s)
			}
		}
	}
	return append(names, objects.OwnPropertyNames(objIdx)...)
}
