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
	"strings"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

func installArrayBuiltin(v *vm.VM, objects *object.Store) error {
	methods := map[string]vm.NativeFunc{
		"push":    arrayPush(objects),
		"pop":     arrayPop(objects),
		"forEach": arrayForEach(objects),
		"map":     arrayMap(objects),
		"join":    arrayJoin(objects),
	}
	for name, fn := range methods {
		if err := v.DefineMethod(v.ArrayProto, name, fn); err != nil {
			return err
		}
	}

	ctorVal, err := v.NewNativeFunctionValue(arrayConstructor(objects), true)
	if err != nil {
		return err
	}
	protoName, err := v.NewJSString("prototype")
	if err != nil {
		return err
	}
	if err := objects.DefineOwnDataProperty(ctorVal.AsHeapRef(), protoName, value.HeapRef(v.ArrayProto), object.FlagValueDefined); err != nil {
		return err
	}
	return v.DefineGlobalValue("Array", ctorVal)
}

// arrayConstructor mirrors ECMA-262's Array(...) overload: a single
// non-negative integer argument preallocates a hole-filled array of that
// length; any other argument list becomes the initial elements.
func arrayConstructor(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if len(args) == 1 {
			if n, err := vctx.ToNumber(args[0]); err == nil && n >= 0 && n == float64(int(n)) {
				idx, err := objects.NewFastArray(vctx.ArrayProto, int(n))
				if err != nil {
					return value.Undefined, err
				}
				return value.HeapRef(idx), nil
			}
		}
		return vctx.NewFastArrayValue(args)
	}
}

func arrayPush(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if !this.IsHeapRef() {
			zero, _ := value.SmallInt(0)
			return zero, nil
		}
		objIdx := this.AsHeapRef()
		length := fastArrayLen(objects, objIdx)
		for _, a := range args {
			if escaped := objects.SetElement(objIdx, length, a); escaped {
				break
			}
			length++
		}
		n, ok := value.SmallInt(int32(length))
		if !ok {
			return value.Number(vctx.Arena, float64(length))
		}
		return n, nil
	}
}

func arrayPop(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if !this.IsHeapRef() {
			return value.Undefined, nil
		}
		objIdx := this.AsHeapRef()
		length := fastArrayLen(objects, objIdx)
		if length == 0 {
			return value.Undefined, nil
		}
		v, ok := objects.GetElement(objIdx, length-1)
		data := objects.Arena.Get(objIdx).(*object.Object).Extra.(*object.ArrayData)
		data.Elements = data.Elements[:length-1]
		if !ok {
			return value.Undefined, nil
		}
		return v, nil
	}
}

func arrayForEach(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		cb := argOr(args, 0)
		if !this.IsHeapRef() {
			return value.Undefined, nil
		}
		objIdx := this.AsHeapRef()
		thisArg := argOr(args, 1)
		length := fastArrayLen(objects, objIdx)
		for i := 0; i < length; i++ {
			el, ok := objects.GetElement(objIdx, i)
			if !ok {
				continue
			}
			idxVal, _ := value.SmallInt(int32(i))
			if _, err := vctx.Call(cb, thisArg, []value.Value{el, idxVal, this}); err != nil {
				return value.Undefined, err
			}
		}
		return value.Undefined, nil
	}
}

func arrayMap(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		cb := argOr(args, 0)
		if !this.IsHeapRef() {
			return vctx.NewFastArrayValue(nil)
		}
		objIdx := this.AsHeapRef()
		thisArg := argOr(args, 1)
		length := fastArrayLen(objects, objIdx)
		out := make([]value.Value, 0, length)
		for i := 0; i < length; i++ {
			el, ok := objects.GetElement(objIdx, i)
			if !ok {
				out = append(out, value.Undefined)
				continue
			}
			idxVal, _ := value.SmallInt(int32(i))
			mapped, err := vctx.Call(cb, thisArg, []value.Value{el, idxVal, this})
			if err != nil {
				return value.Undefined, err
			}
			out = append(out, mapped)
		}
		return vctx.NewFastArrayValue(out)
	}
}

func arrayJoin(objects *object.Store) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if !this.IsHeapRef() {
			return vctx.NewJSString("")
		}
		objIdx := this.AsHeapRef()
		sep := ","
		if len(args) > 0 && !args[0].IsUndefined() {
			s, err := vctx.ToDisplayString(args[0])
			if err != nil {
				return value.Undefined, err
			}
			sep = s
		}
		length := fastArrayLen(objects, objIdx)
		parts := make([]string, length)
		for i := 0; i < length; i++ {
			el, ok := objects.GetElement(objIdx, i)
			if !ok || el.IsNull() || el.IsUndefined() {
				continue
			}
			s, err := vctx.ToDisplayString(el)
			if err != nil {
				return value.Undefined, err
			}
			parts[i] = s
		}
		return vctx.NewJSString(strings.Join(parts, sep))
	}
}

func fastArrayLen(objects *object.Store, objIdx heap.Index) int {
	obj := objects.Arena.Get(objIdx).(*object.Object)
	if data, ok := obj.Extra.(*object.ArrayData); ok {
		return data.Length()
	}
	return 0
}
