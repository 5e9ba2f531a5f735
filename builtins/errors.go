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
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

// errorKinds lists the Error subtypes exposed as globals. They share a
// single ErrorProto, same as vm.newError's internally thrown errors
// (exceptions.go): the distinguishing "name" property is set per
// instance at construction time rather than via a separate prototype
// chain per subtype.
var errorKinds = []string{"Error", "TypeError", "RangeError", "SyntaxError", "ReferenceError"}

func installErrorBuiltins(v *vm.VM) error {
	if err := v.DefineMethod(v.ErrorProto, "toString", errorToString()); err != nil {
		return err
	}
	protoName, err := v.NewJSString("prototype")
	if err != nil {
		return err
	}
	for _, kind := range errorKinds {
		ctorVal, err := v.NewNativeFunctionValue(errorConstructor(kind), true)
		if err != nil {
			return err
		}
		if err := v.Objects.DefineOwnDataProperty(ctorVal.AsHeapRef(), protoName, value.HeapRef(v.ErrorProto), object.FlagValueDefined); err != nil {
			return err
		}
		if err := v.DefineGlobalValue(kind, ctorVal); err != nil {
			return err
		}
	}
	return nil
}

// errorConstructor builds the native constructor for one Error subtype:
// `new TypeError("msg")` and `TypeError("msg")` behave identically,
// producing an object with own "name" and "message" data properties
// (ECMA-262's NativeError constructors, simplified).
func errorConstructor(kind string) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		idx, err := vctx.Arena.Alloc(object.NewObject(object.KindError, vctx.ErrorProto))
		if err != nil {
			return value.Undefined, err
		}
		nameKey, err := vctx.NewJSString("name")
		if err != nil {
			return value.Undefined, err
		}
		nameVal, err := vctx.NewJSString(kind)
		if err != nil {
			return value.Undefined, err
		}
		flags := object.FlagWritable | object.FlagConfigurable | object.FlagValueDefined
		if err := vctx.Objects.DefineOwnDataProperty(idx, nameKey, nameVal, flags); err != nil {
			return value.Undefined, err
		}
		if len(args) > 0 && !args[0].IsUndefined() {
			msg, err := vctx.ToDisplayString(args[0])
			if err != nil {
				return value.Undefined, err
			}
			msgKey, err := vctx.NewJSString("message")
			if err != nil {
				return value.Undefined, err
			}
			msgVal, err := vctx.NewJSString(msg)
			if err != nil {
				return value.Undefined, err
			}
			if err := vctx.Objects.DefineOwnDataProperty(idx, msgKey, msgVal, flags); err != nil {
				return value.Undefined, err
			}
		}
		return value.HeapRef(idx), nil
	}
}

func errorToString() vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if !this.IsHeapRef() {
			return vctx.NewJSString("Error")
		}
		nameKey, err := vctx.NewJSString("name")
		if err != nil {
			return value.Undefined, err
		}
		msgKey, err := vctx.NewJSString("message")
		if err != nil {
			return value.Undefined, err
		}
		name := "Error"
		if slot, ok := vctx.Objects.GetOwnProperty(this.AsHeapRef(), nameKey); ok {
			if s, err := vctx.ToDisplayString(slot.Data); err == nil {
				name = s
			}
		}
		message := ""
		if slot, ok := vctx.Objects.GetOwnProperty(this.AsHeapRef(), msgKey); ok {
			if s, err := vctx.ToDisplayString(slot.Data); err == nil {
				message = s
			}
		}
		if message == "" {
			return vctx.NewJSString(name)
		}
		return vctx.NewJSString(name + ": " + message)
	}
}
