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

// installAtomics wires up an Atomics global whose operations are stubs:
// this engine has no SharedArrayBuffer and runs one Context per
// goroutine, so there is no shared memory for Atomics.add/wait/notify to
// operate on. Each method accepts the usual arguments and returns the
// zero value or false, matching the reference's own behavior on a build
// without the threading subsystem enabled.
func installAtomics(v *vm.VM) error {
	obj, err := v.Objects.Arena.Alloc(object.NewObject(object.KindPlain, v.ObjectProto))
	if err != nil {
		return err
	}
	methods := map[string]vm.NativeFunc{
		"add":      atomicsStubNumber(),
		"sub":      atomicsStubNumber(),
		"and":      atomicsStubNumber(),
		"or":       atomicsStubNumber(),
		"xor":      atomicsStubNumber(),
		"load":     atomicsStubNumber(),
		"store":    atomicsStubNumber(),
		"exchange": atomicsStubNumber(),
		"wait":     atomicsStubString("not-equal"),
		"notify":   atomicsStubNumber(),
		"isLockFree": func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
			return value.Bool(false), nil
		},
	}
	for name, fn := range methods {
		if err := v.DefineMethod(obj, name, fn); err != nil {
			return err
		}
	}
	return v.DefineGlobalValue("Atomics", value.HeapRef(obj))
}

func atomicsStubNumber() vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		zero, _ := value.SmallInt(0)
		return zero, nil
	}
}

func atomicsStubString(s string) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		return vctx.NewJSString(s)
	}
}
