// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package builtins installs the ECMA-262 intrinsic objects (Object,
// Array, Function, Error and its subtypes, the global parse/coercion
// functions, Atomics) onto a freshly constructed vm.VM - spec.md
// section 4.7's "routine handlers" layer, L11 of the module map.
//
// Every routine here is registered through vm.RegisterNative/DefineMethod
// rather than hand-built bytecode, matching spec.md's "Every built-in
// object stores a compact (builtin-id, routine-id) pair" (the full
// per-builtin-id table is approximated as a single flat routine slice,
// same simplification vm.VM.natives already documents).
package builtins

import (
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

// Config selects which builtin groups Install wires up, mirroring
// cmd/cie/indexing_config.go's pattern of small independently toggled
// bool fields with YAML tags so an embedder can trim an unneeded group
// (e.g. Atomics) out of a size-constrained build.
type Config struct {
	Array   bool `yaml:"array"`
	Errors  bool `yaml:"errors"`
	Global  bool `yaml:"global"`
	Atomics bool `yaml:"atomics"`
}

// DefaultConfig enables every builtin group.
func DefaultConfig() Config {
	return Config{Array: true, Errors: true, Global: true, Atomics: true}
}

// Install bootstraps the intrinsic prototypes on v (ObjectProto,
// FunctionProto, ArrayProto, ErrorProto, GlobalObject) and then wires in
// whichever groups cfg enables. It must run before any user bytecode,
// since RunProgram/Call assume the prototypes are already non-null.
func Install(v *vm.VM, objects *object.Store, cfg Config) error {
	if err := installIntrinsicPrototypes(v, objects); err != nil {
		return err
	}
	if cfg.Global {
		if err := installGlobalFunctions(v); err != nil {
			return err
		}
		if err := installObjectBuiltin(v, objects); err != nil {
			return err
		}
	}
	if cfg.Array {
		if err := installArrayBuiltin(v, objects); err != nil {
			return err
		}
	}
	if cfg.Errors {
		if err := installErrorBuiltins(v); err != nil {
			return err
		}
	}
	if cfg.Atomics {
		if err := installAtomics(v); err != nil {
			return err
		}
	}
	return nil
}

func installIntrinsicPrototypes(v *vm.VM, objects *object.Store) error {
	objectProto, err := objects.Arena.Alloc(object.NewObject(object.KindPlain, heap.NullIndex))
	if err != nil {
		return err
	}
	v.ObjectProto = objectProto

	functionProto, err := objects.Arena.Alloc(object.NewObject(object.KindFunction, objectProto))
	if err != nil {
		return err
	}
	objects.Arena.Get(functionProto).(*object.Object).SetFlag(object.ObjIsCallable)
	objects.Arena.Get(functionProto).(*object.Object).Extra = &object.FunctionData{
		Code: heap.NullIndex, Closure: heap.NullIndex, BuiltinID: -1, RoutineID: -1,
		HomeObject: heap.NullIndex, BoundTarget: heap.NullIndex,
	}
	v.FunctionProto = functionProto

	arrayProto, err := objects.Arena.Alloc(object.NewObject(object.KindArray, objectProto))
	if err != nil {
		return err
	}
	v.ArrayProto = arrayProto

	errorProto, err := objects.Arena.Alloc(object.NewObject(object.KindPlain, objectProto))
	if err != nil {
		return err
	}
	v.ErrorProto = errorProto

	globalObj, err := objects.Arena.Alloc(object.NewObject(object.KindPlain, objectProto))
	if err != nil {
		return err
	}
	v.GlobalObject = globalObj
	return nil
}

// argOr returns args[i] if present, else value.Undefined - the common
// "missing trailing argument coerces to undefined" shape every routine
// handler below needs.
func argOr(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Undefined
}
