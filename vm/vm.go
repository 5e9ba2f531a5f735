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
	"log/slog"

	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/port"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

// DefaultMaxCallDepth bounds recursive vm.execFrame nesting (each JS call
// frame is one Go call frame here), standing in for VM_STACK_LIMIT
// (spec.md section 4.6) since this implementation has no separate
// contiguous frame array to size directly.
const DefaultMaxCallDepth = 768

// DefaultHaltInterval is how many dispatched instructions elapse between
// halt-callback checks (spec.md section 4.6: "checked every N bytecodes
// (default 16)").
const DefaultHaltInterval = 16

// commonNames caches interned Values for property names the interpreter
// itself reads or writes (as opposed to names appearing in user source,
// which arrive pre-interned through the bytecode literal pool).
type commonNames struct {
	name       value.Value
	message    value.Value
	prototype  value.Value
	length     value.Value
	constructor value.Value
}

// VM interprets bytecode.Bytecode against one heap.Arena, threading
// through the object/environment/string subsystems spec.md layers L6-L9
// build (the VM itself is L10). One VM is bound to one engine Context's
// worth of shared state; callers needing isolated execution construct a
// separate Arena/Store/InternSet/VM.
type VM struct {
	Arena    *heap.Arena
	Objects  *object.Store
	Interner *strtab.InternSet
	Envs     *env.Chain

	GlobalEnv    heap.Index
	GlobalObject heap.Index

	ObjectProto   heap.Index
	FunctionProto heap.Index
	ArrayProto    heap.Index
	ErrorProto    heap.Index
	PromiseProto  heap.Index // NullIndex until the job package installs it

	Logger *slog.Logger
	Port   port.Port // nil unless the embedding Context wires one; consulted by unreachable()

	MaxCallDepth int
	HaltInterval int
	HaltFn       func() bool         // spec.md 4.6 "halt callback"; nil disables
	ThrowFn      func(value.Value)   // spec.md 4.6 "throw callback"; nil disables
	MaxEnvDepth  int                 // bound on env.Chain walks, guards a malformed/cyclic chain

	natives   []NativeFunc
	codeCells map[*bytecode.Bytecode]heap.Index

	callDepth    int
	steps        int
	currentFrame *Frame // top of the call-frame chain; nil between RunProgram/Call invocations

	names commonNames
}

// NativeFunc is a Go-implemented callable, the routine-table entry
// spec.md section 4.7 describes ("Routine handlers receive the current-
// context, this-value, argv, argc, and return an ECMA value"). The
// (builtin-id, routine-id) pair the spec calls for is approximated here
// as a single index into VM.natives; the full per-builtin dispatch table
// is the builtins package's job, not yet built.
type NativeFunc func(vm *VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error)

// New constructs a VM over an already-initialized heap/object/env/string
// subsystem. Prototype indices may be heap.NullIndex if the caller has
// not yet bootstrapped intrinsics (tests commonly do this; the public
// jjs API wires real prototypes before running user code).
func New(arena *heap.Arena, objects *object.Store, interner *strtab.InternSet, envs *env.Chain, logger *slog.Logger) (*VM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	vm := &VM{
		Arena:        arena,
		Objects:      objects,
		Interner:     interner,
		Envs:         envs,
		Logger:       logger,
		MaxCallDepth: DefaultMaxCallDepth,
		HaltInterval: DefaultHaltInterval,
		MaxEnvDepth:  4096,
		codeCells:    make(map[*bytecode.Bytecode]heap.Index),
	}
	globalEnv, err := envs.NewChild(env.KindGlobal, heap.NullIndex)
	if err != nil {
		return nil, err
	}
	vm.GlobalEnv = globalEnv

	names := []string{"name", "message", "prototype", "length", "constructor"}
	vals := make([]value.Value, len(names))
	for i, n := range names {
		v, err := interner.InternString(n)
		if err != nil {
			return nil, err
		}
		vals[i] = value.HeapRef(v)
	}
	vm.names = commonNames{name: vals[0], message: vals[1], prototype: vals[2], length: vals[3], constructor: vals[4]}
	return vm, nil
}

// RegisterNative appends fn to the native routine table and returns its
// routine ID, without binding it to any name - the primitive the
// builtins package uses to install methods onto an intrinsic prototype
// object (as opposed to a global binding; see DefineNative).
func (vm *VM) RegisterNative(fn NativeFunc) int {
	routineID := len(vm.natives)
	vm.natives = append(vm.natives, fn)
	return routineID
}

// NewNativeFunctionValue wraps fn as a callable heap object, constructable
// controlling whether `new` is permitted on it (true for e.g. Array/Error).
func (vm *VM) NewNativeFunctionValue(fn NativeFunc, constructable bool) (value.Value, error) {
	routineID := vm.RegisterNative(fn)
	idx, err := vm.Objects.NewNativeFunction(vm.FunctionProto, nativeBuiltinID, routineID, constructable)
	if err != nil {
		return value.Undefined, err
	}
	return value.HeapRef(idx), nil
}

// DefineMethod installs fn as a non-enumerable own method named name on
// the object at objIdx (spec.md's usual shape for intrinsic prototype
// methods: writable and configurable, not enumerable).
func (vm *VM) DefineMethod(objIdx heap.Index, name string, fn NativeFunc) error {
	nameVal, err := vm.NewJSString(name)
	if err != nil {
		return err
	}
	fnVal, err := vm.NewNativeFunctionValue(fn, false)
	if err != nil {
		return err
	}
	flags := object.FlagWritable | object.FlagConfigurable | object.FlagValueDefined
	return vm.Objects.DefineOwnDataProperty(objIdx, nameVal, fnVal, flags)
}

// DefineNative registers fn as a callable native function object bound
// to name in the global environment record, used by hosts (and tests)
// to seed globals before a script runs.
func (vm *VM) DefineNative(name string, fn NativeFunc) (heap.Index, error) {
	fnVal, err := vm.NewNativeFunctionValue(fn, false)
	if err != nil {
		return heap.NullIndex, err
	}
	nameVal, err := vm.NewJSString(name)
	if err != nil {
		return heap.NullIndex, err
	}
	rec := vm.Arena.Get(vm.GlobalEnv).(*env.Record)
	rec.CreateBinding(nameVal, true)
	rec.InitializeBinding(nameVal, fnVal)
	return fnVal.AsHeapRef(), nil
}

// DefineGlobalValue binds an already-constructed value (e.g. a
// constructor function that also needs DefineMethod calls for its
// static methods before being exposed) to name in the global
// environment record.
func (vm *VM) DefineGlobalValue(name string, v value.Value) error {
	nameVal, err := vm.NewJSString(name)
	if err != nil {
		return err
	}
	rec := vm.Arena.Get(vm.GlobalEnv).(*env.Record)
	rec.CreateBinding(nameVal, true)
	rec.InitializeBinding(nameVal, v)
	return nil
}

// Roots returns the conservative GC root set for this VM: the global
// object and environment, every intrinsic prototype, and every interned
// string - every Index reachable independent of whatever call frame, if
// any, is currently on the Go stack. Callers must only invoke Collect
// between top-level turns (after RunProgram/Call has returned), since
// Roots does not walk currentFrame's live registers or environment
// chain; a mid-execution collection would reclaim values a suspended
// frame still holds.
func (vm *VM) Roots() []heap.Index {
	roots := []heap.Index{vm.GlobalObject, vm.GlobalEnv, vm.ObjectProto, vm.FunctionProto, vm.ArrayProto, vm.ErrorProto, vm.PromiseProto}
	roots = append(roots, vm.Interner.Roots()...)
	out := roots[:0]
	for _, r := range roots {
		if r != heap.NullIndex {
			out = append(out, r)
		}
	}
	return out
}

// nativeBuiltinID marks a FunctionData as dispatching through vm.natives
// rather than a full builtins-package routine table; the builtins
// package reserves its own positive BuiltinID range and does not use 0.
const nativeBuiltinID = 0

// codeIndex returns (allocating and caching on first sight) the heap
// Index of bc as a heap.Cell, so repeated evaluation of the same
// function-expression literal (e.g. inside a loop) doesn't re-box
// identical, immutable bytecode each time (spec.md section 3,
// "Lifecycles": a Bytecode object is shared by every closure over it).
func (vm *VM) codeIndex(bc *bytecode.Bytecode) (heap.Index, error) {
	if idx, ok := vm.codeCells[bc]; ok {
		return idx, nil
	}
	idx, err := vm.Arena.Alloc(bc)
	if err != nil {
		return heap.NullIndex, err
	}
	vm.codeCells[bc] = idx
	return idx, nil
}

// RunProgram hoists top-level `var`s into the global environment record
// and executes bc as a top-level script (spec.md section 4.9's `parse`
// + `run` path, minus the public API's handle/ownership wrapping).
func (vm *VM) RunProgram(bc *bytecode.Bytecode, thisVal value.Value) (value.Value, error) {
	if err := vm.hoistVars(bc, vm.GlobalEnv); err != nil {
		return value.Undefined, err
	}
	rec := vm.Arena.Get(vm.GlobalEnv).(*env.Record)
	rec.HasThis = true
	rec.ThisValue = thisVal
	f := newFrame(bc, vm.GlobalEnv, thisVal, value.Undefined, heap.NullIndex, nil)
	return vm.execFrame(f)
}

func (vm *VM) hoistVars(bc *bytecode.Bytecode, envIdx heap.Index) error {
	rec := vm.Arena.Get(envIdx).(*env.Record)
	for _, lit := range bc.HoistedVars {
		name := bc.Literals[lit]
		if rec.HasBinding(name) {
			continue
		}
		rec.CreateBinding(name, true)
		rec.InitializeBinding(name, value.Undefined)
	}
	return nil
}
