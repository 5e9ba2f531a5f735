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
	"fmt"

	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
)

// protectedEnd returns the offset up to which h's TryStart..TryEnd range
// should be treated as "this handler may intercept an exception here".
// bytecode.Handler.TryEnd (set by Builder.LeaveTry) spans the try block
// *and* its catch/finally bodies, since the parser only knows the whole
// construct's end when it finishes emitting the last of the three; using
// it directly would let an exception thrown from inside the catch block
// re-enter its own catch. Re-deriving the tighter bound from whichever
// of CatchIP/FinallyIP comes first avoids that without needing any
// change to what the parser emits.
func protectedEnd(h bytecode.Handler) int {
	if h.CatchIP != bytecode.NoIP {
		return h.CatchIP
	}
	if h.FinallyIP != bytecode.NoIP {
		return h.FinallyIP
	}
	return h.TryEnd
}

// findHandler returns the innermost handler covering ip, skipping index
// excludeIdx (used when re-dispatching a finally-without-catch's
// rethrow, so the same handler doesn't catch its own escaping
// exception).
func findHandler(bc *bytecode.Bytecode, ip, excludeIdx int) (bytecode.Handler, int, bool) {
	best := -1
	bestWidth := int(^uint(0) >> 1)
	for i, h := range bc.Handlers {
		if i == excludeIdx {
			continue
		}
		end := protectedEnd(h)
		if ip < h.TryStart || ip >= end {
			continue
		}
		if width := end - h.TryStart; width < bestWidth {
			bestWidth = width
			best = i
		}
	}
	if best < 0 {
		return bytecode.Handler{}, -1, false
	}
	return bc.Handlers[best], best, true
}

// newError allocates a minimal plain object carrying `name` and
// `message` data properties, marked as a thrown exception. It does not
// chain to an Error.prototype (there is none yet - constructing the
// intrinsic prototypes and %Error% constructors is the builtins
// package's job); this gives the interpreter a working, inspectable
// exception value in the meantime.
func (vm *VM) newError(name, message string) (value.Value, error) {
	idx, err := vm.Objects.Arena.Alloc(object.NewObject(object.KindError, vm.ErrorProto))
	if err != nil {
		return value.Undefined, err
	}
	nameVal, err := vm.NewJSString(name)
	if err != nil {
		return value.Undefined, err
	}
	msgVal, err := vm.NewJSString(message)
	if err != nil {
		return value.Undefined, err
	}
	flags := object.FlagWritable | object.FlagConfigurable | object.FlagValueDefined
	if err := vm.Objects.DefineOwnDataProperty(idx, vm.names.name, nameVal, flags); err != nil {
		return value.Undefined, err
	}
	if err := vm.Objects.DefineOwnDataProperty(idx, vm.names.message, msgVal, flags); err != nil {
		return value.Undefined, err
	}
	return value.HeapRef(idx).WithError(), nil
}

func (vm *VM) typeError(format string, args ...any) (value.Value, error) {
	return vm.newError("TypeError", fmt.Sprintf(format, args...))
}

func (vm *VM) referenceError(format string, args ...any) (value.Value, error) {
	return vm.newError("ReferenceError", fmt.Sprintf(format, args...))
}

// dispatchException searches f's handler table starting at ip for a
// handler that can intercept exn. If it finds a catch, it resets the
// operand stack, pushes exn, and jumps IP to the catch body. If it finds
// a catch-less finally, it records a pendingFinally so the interpreter
// loop knows to resume unwinding once the finally body falls through.
// firstExclude skips one handler on the first probe only, used when
// re-raising a finally-without-catch's carried exception so it doesn't
// re-enter the same finally.
func (vm *VM) dispatchException(f *Frame, ip int, exn value.Value, firstExclude int) bool {
	exclude := firstExclude
	for {
		h, idx, ok := findHandler(f.Code, ip, exclude)
		if !ok {
			return false
		}
		if h.CatchIP != bytecode.NoIP {
			f.Stack = f.Stack[:0]
			f.Stack = append(f.Stack, exn)
			f.IP = h.CatchIP
			return true
		}
		if h.FinallyIP != bytecode.NoIP {
			f.Stack = f.Stack[:0]
			f.pending = &pendingFinally{resumeAt: h.TryEnd, searchFrom: h.TryStart, excludeHandler: idx, value: exn}
			f.IP = h.FinallyIP
			return true
		}
		exclude = idx
	}
}

// handleOpError folds an opcode's (possibly-thrown) error into the
// dispatch loop's control flow: a *ThrownValue first tries a local
// handler via dispatchException (continue is true if caught); anything
// else, or an uncaught ThrownValue, must propagate out of execFrame.
func (vm *VM) handleOpError(f *Frame, ip int, err error) (cont bool, retVal value.Value, retErr error) {
	exn, ok := AsThrown(err)
	if !ok {
		return false, value.Undefined, err
	}
	if vm.dispatchException(f, ip, exn, -1) {
		return true, value.Undefined, nil
	}
	return false, exn, err
}
