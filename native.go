// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package jjs

import (
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

// GoFunc is a host function exposed to script through NewNativeFunction,
// the public-API analogue of vm.NativeFunc that trades the internal
// value.Value wire type for the embedder-facing Value wrapper.
type GoFunc func(ctx *Context, this Value, args []Value) (Value, error)

// NewNativeFunction wraps fn as a callable Value, for embedder code
// (a module loader's require(), a host-provided API) that needs to hand
// script a function backed by Go rather than by bytecode.
func (c *Context) NewNativeFunction(fn GoFunc) (Value, error) {
	raw, err := c.VM.NewNativeFunctionValue(func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		wrapped := make([]Value, len(args))
		for i, a := range args {
			wrapped[i] = c.wrap(a)
		}
		result, err := fn(c, c.wrap(this), wrapped)
		if err != nil {
			return value.Undefined, err
		}
		return result.raw, nil
	}, false)
	if err != nil {
		return Value{}, err
	}
	return c.wrap(raw), nil
}
