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
	"fmt"

	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
)

// Value is a handle to an engine value, scoped to the Context that
// produced it - the public-API wrapper around the internal tagged
// value.Value word (spec.md section 4.9's jjs_value_t equivalent).
// The zero Value is not valid; use Context.Undefined/Null/Eval/Call etc.
// to obtain one.
type Value struct {
	ctx *Context
	raw value.Value
}

// Raw exposes the underlying tagged value word for code in the same
// module (job, module, engine/metrics) that needs to pass a Value
// through to the vm/object/heap layers directly.
func (v Value) Raw() value.Value { return v.raw }

func (v Value) IsUndefined() bool { return v.raw.IsUndefined() }
func (v Value) IsNull() bool      { return v.raw.IsNull() }
func (v Value) IsObject() bool    { return v.raw.IsHeapRef() }

// ToString applies ECMAScript ToString.
func (v Value) ToString() (string, error) {
	return v.ctx.VM.ToDisplayString(v.raw)
}

// ToNumber applies ECMAScript ToNumber.
func (v Value) ToNumber() (float64, error) {
	return v.ctx.VM.ToNumber(v.raw)
}

// ToBoolean applies ECMAScript ToBoolean.
func (v Value) ToBoolean() bool {
	return v.ctx.VM.ToBoolean(v.raw)
}

// Undefined returns the context-scoped undefined value.
func (c *Context) Undefined() Value { return c.wrap(value.Undefined) }

// Null returns the context-scoped null value.
func (c *Context) Null() Value { return c.wrap(value.Null) }

// Bool wraps a Go bool as a Value.
func (c *Context) Bool(b bool) Value { return c.wrap(value.Bool(b)) }

// String allocates a new JS string Value from s.
func (c *Context) String(s string) (Value, error) {
	v, err := c.VM.NewJSString(s)
	if err != nil {
		return Value{}, err
	}
	return c.wrap(v), nil
}

// Number allocates a new JS number Value from f, boxing it on the heap
// only if f does not fit the small-integer immediate encoding.
func (c *Context) Number(f float64) (Value, error) {
	v, err := value.Number(c.Arena, f)
	if err != nil {
		return Value{}, err
	}
	return c.wrap(v), nil
}

// NewObject allocates a new plain object (prototype Object.prototype),
// for embedder code that needs to build up a result or a module's
// exports object property by property from Go.
func (c *Context) NewObject() (Value, error) {
	obj := object.NewObject(object.KindPlain, c.VM.ObjectProto)
	idx, err := c.Arena.Alloc(obj)
	if err != nil {
		return Value{}, err
	}
	return c.wrap(value.HeapRef(idx)), nil
}

// DefineDataProperty defines name as a data property on v with flags,
// the public-API entry point over object.Store.DefineOwnDataProperty.
func (v Value) DefineDataProperty(name string, val Value, flags object.PropFlags) error {
	if !v.raw.IsHeapRef() {
		return fmt.Errorf("jjs: DefineDataProperty(%q) on a non-object value", name)
	}
	key, err := v.ctx.VM.NewJSString(name)
	if err != nil {
		return err
	}
	return v.ctx.Objects.DefineOwnDataProperty(v.raw.AsHeapRef(), key, val.raw, flags)
}

// GetProperty reads name as an own property of v, reporting whether it
// was found.
func (v Value) GetProperty(name string) (Value, bool) {
	if !v.raw.IsHeapRef() {
		return Value{}, false
	}
	key, err := v.ctx.VM.NewJSString(name)
	if err != nil {
		return Value{}, false
	}
	slot, ok := v.ctx.Objects.GetOwnProperty(v.raw.AsHeapRef(), key)
	if !ok {
		return Value{}, false
	}
	return v.ctx.wrap(slot.Data), true
}
