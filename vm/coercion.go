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
	"strconv"
	"strings"

	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

// ToBoolean implements the abstract ToBoolean operation.
func (vm *VM) ToBoolean(v value.Value) bool {
	switch {
	case v.IsSmallInt():
		return v.AsSmallInt() != 0
	case v.IsBoolean():
		return v.AsBoolean()
	case v.IsNull(), v.IsUndefined(), v.IsEmpty(), v.IsNotFound():
		return false
	case v.IsHeapRef():
		cell := vm.Arena.Get(v.AsHeapRef())
		switch c := cell.(type) {
		case *value.NumberBox:
			return c.F != 0 && c.F == c.F // false for 0, -0, and NaN
		case *strtab.HeapString:
			return c.CodeUnitLength() > 0
		default:
			return true // every object, including empty objects and arrays, is truthy
		}
	}
	return true
}

// ToNumber implements a simplified abstract ToNumber: primitives convert
// directly; objects are not sent through [[ToPrimitive]]/valueOf yet
// (that needs the Call path wired to user-defined valueOf, a builtins-
// layer concern) and instead yield NaN, documented as a known gap.
func (vm *VM) ToNumber(v value.Value) (float64, error) {
	switch {
	case v.IsSmallInt():
		return float64(v.AsSmallInt()), nil
	case v.IsUndefined():
		return nan(), nil
	case v.IsNull(), v.IsEmpty():
		return 0, nil
	case v.IsBoolean():
		if v.AsBoolean() {
			return 1, nil
		}
		return 0, nil
	case v.IsHeapRef():
		cell := vm.Arena.Get(v.AsHeapRef())
		switch c := cell.(type) {
		case *value.NumberBox:
			return c.F, nil
		case *strtab.HeapString:
			s := strings.TrimSpace(strtab.DecodeCESU8(c.Bytes()))
			if s == "" {
				return 0, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nan(), nil
			}
			return f, nil
		default:
			return nan(), nil
		}
	}
	return nan(), nil
}

func nan() float64 { var z float64; return z / z }

// ToValueNumber boxes ToNumber's result back into a value.Value.
func (vm *VM) ToValueNumber(v value.Value) (value.Value, error) {
	f, err := vm.ToNumber(v)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, f)
}

// ToDisplayString implements a simplified abstract ToString, sufficient
// for string concatenation (OpAdd) and the `String(x)` coercion path;
// object stringification does not yet call a user Symbol.toPrimitive or
// toString/valueOf (builtins-layer concern), so objects print as
// "[object Object]"/"function" placeholders.
func (vm *VM) ToDisplayString(v value.Value) (string, error) {
	switch {
	case v.IsUndefined():
		return "undefined", nil
	case v.IsNull():
		return "null", nil
	case v.IsBoolean():
		if v.AsBoolean() {
			return "true", nil
		}
		return "false", nil
	case v.IsSmallInt():
		return strconv.FormatInt(int64(v.AsSmallInt()), 10), nil
	case v.IsHeapRef():
		cell := vm.Arena.Get(v.AsHeapRef())
		switch c := cell.(type) {
		case *value.NumberBox:
			return formatNumber(c.F), nil
		case *strtab.HeapString:
			return strtab.DecodeCESU8(c.Bytes()), nil
		case *object.Object:
			if c.Flags().Has(object.ObjIsCallable) {
				return "function () { [native code] }", nil
			}
			if c.ObjectKind() == object.KindArray {
				return vm.joinArray(v.AsHeapRef())
			}
			return "[object Object]", nil
		default:
			return "[object Object]", nil
		}
	}
	return "", nil
}

func formatNumber(f float64) string {
	if f != f {
		return "NaN"
	}
	if f > 1e308*10 {
		return "Infinity"
	}
	if f < -1e308*10 {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (vm *VM) joinArray(idx heap.Index) (string, error) {
	var b strings.Builder
	i := 0
	for {
		v, ok := vm.Objects.GetElement(idx, i)
		if !ok {
			break
		}
		if i > 0 {
			b.WriteByte(',')
		}
		s, err := vm.ToDisplayString(v)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		i++
	}
	return b.String(), nil
}

// NewJSString interns s and returns it as a heap-ref Value.
func (vm *VM) NewJSString(s string) (value.Value, error) {
	idx, err := vm.Interner.InternString(s)
	if err != nil {
		return value.Undefined, err
	}
	return value.HeapRef(idx), nil
}

// TypeofString implements the `typeof` operator.
func (vm *VM) TypeofString(v value.Value) string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.IsNull():
		return "object"
	case v.IsBoolean():
		return "boolean"
	case v.IsSmallInt():
		return "number"
	case v.IsHeapRef():
		switch c := vm.Arena.Get(v.AsHeapRef()).(type) {
		case *value.NumberBox:
			return "number"
		case *strtab.HeapString:
			return "string"
		case *object.Object:
			if c.Flags().Has(object.ObjIsCallable) {
				return "function"
			}
			return "object"
		default:
			return "object"
		}
	}
	return "undefined"
}

// StrictEquals implements `===`: same type and same value, with numeric
// equality unified across the small-int/boxed-number split.
func (vm *VM) StrictEquals(a, b value.Value) bool {
	aNum, aIsNum := vm.numericPayload(a)
	bNum, bIsNum := vm.numericPayload(b)
	if aIsNum && bIsNum {
		return aNum == bNum
	}
	if aIsNum != bIsNum {
		return false
	}
	if as, aok := vm.stringPayload(a); aok {
		if bs, bok := vm.stringPayload(b); bok {
			return as == bs
		}
		return false
	}
	if a.IsBoolean() && b.IsBoolean() {
		return a.AsBoolean() == b.AsBoolean()
	}
	if a.IsUndefined() && b.IsUndefined() {
		return true
	}
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsHeapRef() && b.IsHeapRef() {
		return a.AsHeapRef() == b.AsHeapRef()
	}
	return false
}

func (vm *VM) numericPayload(v value.Value) (float64, bool) {
	if v.IsSmallInt() {
		return float64(v.AsSmallInt()), true
	}
	if v.IsHeapRef() {
		if box, ok := vm.Arena.Get(v.AsHeapRef()).(*value.NumberBox); ok {
			return box.F, true
		}
	}
	return 0, false
}

func (vm *VM) stringPayload(v value.Value) (string, bool) {
	if !v.IsHeapRef() {
		return "", false
	}
	if hs, ok := vm.Arena.Get(v.AsHeapRef()).(*strtab.HeapString); ok {
		return strtab.DecodeCESU8(hs.Bytes()), true
	}
	return "", false
}

// AbstractEquals implements a simplified `==`: the null/undefined
// identification and number<->string/boolean coercion rules; object
// operands are compared by identity rather than run through
// [[ToPrimitive]] (same builtins-layer gap as ToNumber/ToDisplayString).
func (vm *VM) AbstractEquals(a, b value.Value) (bool, error) {
	if a.IsNullish() && b.IsNullish() {
		return true, nil
	}
	if a.IsNullish() != b.IsNullish() {
		return false, nil
	}
	_, aIsNum := vm.numericPayload(a)
	_, aIsStr := vm.stringPayload(a)
	_, bIsNum := vm.numericPayload(b)
	_, bIsStr := vm.stringPayload(b)
	switch {
	case aIsNum && bIsNum, aIsStr && bIsStr:
		return vm.StrictEquals(a, b), nil
	case (aIsNum || aIsStr || a.IsBoolean()) && (bIsNum || bIsStr || b.IsBoolean()):
		af, err := vm.ToNumber(a)
		if err != nil {
			return false, err
		}
		bf, err := vm.ToNumber(b)
		if err != nil {
			return false, err
		}
		return af == bf, nil
	default:
		return vm.StrictEquals(a, b), nil
	}
}
