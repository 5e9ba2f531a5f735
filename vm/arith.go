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
	"math"

	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
)

// add implements `+`: string concatenation if either operand is a
// string after primitive coercion, numeric addition otherwise (ECMA-262
// 13.15.3, minus the [[ToPrimitive]] call on object operands - see
// ToNumber/ToDisplayString's documented gap).
func (vm *VM) add(a, b value.Value) (value.Value, error) {
	if _, aIsStr := vm.stringPayload(a); aIsStr {
		return vm.concat(a, b)
	}
	if _, bIsStr := vm.stringPayload(b); bIsStr {
		return vm.concat(a, b)
	}
	af, err := vm.ToNumber(a)
	if err != nil {
		return value.Undefined, err
	}
	bf, err := vm.ToNumber(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, af+bf)
}

func (vm *VM) concat(a, b value.Value) (value.Value, error) {
	as, err := vm.ToDisplayString(a)
	if err != nil {
		return value.Undefined, err
	}
	bs, err := vm.ToDisplayString(b)
	if err != nil {
		return value.Undefined, err
	}
	return vm.NewJSString(as + bs)
}

func (vm *VM) numericBinOp(a, b value.Value, fn func(x, y float64) float64) (value.Value, error) {
	af, err := vm.ToNumber(a)
	if err != nil {
		return value.Undefined, err
	}
	bf, err := vm.ToNumber(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, fn(af, bf))
}

func (vm *VM) sub(a, b value.Value) (value.Value, error) {
	return vm.numericBinOp(a, b, func(x, y float64) float64 { return x - y })
}
func (vm *VM) mul(a, b value.Value) (value.Value, error) {
	return vm.numericBinOp(a, b, func(x, y float64) float64 { return x * y })
}
func (vm *VM) div(a, b value.Value) (value.Value, error) {
	return vm.numericBinOp(a, b, func(x, y float64) float64 { return x / y })
}
func (vm *VM) mod(a, b value.Value) (value.Value, error) {
	return vm.numericBinOp(a, b, math.Mod)
}
func (vm *VM) exp(a, b value.Value) (value.Value, error) {
	return vm.numericBinOp(a, b, math.Pow)
}
func (vm *VM) neg(a value.Value) (value.Value, error) {
	f, err := vm.ToNumber(a)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, -f)
}

func (vm *VM) toInt32(v value.Value) (int32, error) {
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return int32(uint32(int64(f))), nil
}

func (vm *VM) toUint32(v value.Value) (uint32, error) {
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return uint32(int64(f)), nil
}

func (vm *VM) bitBinOp(a, b value.Value, fn func(x, y int32) int32) (value.Value, error) {
	ai, err := vm.toInt32(a)
	if err != nil {
		return value.Undefined, err
	}
	bi, err := vm.toInt32(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, float64(fn(ai, bi)))
}

func (vm *VM) bitAnd(a, b value.Value) (value.Value, error) {
	return vm.bitBinOp(a, b, func(x, y int32) int32 { return x & y })
}
func (vm *VM) bitOr(a, b value.Value) (value.Value, error) {
	return vm.bitBinOp(a, b, func(x, y int32) int32 { return x | y })
}
func (vm *VM) bitXor(a, b value.Value) (value.Value, error) {
	return vm.bitBinOp(a, b, func(x, y int32) int32 { return x ^ y })
}
func (vm *VM) bitNot(a value.Value) (value.Value, error) {
	ai, err := vm.toInt32(a)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, float64(^ai))
}
func (vm *VM) shl(a, b value.Value) (value.Value, error) {
	ai, err := vm.toInt32(a)
	if err != nil {
		return value.Undefined, err
	}
	bu, err := vm.toUint32(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, float64(ai<<(bu&31)))
}
func (vm *VM) shr(a, b value.Value) (value.Value, error) {
	ai, err := vm.toInt32(a)
	if err != nil {
		return value.Undefined, err
	}
	bu, err := vm.toUint32(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, float64(ai>>(bu&31)))
}
func (vm *VM) ushr(a, b value.Value) (value.Value, error) {
	au, err := vm.toUint32(a)
	if err != nil {
		return value.Undefined, err
	}
	bu, err := vm.toUint32(b)
	if err != nil {
		return value.Undefined, err
	}
	return value.Number(vm.Arena, float64(au>>(bu&31)))
}

// relationalCompare implements the abstract relational comparison
// underlying `<`/`>`/`<=`/`>=` (string-vs-string compares
// lexicographically on CESU-8 bytes, everything else coerces through
// ToNumber). cmp receives (a, b) in the caller's original operand order
// and decides the result; a NaN on either side always yields false,
// matching ECMA-262's "undefined" relational-comparison result.
func (vm *VM) relationalCompare(a, b value.Value, cmp func(x, y float64) bool, cmpStr func(x, y string) bool) (value.Value, error) {
	as, aIsStr := vm.stringPayload(a)
	bs, bIsStr := vm.stringPayload(b)
	if aIsStr && bIsStr {
		return value.Bool(cmpStr(as, bs)), nil
	}
	af, err := vm.ToNumber(a)
	if err != nil {
		return value.Undefined, err
	}
	bf, err := vm.ToNumber(b)
	if err != nil {
		return value.Undefined, err
	}
	if math.IsNaN(af) || math.IsNaN(bf) {
		return value.False, nil
	}
	return value.Bool(cmp(af, bf)), nil
}

func (vm *VM) lessThan(a, b value.Value) (value.Value, error) {
	return vm.relationalCompare(a, b, func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y })
}
func (vm *VM) greaterThan(a, b value.Value) (value.Value, error) {
	return vm.relationalCompare(a, b, func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y })
}
func (vm *VM) lessOrEqual(a, b value.Value) (value.Value, error) {
	return vm.relationalCompare(a, b, func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y })
}
func (vm *VM) greaterOrEqual(a, b value.Value) (value.Value, error) {
	return vm.relationalCompare(a, b, func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y })
}

// instanceOf implements `instanceof`: walks lhs's prototype chain
// looking for rhs's own "prototype" property value.
func (vm *VM) instanceOf(lhs, rhs value.Value) (value.Value, error) {
	if !rhs.IsHeapRef() {
		exn, err := vm.typeError("Right-hand side of 'instanceof' is not callable")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	rhsObj, ok := vm.Arena.Get(rhs.AsHeapRef()).(*object.Object)
	if !ok || !rhsObj.Flags().Has(object.ObjIsCallable) {
		exn, err := vm.typeError("Right-hand side of 'instanceof' is not callable")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	slot, ok := vm.Objects.GetOwnProperty(rhs.AsHeapRef(), vm.names.prototype)
	if !ok || !slot.Data.IsHeapRef() {
		return value.False, nil
	}
	target := slot.Data.AsHeapRef()
	if !lhs.IsHeapRef() {
		return value.False, nil
	}
	lhsObj, ok := vm.Arena.Get(lhs.AsHeapRef()).(*object.Object)
	if !ok {
		return value.False, nil // string/number primitives have no wired prototype chain
	}
	cur := lhsObj.Prototype
	for i := 0; !cur.IsNull() && i < maxPrototypeDepth; i++ {
		if cur == target {
			return value.True, nil
		}
		cur = vm.Arena.Get(cur).(*object.Object).Prototype
	}
	return value.False, nil
}

// inOperator implements `in`: true if name is an own or inherited
// property of obj.
func (vm *VM) inOperator(name, obj value.Value) (value.Value, error) {
	isObj := false
	if obj.IsHeapRef() {
		_, isObj = vm.Arena.Get(obj.AsHeapRef()).(*object.Object)
	}
	if !isObj {
		exn, err := vm.typeError("Cannot use 'in' operator on a non-object")
		if err != nil {
			return value.Undefined, err
		}
		return value.Undefined, &ThrownValue{Value: exn}
	}
	key, err := vm.toPropertyKey(name)
	if err != nil {
		return value.Undefined, err
	}
	_, _, found := vm.Objects.GetProperty(obj.AsHeapRef(), key, maxPrototypeDepth)
	return value.Bool(found), nil
}
