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
	"testing"

	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/parser"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
	"github.com/stretchr/testify/require"
)

func newBuiltinsVM(t *testing.T) (*vm.VM, *object.Store) {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	store := object.NewStore(a, interner)
	chain := env.NewChain(a)
	v, err := vm.New(a, store, interner, chain, nil)
	require.NoError(t, err)
	require.NoError(t, Install(v, store, DefaultConfig()))
	return v, store
}

func run(t *testing.T, v *vm.VM, src string) value.Value {
	t.Helper()
	bc, err := parser.Parse(src, v.Interner, parser.Options{SourceName: "test.js"})
	require.NoError(t, err)
	result, err := v.RunProgram(bc, value.Undefined)
	require.NoError(t, err)
	return result
}

func TestInstallBootstrapsDistinctIntrinsicPrototypes(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	require.False(t, v.ObjectProto.IsNull())
	require.False(t, v.FunctionProto.IsNull())
	require.False(t, v.ArrayProto.IsNull())
	require.False(t, v.ErrorProto.IsNull())
	require.NotEqual(t, v.ObjectProto, v.ArrayProto)
	require.NotEqual(t, v.ObjectProto, v.ErrorProto)
}

func TestGlobalParseIntHandlesRadixAndPrefix(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `return parseInt("42");`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(42), result.AsSmallInt())

	result = run(t, v, `return parseInt("0x1F");`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(31), result.AsSmallInt())

	result = run(t, v, `return parseInt("101", 2);`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(5), result.AsSmallInt())

	result = run(t, v, `return parseInt("not a number");`)
	f, err := v.ToNumber(result)
	require.NoError(t, err)
	require.True(t, f != f) // NaN
}

func TestGlobalIsNaNAndIsFinite(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `return isNaN("abc");`)
	require.True(t, result.AsBoolean())

	result = run(t, v, `return isFinite(42);`)
	require.True(t, result.AsBoolean())
}

func TestObjectKeysAndAssign(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `
		var o = {a: 1, b: 2};
		var keys = Object.keys(o);
		return keys.length;
	`)
	f, err := v.ToNumber(result)
	require.NoError(t, err)
	require.Equal(t, float64(2), f)

	result = run(t, v, `
		var target = {a: 1};
		var merged = Object.assign(target, {b: 2});
		return merged.b;
	`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(2), result.AsSmallInt())
}

func TestObjectFreezeRejectsWrites(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `
		var o = Object.freeze({a: 1});
		return Object.isFrozen(o);
	`)
	require.True(t, result.AsBoolean())
}

func TestArrayPushPopForEachMapJoin(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `
		var a = [1, 2, 3];
		a.push(4);
		return a.join("-");
	`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "1-2-3-4", s)

	result = run(t, v, `
		var sum = 0;
		[1, 2, 3].forEach(function(x) { sum += x; });
		return sum;
	`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(6), result.AsSmallInt())

	result = run(t, v, `
		var doubled = [1, 2, 3].map(function(x) { return x * 2; });
		return doubled.join(",");
	`)
	s, err = v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "2,4,6", s)
}

func TestErrorConstructorsSetNameAndMessage(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `
		var e = new TypeError("bad value");
		return e.name + ": " + e.message;
	`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "TypeError: bad value", s)
}

func TestAtomicsMethodsAreStubs(t *testing.T) {
	v, _ := newBuiltinsVM(t)
	result := run(t, v, `return Atomics.isLockFree(4);`)
	require.False(t, result.AsBoolean())

	result = run(t, v, `return Atomics.wait();`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "not-equal", s)
}

func TestConfigDisablesGroup(t *testing.T) {
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	store := object.NewStore(a, interner)
	chain := env.NewChain(a)
	v, err := vm.New(a, store, interner, chain, nil)
	require.NoError(t, err)
	require.NoError(t, Install(v, store, Config{Global: true}))

	_, err = parser.Parse(`return typeof Array;`, v.Interner, parser.Options{SourceName: "t.js"})
	require.NoError(t, err)
}
