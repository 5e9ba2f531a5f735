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
	"testing"

	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/parser"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/stretchr/testify/require"
)

// newTestVM wires the four lower-layer subsystems exactly as the public
// API eventually will, but with every intrinsic prototype left
// heap.NullIndex, the same "tests commonly do this" shortcut vm.New's own
// doc comment describes. Tests exercising builtin prototypes belong in
// the builtins package, which bootstraps them via builtins.Install.
func newTestVM(t *testing.T) *VM {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	store := object.NewStore(a, interner)
	chain := env.NewChain(a)
	v, err := New(a, store, interner, chain, nil)
	require.NoError(t, err)
	return v
}

// run compiles and executes src as a top-level program, returning the
// completion value of the last statement (via an explicit `return`
// expression appended to src, since bare top-level scripts discard
// their last expression's value the way ParseProgram emits them).
func run(t *testing.T, v *VM, src string) value.Value {
	t.Helper()
	bc, err := parser.Parse(src, v.Interner, parser.Options{SourceName: "test.js"})
	require.NoError(t, err)
	result, err := v.RunProgram(bc, value.Undefined)
	require.NoError(t, err)
	return result
}

func runErr(t *testing.T, v *VM, src string) error {
	t.Helper()
	bc, err := parser.Parse(src, v.Interner, parser.Options{SourceName: "test.js"})
	require.NoError(t, err)
	_, err = v.RunProgram(bc, value.Undefined)
	return err
}

func TestArithmeticAndStringConcat(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, "return (1 + 2) * 3;")
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(9), result.AsSmallInt())

	result = run(t, v, `return "foo" + "bar";`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "foobar", s)
}

func TestVarDeclarationAssignmentAndHoisting(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		var x = 10;
		x = x + 5;
		return x;
	`)
	require.Equal(t, int32(15), result.AsSmallInt())

	// hoisting: reading a var before its declaration line sees undefined,
	// not a ReferenceError, since `var` bindings are created (but not
	// initialized) at function/program entry.
	result = run(t, v, `
		var seenBeforeDecl = (typeof hoisted === "undefined");
		var hoisted = 1;
		return seenBeforeDecl;
	`)
	require.True(t, result.IsBoolean())
	require.True(t, result.AsBoolean())
}

func TestIfElse(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		var x = 3;
		var out;
		if (x > 5) {
			out = "big";
		} else {
			out = "small";
		}
		return out;
	`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "small", s)
}

func TestWhileAndForLoops(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		return sum;
	`)
	require.Equal(t, int32(10), result.AsSmallInt())

	result = run(t, v, `
		var total = 0;
		for (var j = 0; j < 4; j = j + 1) {
			total = total + j;
		}
		return total;
	`)
	require.Equal(t, int32(6), result.AsSmallInt())
}

func TestFunctionDeclarationCallAndClosures(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		function add(a, b) {
			return a + b;
		}
		return add(4, 5);
	`)
	require.Equal(t, int32(9), result.AsSmallInt())

	result = run(t, v, `
		function makeCounter() {
			var count = 0;
			function increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		counter();
		counter();
		return counter();
	`)
	require.Equal(t, int32(3), result.AsSmallInt())
}

func TestTryCatchFinally(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		var order = "";
		try {
			order = order + "t";
			throw "boom";
		} catch (e) {
			order = order + "c" + e;
		} finally {
			order = order + "f";
		}
		return order;
	`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "tcboomf", s)

	// an uncaught throw propagates out of RunProgram as a *ThrownValue.
	err = runErr(t, v, `throw "nope";`)
	require.Error(t, err)
	thrown, ok := err.(*ThrownValue)
	require.True(t, ok)
	s, derr := v.ToDisplayString(thrown.Value)
	require.NoError(t, derr)
	require.Equal(t, "nope", s)
}

func TestDeletePropertyDotAndComputed(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		var obj = {};
		obj.x = 1;
		var had = ("x" in obj);
		var ok = delete obj.x;
		var hasAfter = ("x" in obj);
		return had && ok && !hasAfter;
	`)
	require.True(t, result.IsBoolean())
	require.True(t, result.AsBoolean())

	result = run(t, v, `
		var obj = {};
		obj["y"] = 2;
		var ok = delete obj["y"];
		return ok && !("y" in obj);
	`)
	require.True(t, result.AsBoolean())
}

func TestDeleteNonMemberOperandAlwaysSucceeds(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `return delete 1;`)
	require.True(t, result.IsBoolean())
	require.True(t, result.AsBoolean())
}

func TestStringLengthFastPath(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `return "hello".length;`)
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(5), result.AsSmallInt())
}

func TestPrimitiveReceiverPropertyAccessDoesNotPanic(t *testing.T) {
	v := newTestVM(t)

	result := run(t, v, `return "abc".nonexistent;`)
	require.True(t, result.IsUndefined())

	// assigning a property onto a string primitive is a silent no-op in
	// sloppy mode, not a panic.
	result = run(t, v, `
		var s = "abc";
		s.extra = 1;
		return typeof s.extra;
	`)
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "undefined", s)

	// delete against a string primitive reports success rather than panicking.
	result = run(t, v, `return delete "abc".nonexistent;`)
	require.True(t, result.AsBoolean())
}

func TestInstanceofAndInOnPrimitivesDoNotPanic(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		function Foo() {}
		return ("str" instanceof Foo);
	`)
	require.True(t, result.IsBoolean())
	require.False(t, result.AsBoolean())

	err := runErr(t, v, `return ("key" in "str");`)
	require.Error(t, err)
	_, ok := err.(*ThrownValue)
	require.True(t, ok, "`in` on a non-object receiver must throw, not panic")
}

func TestConstructOnNonConstructorThrowsInsteadOfPanicking(t *testing.T) {
	v := newTestVM(t)
	err := runErr(t, v, `return new "x"();`)
	require.Error(t, err)
	_, ok := err.(*ThrownValue)
	require.True(t, ok)
}

func TestConstructAllocatesInstanceLinkedToPrototype(t *testing.T) {
	v := newTestVM(t)
	result := run(t, v, `
		function Point(x, y) {
			this.x = x;
			this.y = y;
		}
		var p = new Point(1, 2);
		return p.x + p.y;
	`)
	require.Equal(t, int32(3), result.AsSmallInt())
}
