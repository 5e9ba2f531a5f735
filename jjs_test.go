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
	"testing"

	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(DefaultOptions())
	require.NoError(t, err)
	return ctx
}

// TestParseRunCall_S1 is spec scenario S1: parse a function declaration,
// run it, then call the function by name with arguments.
func TestParseRunCall_S1(t *testing.T) {
	ctx := newTestContext(t)
	script, err := ctx.Parse("function f(a, b) { return a + b; }", "s1.js")
	require.NoError(t, err)
	_, err = script.Run()
	require.NoError(t, err)

	fn, err := ctx.Eval("return f;", "s1-lookup.js")
	require.NoError(t, err)
	four, _ := value.SmallInt(4)
	two, _ := value.SmallInt(2)
	result, err := ctx.Call(fn, ctx.Undefined(), []Value{ctx.wrap(four), ctx.wrap(two)})
	require.NoError(t, err)
	n, err := result.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(6), n)
}

// TestThrowNumericLiteral_S2 is spec scenario S2: running `throw -5.6`
// surfaces an error-marked value whose numeric payload is -5.6.
func TestThrowNumericLiteral_S2(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Eval("throw -5.6;", "s2.js")
	require.Error(t, err)
	thrown, ok := vm.AsThrown(err)
	require.True(t, ok)
	require.True(t, thrown.IsError())
	n, err := ctx.VM.ToNumber(thrown.WithoutError())
	require.NoError(t, err)
	require.Equal(t, -5.6, n)
}

// TestPromiseChainSettlesAcrossEval_S3 is spec scenario S3: a Promise
// chain built from script settles through the Context's microtask
// queue, which Eval drains automatically before returning - so a
// follow-up Eval on the same Context observes the settled value. (True
// `async`/`await` suspension is a documented gap; this exercises the
// Promise machinery it would otherwise sit on top of.)
func TestPromiseChainSettlesAcrossEval_S3(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Eval(`
		var final;
		Promise.resolve(1)
			.then(function(x) { return x + 1; })
			.then(function(x) { final = x * 3; });
	`, "s3.js")
	require.NoError(t, err)

	result, err := ctx.Eval("return final;", "s3-followup.js")
	require.NoError(t, err)
	n, err := result.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(6), n)
}

// TestNativeHandlerThrowCaughtByScript_S5 is spec scenario S5: a native
// handler throws a TypeError, caught by a JS try/catch, observed through
// e.message.
func TestNativeHandlerThrowCaughtByScript_S5(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.VM.DefineNative("oops", func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		nameVal, nameErr := vctx.NewJSString("TypeError")
		if nameErr != nil {
			return value.Undefined, nameErr
		}
		rec := vctx.Arena.Get(vctx.GlobalEnv).(*env.Record)
		ctorVal, _, found := rec.GetBindingValue(nameVal)
		if !found {
			t.Fatal("TypeError is not bound in the global environment")
		}
		msgVal, msgErr := vctx.NewJSString("oops")
		if msgErr != nil {
			return value.Undefined, msgErr
		}
		exn, constructErr := vctx.Construct(ctorVal, []value.Value{msgVal})
		if constructErr != nil {
			return value.Undefined, constructErr
		}
		return value.Undefined, &vm.ThrownValue{Value: exn.WithError()}
	})
	require.NoError(t, err)

	result, err := ctx.Eval(`
		var message;
		try {
			oops();
		} catch (e) {
			message = e.message;
		}
		return message;
	`, "s5.js")
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "oops", s)
}

// TestHaltCallbackAbortsLoop_S7 is spec scenario S7: installing a halt
// callback that returns true aborts a runaway loop, and the Context
// remains usable for subsequent calls afterward.
func TestHaltCallbackAbortsLoop_S7(t *testing.T) {
	ctx := newTestContext(t)
	steps := 0
	ctx.VM.HaltFn = func() bool {
		steps++
		return steps > 100
	}
	_, err := ctx.Eval("while (true) {}", "s7.js")
	require.Error(t, err)

	ctx.VM.HaltFn = nil
	result, err := ctx.Eval("return 1 + 1;", "s7-followup.js")
	require.NoError(t, err)
	n, err := result.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(2), n)
}

func TestHandleScopeRetainAndClose(t *testing.T) {
	ctx := newTestContext(t)
	scope := ctx.OpenHandleScope()
	s := scope.Retain(must(ctx.String("hello")))
	str, err := s.ToString()
	require.NoError(t, err)
	require.Equal(t, "hello", str)
	scope.Close()
}

func must(v Value, err error) Value {
	if err != nil {
		panic(err)
	}
	return v
}
