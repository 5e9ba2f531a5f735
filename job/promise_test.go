// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"testing"

	"github.com/kraklabs/jjs/builtins"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/parser"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
	"github.com/stretchr/testify/require"
)

func newJobVM(t *testing.T) (*vm.VM, *Queue) {
	t.Helper()
	a := heap.NewArena(heap.Config{})
	interner := strtab.NewInternSet(a)
	store := object.NewStore(a, interner)
	chain := env.NewChain(a)
	v, err := vm.New(a, store, interner, chain, nil)
	require.NoError(t, err)
	require.NoError(t, builtins.Install(v, store, builtins.DefaultConfig()))
	q := NewQueue()
	require.NoError(t, Install(v, store, q))
	return v, q
}

func evalSrc(t *testing.T, v *vm.VM, src string) value.Value {
	t.Helper()
	bc, err := parser.Parse(src, v.Interner, parser.Options{SourceName: "test.js"})
	require.NoError(t, err)
	result, err := v.RunProgram(bc, value.Undefined)
	require.NoError(t, err)
	return result
}

// runThenRead runs setup (a var-declaring script whose Promise chains
// settle onto microtasks, not synchronously), drains the microtask
// queue so every scheduled reaction has run, then evaluates readExpr
// against the global bindings setup left behind - the same two-Eval
// shape jjs_test.go's S1 case uses to observe a var declared in an
// earlier top-level script.
func runThenRead(t *testing.T, v *vm.VM, q *Queue, setup, readExpr string) value.Value {
	t.Helper()
	evalSrc(t, v, setup)
	q.Drain()
	return evalSrc(t, v, "return "+readExpr+";")
}

func TestPromiseResolveThenFulfills(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var seen;
		Promise.resolve(42).then(function(x) { seen = x; });
	`, "seen")
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(42), result.AsSmallInt())
}

func TestPromiseExecutorRejectReachesCatch(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var message;
		new Promise(function(resolve, reject) { reject("boom"); })
			.catch(function(e) { message = e; });
	`, "message")
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "boom", s)
}

func TestPromiseThenChainsAndPropagatesReturnValue(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var final;
		Promise.resolve(1)
			.then(function(x) { return x + 1; })
			.then(function(x) { return x * 10; })
			.then(function(x) { final = x; });
	`, "final")
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(20), result.AsSmallInt())
}

func TestPromiseThenResolvingWithAnotherPromiseAdoptsItsState(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var seen;
		Promise.resolve(1)
			.then(function() { return Promise.resolve("inner"); })
			.then(function(x) { seen = x; });
	`, "seen")
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "inner", s)
}

func TestPromiseThrowInHandlerRejectsDerivedPromise(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var caught;
		Promise.resolve(1)
			.then(function() { throw new Error("nope"); })
			.catch(function(e) { caught = e.message; });
	`, "caught")
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "nope", s)
}

func TestPromiseAllFulfillsWithResultsInOrder(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var joined;
		Promise.all([Promise.resolve(1), 2, Promise.resolve(3)])
			.then(function(xs) { joined = xs.join(","); });
	`, "joined")
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "1,2,3", s)
}

func TestPromiseAllRejectsOnFirstRejection(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var reason;
		Promise.all([Promise.resolve(1), Promise.reject("bad")])
			.catch(function(e) { reason = e; });
	`, "reason")
	s, err := v.ToDisplayString(result)
	require.NoError(t, err)
	require.Equal(t, "bad", s)
}

func TestPromiseFinallyRunsOnBothPaths(t *testing.T) {
	v, q := newJobVM(t)
	result := runThenRead(t, v, q, `
		var calls = 0;
		Promise.resolve(1).finally(function() { calls++; });
		Promise.reject("x").catch(function() {}).finally(function() { calls++; });
	`, "calls")
	require.True(t, result.IsSmallInt())
	require.Equal(t, int32(2), result.AsSmallInt())
}

func TestQueueDrainRunsTasksEnqueuedByOtherTasks(t *testing.T) {
	q := NewQueue()
	order := []int{}
	q.Enqueue(func() {
		order = append(order, 1)
		q.Enqueue(func() { order = append(order, 2) })
	})
	q.Drain()
	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, 0, q.Len())
}
