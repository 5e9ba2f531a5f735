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
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

type state uint8

const (
	statePending state = iota
	stateFulfilled
	stateRejected
)

// reaction is one registered continuation waiting on a promise to
// settle. A JS then()/catch() call populates handler/derived; internal
// bookkeeping (promiseAll) instead supplies native, which runs as a Go
// closure with no JS value or derived promise involved.
type reaction struct {
	handler    value.Value
	hasHandler bool
	derived    heap.Index
	native     func(state, value.Value)
}

// data is the Extra payload for a KindPromise object (object.Extra):
// settlement state plus the pending-reaction lists ECMA-262 models as
// separate Promise Reaction Records, collapsed here onto the promise
// object itself since nothing outside its owner ever references one.
type data struct {
	state     state
	result    value.Value
	fulfilled []reaction
	rejected  []reaction
	resolved  bool // guards resolve/reject firing more than once
}

func (d *data) Refs() []heap.Index {
	refs := make([]heap.Index, 0, 2+len(d.fulfilled)+len(d.rejected))
	if d.result.IsHeapRef() {
		refs = append(refs, d.result.AsHeapRef())
	}
	for _, list := range [][]reaction{d.fulfilled, d.rejected} {
		for _, r := range list {
			if r.hasHandler && r.handler.IsHeapRef() {
				refs = append(refs, r.handler.AsHeapRef())
			}
			if !r.derived.IsNull() {
				refs = append(refs, r.derived)
			}
		}
	}
	return refs
}

// Install wires Promise.prototype (then/catch/finally) and the global
// Promise constructor (with resolve/reject/all statics) onto v, backed
// by q for scheduling reaction jobs - mirrors builtins.Install's shape:
// bootstrap the prototype, then hang methods and a constructor off it.
func Install(v *vm.VM, objects *object.Store, q *Queue) error {
	proto := object.NewObject(object.KindPlain, v.ObjectProto)
	protoIdx, err := v.Arena.Alloc(proto)
	if err != nil {
		return err
	}
	v.PromiseProto = protoIdx

	methods := map[string]vm.NativeFunc{
		"then":    promiseThen(q),
		"catch":   promiseCatch(q),
		"finally": promiseFinally(q),
	}
	for name, fn := range methods {
		if err := v.DefineMethod(v.PromiseProto, name, fn); err != nil {
			return err
		}
	}

	ctorVal, err := v.NewNativeFunctionValue(promiseConstructor(q), true)
	if err != nil {
		return err
	}
	protoName, err := v.NewJSString("prototype")
	if err != nil {
		return err
	}
	if err := objects.DefineOwnDataProperty(ctorVal.AsHeapRef(), protoName, value.HeapRef(v.PromiseProto), object.FlagValueDefined); err != nil {
		return err
	}
	statics := map[string]vm.NativeFunc{
		"resolve": promiseResolveStatic(q),
		"reject":  promiseRejectStatic(q),
		"all":     promiseAll(q),
	}
	for name, fn := range statics {
		if err := v.DefineMethod(ctorVal.AsHeapRef(), name, fn); err != nil {
			return err
		}
	}
	return v.DefineGlobalValue("Promise", ctorVal)
}

func newPromise(v *vm.VM) (heap.Index, error) {
	obj := object.NewObject(object.KindPromise, v.PromiseProto)
	idx, err := v.Arena.Alloc(obj)
	if err != nil {
		return heap.NullIndex, err
	}
	obj.Extra = &data{state: statePending, result: value.Undefined}
	return idx, nil
}

func isPromise(v *vm.VM, val value.Value) (heap.Index, bool) {
	if !val.IsHeapRef() {
		return heap.NullIndex, false
	}
	idx := val.AsHeapRef()
	obj, ok := v.Arena.Get(idx).(*object.Object)
	if !ok || obj.ObjectKind() != object.KindPromise {
		return heap.NullIndex, false
	}
	return idx, true
}

func promiseData(v *vm.VM, idx heap.Index) *data {
	return v.Arena.Get(idx).(*object.Object).Extra.(*data)
}

// settle transitions the promise at idx from pending to s carrying
// result, firing its pending reactions onto q - the Queue-based
// standin for ECMA-262's "enqueue a PromiseReactionJob" step of
// FulfillPromise/RejectPromise.
func settle(v *vm.VM, q *Queue, idx heap.Index, s state, result value.Value) {
	d := promiseData(v, idx)
	if d.resolved {
		return
	}
	d.resolved = true
	d.state = s
	d.result = result
	reactions := d.fulfilled
	if s == stateRejected {
		reactions = d.rejected
	}
	d.fulfilled = nil
	d.rejected = nil
	for _, r := range reactions {
		runReaction(v, q, r, s, result)
	}
}

// runReaction schedules one reaction as a microtask. A native reaction
// (promiseAll's bookkeeping) just runs with the settled state and
// value; a JS reaction calls its handler (if any) with result,
// otherwise passes result straight through, then resolves/rejects the
// derived promise with whatever came out.
func runReaction(v *vm.VM, q *Queue, r reaction, s state, result value.Value) {
	if r.native != nil {
		q.Enqueue(func() { r.native(s, result) })
		return
	}
	q.Enqueue(func() {
		if !r.hasHandler {
			if s == stateFulfilled {
				resolvePromise(v, q, r.derived, result)
			} else {
				settle(v, q, r.derived, stateRejected, result)
			}
			return
		}
		out, err := v.Call(r.handler, value.Undefined, []value.Value{result})
		if err != nil {
			if thrown, ok := vm.AsThrown(err); ok {
				settle(v, q, r.derived, stateRejected, thrown)
				return
			}
			settle(v, q, r.derived, stateRejected, value.Undefined)
			return
		}
		resolvePromise(v, q, r.derived, out)
	})
}

// resolvePromise is ECMA-262's ResolvePromise: if val is itself a
// promise, adopt its eventual state instead of fulfilling immediately
// with the promise as the value.
func resolvePromise(v *vm.VM, q *Queue, idx heap.Index, val value.Value) {
	if source, ok := isPromise(v, val); ok {
		adopt(v, q, idx, source)
		return
	}
	settle(v, q, idx, stateFulfilled, val)
}

// adopt chains idx's settlement to source's: when source fulfills or
// rejects, idx does the same with the same value.
func adopt(v *vm.VM, q *Queue, idx, source heap.Index) {
	sd := promiseData(v, source)
	r := reaction{derived: idx}
	switch sd.state {
	case statePending:
		sd.fulfilled = append(sd.fulfilled, r)
		sd.rejected = append(sd.rejected, r)
	case stateFulfilled:
		runReaction(v, q, r, stateFulfilled, sd.result)
	case stateRejected:
		runReaction(v, q, r, stateRejected, sd.result)
	}
}

// watch registers a native Go callback to run (as a microtask) once
// idx settles, bypassing the derived-promise shape reaction normally
// assumes - used by promiseAll, whose continuation is native
// bookkeeping rather than a JS handler or a chained promise.
func watch(v *vm.VM, q *Queue, idx heap.Index, onSettled func(state, value.Value)) {
	d := promiseData(v, idx)
	r := reaction{native: onSettled}
	switch d.state {
	case statePending:
		d.fulfilled = append(d.fulfilled, r)
		d.rejected = append(d.rejected, r)
	case stateFulfilled:
		runReaction(v, q, r, stateFulfilled, d.result)
	case stateRejected:
		runReaction(v, q, r, stateRejected, d.result)
	}
}

func promiseConstructor(q *Queue) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		if newTarget.IsUndefined() {
			return value.Undefined, typeErrorThrow(vctx, "Promise constructor cannot be invoked without 'new'")
		}
		idx, err := newPromise(vctx)
		if err != nil {
			return value.Undefined, err
		}
		executor := argOr(args, 0)
		resolveFn, err := vctx.NewNativeFunctionValue(func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
			resolvePromise(vctx, q, idx, argOr(args, 0))
			return value.Undefined, nil
		}, false)
		if err != nil {
			return value.Undefined, err
		}
		rejectFn, err := vctx.NewNativeFunctionValue(func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
			settle(vctx, q, idx, stateRejected, argOr(args, 0))
			return value.Undefined, nil
		}, false)
		if err != nil {
			return value.Undefined, err
		}
		if _, err := vctx.Call(executor, value.Undefined, []value.Value{resolveFn, rejectFn}); err != nil {
			if thrown, ok := vm.AsThrown(err); ok {
				settle(vctx, q, idx, stateRejected, thrown)
			} else {
				return value.Undefined, err
			}
		}
		return value.HeapRef(idx), nil
	}
}

func promiseThen(q *Queue) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		idx, ok := isPromise(vctx, this)
		if !ok {
			return value.Undefined, typeErrorThrow(vctx, "Promise.prototype.then called on a non-promise")
		}
		derived, err := newPromise(vctx)
		if err != nil {
			return value.Undefined, err
		}
		onFulfilled := argOr(args, 0)
		onRejected := argOr(args, 1)
		fr := reaction{handler: onFulfilled, hasHandler: isCallableHandler(vctx, onFulfilled), derived: derived}
		rr := reaction{handler: onRejected, hasHandler: isCallableHandler(vctx, onRejected), derived: derived}

		d := promiseData(vctx, idx)
		switch d.state {
		case statePending:
			d.fulfilled = append(d.fulfilled, fr)
			d.rejected = append(d.rejected, rr)
		case stateFulfilled:
			runReaction(vctx, q, fr, stateFulfilled, d.result)
		case stateRejected:
			runReaction(vctx, q, rr, stateRejected, d.result)
		}
		return value.HeapRef(derived), nil
	}
}

func promiseCatch(q *Queue) vm.NativeFunc {
	then := promiseThen(q)
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		return then(vctx, this, []value.Value{value.Undefined, argOr(args, 0)}, value.Undefined)
	}
}

func promiseFinally(q *Queue) vm.NativeFunc {
	then := promiseThen(q)
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		onFinally := argOr(args, 0)
		wrapFulfilled, err := vctx.NewNativeFunctionValue(func(vctx *vm.VM, _ value.Value, args []value.Value, _ value.Value) (value.Value, error) {
			if _, err := vctx.Call(onFinally, value.Undefined, nil); err != nil {
				return value.Undefined, err
			}
			return argOr(args, 0), nil
		}, false)
		if err != nil {
			return value.Undefined, err
		}
		wrapRejected, err := vctx.NewNativeFunctionValue(func(vctx *vm.VM, _ value.Value, args []value.Value, _ value.Value) (value.Value, error) {
			if _, err := vctx.Call(onFinally, value.Undefined, nil); err != nil {
				return value.Undefined, err
			}
			return value.Undefined, &vm.ThrownValue{Value: argOr(args, 0)}
		}, false)
		if err != nil {
			return value.Undefined, err
		}
		return then(vctx, this, []value.Value{wrapFulfilled, wrapRejected}, value.Undefined)
	}
}

func promiseResolveStatic(q *Queue) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		val := argOr(args, 0)
		if _, ok := isPromise(vctx, val); ok {
			return val, nil
		}
		idx, err := newPromise(vctx)
		if err != nil {
			return value.Undefined, err
		}
		resolvePromise(vctx, q, idx, val)
		return value.HeapRef(idx), nil
	}
}

func promiseRejectStatic(q *Queue) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		idx, err := newPromise(vctx)
		if err != nil {
			return value.Undefined, err
		}
		settle(vctx, q, idx, stateRejected, argOr(args, 0))
		return value.HeapRef(idx), nil
	}
}

// promiseAll implements Promise.all over a fast array of promises/
// plain values, rejecting as soon as any input rejects and fulfilling
// with an array of results once every input has settled successfully.
func promiseAll(q *Queue) vm.NativeFunc {
	return func(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
		input := argOr(args, 0)
		resultIdx, err := newPromise(vctx)
		if err != nil {
			return value.Undefined, err
		}
		objIdx, ok := toArrayIndex(vctx, input)
		if !ok {
			settle(vctx, q, resultIdx, stateRejected, input)
			return value.HeapRef(resultIdx), nil
		}
		n := fastArrayLen(vctx, objIdx)
		if n == 0 {
			arr, err := vctx.NewFastArrayValue(nil)
			if err != nil {
				return value.Undefined, err
			}
			settle(vctx, q, resultIdx, stateFulfilled, arr)
			return value.HeapRef(resultIdx), nil
		}
		results := make([]value.Value, n)
		remaining := n
		for i := 0; i < n; i++ {
			el, _ := vctx.Objects.GetElement(objIdx, i)
			wrapped, err := newPromise(vctx)
			if err != nil {
				return value.Undefined, err
			}
			resolvePromise(vctx, q, wrapped, el)
			slot := i
			watch(vctx, q, wrapped, func(s state, val value.Value) {
				if s == stateRejected {
					settle(vctx, q, resultIdx, stateRejected, val)
					return
				}
				results[slot] = val
				remaining--
				if remaining == 0 {
					arr, err := vctx.NewFastArrayValue(results)
					if err != nil {
						settle(vctx, q, resultIdx, stateRejected, value.Undefined)
						return
					}
					settle(vctx, q, resultIdx, stateFulfilled, arr)
				}
			})
		}
		return value.HeapRef(resultIdx), nil
	}
}

func toArrayIndex(v *vm.VM, val value.Value) (heap.Index, bool) {
	if !val.IsHeapRef() {
		return heap.NullIndex, false
	}
	idx := val.AsHeapRef()
	obj, ok := v.Arena.Get(idx).(*object.Object)
	if !ok {
		return heap.NullIndex, false
	}
	if _, ok := obj.Extra.(*object.ArrayData); !ok {
		return heap.NullIndex, false
	}
	return idx, true
}

func fastArrayLen(v *vm.VM, objIdx heap.Index) int {
	obj := v.Arena.Get(objIdx).(*object.Object)
	if data, ok := obj.Extra.(*object.ArrayData); ok {
		return data.Length()
	}
	return 0
}

// typeErrorThrow builds a TypeError object the same way
// builtins/errors.go's errorConstructor does (own name/message data
// properties on vm.ErrorProto) and wraps it as a ThrownValue, since job
// has no access to vm's unexported newError/typeError helpers.
func typeErrorThrow(v *vm.VM, message string) error {
	idx, err := v.Arena.Alloc(object.NewObject(object.KindError, v.ErrorProto))
	if err != nil {
		return err
	}
	nameKey, err := v.NewJSString("name")
	if err != nil {
		return err
	}
	nameVal, err := v.NewJSString("TypeError")
	if err != nil {
		return err
	}
	msgKey, err := v.NewJSString("message")
	if err != nil {
		return err
	}
	msgVal, err := v.NewJSString(message)
	if err != nil {
		return err
	}
	flags := object.FlagWritable | object.FlagConfigurable | object.FlagValueDefined
	if err := v.Objects.DefineOwnDataProperty(idx, nameKey, nameVal, flags); err != nil {
		return err
	}
	if err := v.Objects.DefineOwnDataProperty(idx, msgKey, msgVal, flags); err != nil {
		return err
	}
	return &vm.ThrownValue{Value: value.HeapRef(idx).WithError()}
}

func isCallableHandler(v *vm.VM, val value.Value) bool {
	if !val.IsHeapRef() {
		return false
	}
	obj, ok := v.Arena.Get(val.AsHeapRef()).(*object.Object)
	if !ok {
		return false
	}
	return obj.Flags().Has(object.ObjIsCallable)
}

func argOr(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Undefined
}
