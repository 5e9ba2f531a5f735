// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jjs is the embedder-facing public API (spec.md section 4.9,
// module map entry L14): Context wires the heap/object/environment/
// string/VM subsystems and the builtins dispatcher into one unit of
// isolated execution, the way the reference's jjs_context_t bundles its
// per-context globals.
package jjs

import (
	"log/slog"

	"github.com/kraklabs/jjs/builtins"
	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/engine/metrics"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/job"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/parser"
	"github.com/kraklabs/jjs/port"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

// estimatedBytesPerCell approximates one heap cell's footprint for the
// heap_bytes_allocated gauge. The arena does not track exact per-cell
// byte sizes (Go's own allocator handles small-object sizing internally,
// per heap/pool.go's sizeClasses comment), so this reports an estimate
// scaled to the allocator's largest small size class rather than a
// precise figure.
const estimatedBytesPerCell = 32

// Context is one isolated JavaScript execution environment: its own
// heap, object store, string table, environment chain and VM. Contexts
// share nothing - an embedder needing concurrent execution constructs
// one Context per goroutine.
type Context struct {
	Arena    *heap.Arena
	Objects  *object.Store
	Interner *strtab.InternSet
	Envs     *env.Chain
	VM       *vm.VM
	Jobs     *job.Queue
	Port     port.Port
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// NewContext constructs a Context from opts, bootstrapping the intrinsic
// prototypes via builtins.Install before returning - a script run
// through the result can reference Object/Array/Error/etc. immediately.
func NewContext(opts Options) (*Context, error) {
	logger := opts.logger()
	p := opts.port(logger)

	arena := heap.NewArena(heap.Config{Limit: opts.HeapLimitBytes, MarkLimit: opts.MarkLimit, Logger: logger})
	interner := strtab.NewInternSet(arena)
	objects := object.NewStore(arena, interner)
	envs := env.NewChain(arena)

	vctx, err := vm.New(arena, objects, interner, envs, logger)
	if err != nil {
		return nil, err
	}
	vctx.Port = p

	if err := builtins.Install(vctx, objects, opts.Builtins); err != nil {
		return nil, err
	}

	jobs := job.NewQueue()
	if err := job.Install(vctx, objects, jobs); err != nil {
		return nil, err
	}

	return &Context{
		Arena:    arena,
		Objects:  objects,
		Interner: interner,
		Envs:     envs,
		VM:       vctx,
		Jobs:     jobs,
		Port:     p,
		Logger:   logger,
		Metrics:  metrics.New(opts.Metrics),
	}, nil
}

// CollectGarbage runs one stop-the-world mark-and-sweep pass over the
// Context's heap and records it on Metrics, if configured. Callers must
// only invoke this between top-level turns (after Eval/Call/Construct/
// Script.Run has returned), per vm.VM.Roots's documented constraint.
func (c *Context) CollectGarbage(pressure heap.Pressure) heap.Stats {
	stats := c.Arena.Collect(c.VM.Roots(), pressure)
	c.Metrics.IncGCPause()
	c.Metrics.SetHeapBytesAllocated(uint64(c.Arena.Live()) * estimatedBytesPerCell)
	return stats
}

// DrainJobs runs every currently queued microtask (Promise reaction) to
// completion, including jobs a running job itself enqueues. Eval and
// Script.Run call this automatically after the top-level script
// completes, the same "run the microtask queue empty before yielding to
// the next macrotask" step a browser or Node event loop performs after
// each turn; callers driving Call/Construct directly from Go (outside
// of a script turn) should call it explicitly to observe settled
// promises.
func (c *Context) DrainJobs() {
	c.Jobs.Drain()
}

// Close releases the Context's heap. The Context must not be used
// afterward.
func (c *Context) Close() {
	c.Arena.Close()
}

// Eval parses src as a top-level script under sourceName and runs it,
// returning its completion value (spec.md section 4.9's combined
// `parse`+`run`, the common case embedders want for one-shot
// evaluation).
func (c *Context) Eval(src, sourceName string) (Value, error) {
	bc, err := parser.Parse(src, c.Interner, parser.Options{SourceName: sourceName})
	if err != nil {
		return Value{}, err
	}
	c.Metrics.IncParseCount()
	result, err := c.VM.RunProgram(bc, value.Undefined)
	c.DrainJobs()
	c.Metrics.SetMicrotaskQueueDepth(c.Jobs.Len())
	if err != nil {
		c.Metrics.IncExceptionsThrown()
		return Value{}, err
	}
	return c.wrap(result), nil
}

// Parse compiles src without running it, returning a Script that Run can
// execute (and re-execute) later - spec.md section 4.9's separated
// `parse` step, needed for e.g. pre-compiling a batch of modules before
// any of them runs.
func (c *Context) Parse(src, sourceName string) (*Script, error) {
	bc, err := parser.Parse(src, c.Interner, parser.Options{SourceName: sourceName})
	if err != nil {
		return nil, err
	}
	c.Metrics.IncParseCount()
	return &Script{ctx: c, bc: bc}, nil
}

// Call invokes fn with this and args, the public entry point over
// vm.VM.Call.
func (c *Context) Call(fn, this Value, args []Value) (Value, error) {
	result, err := c.VM.Call(fn.raw, this.raw, c.unwrapAll(args))
	if err != nil {
		c.Metrics.IncExceptionsThrown()
		return Value{}, err
	}
	return c.wrap(result), nil
}

// Construct invokes fn as `new fn(args...)`.
func (c *Context) Construct(fn Value, args []Value) (Value, error) {
	result, err := c.VM.Construct(fn.raw, c.unwrapAll(args))
	if err != nil {
		c.Metrics.IncExceptionsThrown()
		return Value{}, err
	}
	return c.wrap(result), nil
}

// Backtrace returns the currently executing call-frame chain, or nil if
// no script/function is running - spec.md section 3's Backtrace
// capture, exposed for debugger-style introspection outside of an
// exception (vm.CaptureBacktrace covers the exception-time case inside
// the VM itself).
func (c *Context) Backtrace(maxFrames int) []vm.BacktraceFrame {
	return c.VM.CurrentBacktrace(maxFrames)
}

// Global returns the context's global object as a Value, letting an
// embedder read or define top-level bindings directly through the
// Object/property API rather than only via Eval.
func (c *Context) Global() Value {
	return c.wrap(value.HeapRef(c.VM.GlobalObject))
}

func (c *Context) wrap(v value.Value) Value {
	return Value{ctx: c, raw: v}
}

func (c *Context) unwrapAll(vs []Value) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = v.raw
	}
	return out
}

// Script is bytecode compiled by Parse but not yet run.
type Script struct {
	ctx *Context
	bc  *bytecode.Bytecode
}

// Run executes the script as a top-level program, returning its
// completion value. A Script may be run more than once; each run
// re-hoists and re-executes the same compiled bytecode (spec.md section
// 3's "a Bytecode object is shared by every closure over it").
func (s *Script) Run() (Value, error) {
	result, err := s.ctx.VM.RunProgram(s.bc, value.Undefined)
	s.ctx.DrainJobs()
	s.ctx.Metrics.SetMicrotaskQueueDepth(s.ctx.Jobs.Len())
	if err != nil {
		s.ctx.Metrics.IncExceptionsThrown()
		return Value{}, err
	}
	return s.ctx.wrap(result), nil
}

// SourceName returns the name attached to the script at parse time.
func (s *Script) SourceName() string {
	return s.bc.Header.SourceName
}
