// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jjs "github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
)

// cacheEntry is one resolved module's state: exports (settled once
// Evaluate completes) and the in-progress flag that lets a circular
// require() observe the partially-built exports object rather than
// recursing forever, the same "module.exports placeholder visible to a
// circular require" behavior CommonJS hosts rely on.
type cacheEntry struct {
	exports    jjs.Value
	evaluating bool
	evaluated  bool
}

// Loader resolves and runs CommonJS-style modules against one
// jjs.Context: a specifier first checks the VModRegistry (Go-
// implemented virtual modules), then the PackageMap (bare-specifier
// aliasing), and finally the filesystem relative to the requiring
// module's directory.
type Loader struct {
	ctx   *jjs.Context
	vmod  *VModRegistry
	pmap  *PackageMap
	roots []string // searched, in order, for a bare specifier pmap doesn't alias
	cache map[string]*cacheEntry
}

// NewLoader constructs a Loader over ctx. roots are additional base
// directories searched for a bare specifier not found in vmod or pmap
// (the role node_modules plays for an unaliased package name).
func NewLoader(ctx *jjs.Context, vmod *VModRegistry, pmap *PackageMap, roots ...string) *Loader {
	return &Loader{ctx: ctx, vmod: vmod, pmap: pmap, roots: roots, cache: map[string]*cacheEntry{}}
}

// Require resolves specifier relative to fromDir and returns its
// exports, loading and evaluating the module on first reference and
// returning the cached result afterward.
func (l *Loader) Require(specifier, fromDir string) (jjs.Value, error) {
	if factory, ok := l.vmod.lookup(specifier); ok {
		return l.requireSynthetic(specifier, factory)
	}

	resolved, err := l.resolve(specifier, fromDir)
	if err != nil {
		return jjs.Value{}, err
	}
	if entry, ok := l.cache[resolved]; ok {
		return entry.exports, nil
	}
	return l.requireFile(resolved)
}

func (l *Loader) requireSynthetic(specifier string, factory Factory) (jjs.Value, error) {
	if entry, ok := l.cache["vmod:"+specifier]; ok {
		return entry.exports, nil
	}
	sm, err := newSyntheticModule(l.ctx)
	if err != nil {
		return jjs.Value{}, err
	}
	if err := factory(l.ctx, sm); err != nil {
		return jjs.Value{}, fmt.Errorf("module: synthetic module %q: %w", specifier, err)
	}
	sm.evaluated = true
	if err := freeze(l.ctx, sm.objIdx); err != nil {
		return jjs.Value{}, err
	}
	l.cache["vmod:"+specifier] = &cacheEntry{exports: sm.exports, evaluated: true}
	return sm.exports, nil
}

func (l *Loader) requireFile(path string) (jjs.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return jjs.Value{}, fmt.Errorf("module: reading %s: %w", path, err)
	}

	moduleObj, err := l.ctx.NewObject()
	if err != nil {
		return jjs.Value{}, err
	}
	exportsObj, err := l.ctx.NewObject()
	if err != nil {
		return jjs.Value{}, err
	}
	if err := moduleObj.DefineDataProperty("exports", exportsObj, object.FlagWritable|object.FlagEnumerable|object.FlagConfigurable|object.FlagValueDefined); err != nil {
		return jjs.Value{}, err
	}

	entry := &cacheEntry{exports: exportsObj, evaluating: true}
	l.cache[path] = entry

	dir := filepath.Dir(path)
	requireFn, err := l.ctx.NewNativeFunction(func(ctx *jjs.Context, this jjs.Value, args []jjs.Value) (jjs.Value, error) {
		spec := ""
		if len(args) > 0 {
			s, err := args[0].ToString()
			if err != nil {
				return jjs.Value{}, err
			}
			spec = s
		}
		return l.Require(spec, dir)
	})
	if err != nil {
		return jjs.Value{}, err
	}

	filenameVal, err := l.ctx.String(path)
	if err != nil {
		return jjs.Value{}, err
	}
	dirnameVal, err := l.ctx.String(dir)
	if err != nil {
		return jjs.Value{}, err
	}

	wrapperSrc := "return (function(module, exports, require, __filename, __dirname) {\n" + string(src) + "\n});"
	script, err := l.ctx.Parse(wrapperSrc, path)
	if err != nil {
		return jjs.Value{}, fmt.Errorf("module: parsing %s: %w", path, err)
	}
	wrapperFn, err := script.Run()
	if err != nil {
		return jjs.Value{}, err
	}

	if _, err := l.ctx.Call(wrapperFn, l.ctx.Undefined(), []jjs.Value{moduleObj, exportsObj, requireFn, filenameVal, dirnameVal}); err != nil {
		delete(l.cache, path)
		return jjs.Value{}, err
	}

	finalExports := exportsObj
	if v, ok := moduleObj.GetProperty("exports"); ok {
		finalExports = v
	}
	entry.exports = finalExports
	entry.evaluating = false
	entry.evaluated = true
	return finalExports, nil
}

// Invalidate drops path's cached module, if any, so the next Require
// for it re-reads and re-evaluates the file - the unit of work a
// Watcher's debounced reload performs per changed file.
func (l *Loader) Invalidate(path string) {
	delete(l.cache, path)
}

// resolve turns specifier (relative, absolute, or bare) into an
// absolute path, per Node's CommonJS resolution algorithm simplified to
// this engine's single-file-module scope (no package.json "main", no
// directory index fallback beyond adding a .js extension).
func (l *Loader) resolve(specifier, fromDir string) (string, error) {
	if root, ok := l.pmap.Resolve(specifier); ok {
		return withJSExt(root), nil
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || filepath.IsAbs(specifier) {
		joined := specifier
		if !filepath.IsAbs(specifier) {
			joined = filepath.Join(fromDir, specifier)
		}
		return withJSExt(joined), nil
	}
	for _, root := range l.roots {
		candidate := withJSExt(filepath.Join(root, specifier))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("module: cannot resolve %q from %s", specifier, fromDir)
}

func withJSExt(path string) string {
	if filepath.Ext(path) == "" {
		return path + ".js"
	}
	return path
}

// freeze marks objIdx and every own property on it non-writable,
// non-configurable, and non-extensible - the "synthetic module exports
// are frozen once evaluation completes" rule, applied directly via
// object.Store rather than through builtins.objectFreeze (unexported,
// and this only ever runs on a loader-owned object, never arbitrary
// script input).
func freeze(ctx *jjs.Context, objIdx heap.Index) error {
	for _, name := range ctx.Objects.OwnPropertyNames(objIdx) {
		slot, ok := ctx.Objects.GetOwnProperty(objIdx, name)
		if !ok {
			continue
		}
		flags := object.FlagEnumerable | object.FlagValueDefined
		if err := ctx.Objects.DefineOwnDataProperty(objIdx, name, slot.Data, flags); err != nil {
			return err
		}
	}
	ctx.Arena.Get(objIdx).(*object.Object).SetExtensible(false)
	return nil
}
