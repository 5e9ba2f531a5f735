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
	"testing"

	jjs "github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/object"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *jjs.Context {
	t.Helper()
	ctx, err := jjs.NewContext(jjs.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	return ctx
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoaderRequireRelativeFileExportsValue(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	writeFile(t, dir, "value.js", `module.exports = { answer: 42 };`)
	entry := writeFile(t, dir, "main.js", `
		var mod = require("./value.js");
		return mod.answer;
	`)

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	src, err := os.ReadFile(entry)
	require.NoError(t, err)
	exports, err := runEntrySource(t, ctx, loader, entry, string(src))
	require.NoError(t, err)
	n, err := exports.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(42), n)
}

// runEntrySource evaluates src as if it were the body of the file at
// path, giving it a working require() bound to loader - mirroring what
// Loader.requireFile does for a required module, but for the top-level
// entry script a host (cmd/jjsrun) would run directly.
func runEntrySource(t *testing.T, ctx *jjs.Context, loader *Loader, path, src string) (jjs.Value, error) {
	t.Helper()
	dir := filepath.Dir(path)
	requireFn, err := ctx.NewNativeFunction(func(c *jjs.Context, this jjs.Value, args []jjs.Value) (jjs.Value, error) {
		spec, err := args[0].ToString()
		if err != nil {
			return jjs.Value{}, err
		}
		return loader.Require(spec, dir)
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Global().DefineDataProperty("require", requireFn,
		object.FlagWritable|object.FlagConfigurable|object.FlagValueDefined))
	return ctx.Eval(src, path)
}

func TestLoaderCachesModuleAcrossMultipleRequires(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	writeFile(t, dir, "counter.js", `
		var n = 0;
		module.exports = { next: function() { n = n + 1; return n; } };
	`)
	entry := writeFile(t, dir, "main.js", "")

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	a, err := runEntrySource(t, ctx, loader, entry, `var a = require("./counter.js"); return a.next();`)
	require.NoError(t, err)
	n, err := a.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(1), n)

	b, err := runEntrySource(t, ctx, loader, entry, `var b = require("./counter.js"); return b.next();`)
	require.NoError(t, err)
	n, err = b.ToNumber()
	require.NoError(t, err)
	require.Equal(t, float64(2), n, "second require must return the cached module, not a freshly re-evaluated one")
}

func TestLoaderCircularRequireSeesPlaceholderExports(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.js", `
		exports.name = "a";
		var b = require("./b.js");
		exports.sawBName = b.name;
	`)
	writeFile(t, dir, "b.js", `
		exports.name = "b";
		var a = require("./a.js");
		exports.sawAName = a.name;
	`)
	entry := writeFile(t, dir, "main.js", "")

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	result, err := runEntrySource(t, ctx, loader, entry, `
		var a = require("./a.js");
		return a.sawBName + "," + a.name;
	`)
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "b,a", s)
}

func TestLoaderResolvesBareSpecifierViaPackageMap(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	writeFile(t, dir, "thing.js", `module.exports = "from-pmap";`)
	entry := writeFile(t, dir, "main.js", "")

	pmap := &PackageMap{Packages: map[string]string{"thing": filepath.Join(dir, "thing")}}
	loader := NewLoader(ctx, NewVModRegistry(), pmap)
	result, err := runEntrySource(t, ctx, loader, entry, `return require("thing");`)
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "from-pmap", s)
}

func TestLoaderUnresolvableBareSpecifierErrors(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.js", "")

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	_, err := runEntrySource(t, ctx, loader, entry, `return require("nope");`)
	require.Error(t, err)
}

func TestVModRegistryFirstRequireWinsCollision(t *testing.T) {
	ctx := newTestContext(t)
	reg := NewVModRegistry()
	require.NoError(t, reg.Register("env", func(c *jjs.Context, m *SyntheticModule) error {
		v, err := c.String("first")
		if err != nil {
			return err
		}
		return m.SetExport("which", v)
	}))

	dir := t.TempDir()
	entry := writeFile(t, dir, "main.js", "")
	loader := NewLoader(ctx, reg, nil)
	result, err := runEntrySource(t, ctx, loader, entry, `return require("env").which;`)
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "first", s)

	err = reg.Register("env", func(c *jjs.Context, m *SyntheticModule) error {
		return m.SetExport("which", c.Undefined())
	})
	require.Error(t, err, "registering env again after it was already required must be rejected")
}

func TestSyntheticModuleFreezesExportsAfterEvaluate(t *testing.T) {
	ctx := newTestContext(t)
	reg := NewVModRegistry()
	var captured *SyntheticModule
	require.NoError(t, reg.Register("frozen", func(c *jjs.Context, m *SyntheticModule) error {
		captured = m
		v, err := c.Number(1)
		if err != nil {
			return err
		}
		return m.SetExport("value", v)
	}))

	dir := t.TempDir()
	entry := writeFile(t, dir, "main.js", "")
	loader := NewLoader(ctx, reg, nil)
	_, err := runEntrySource(t, ctx, loader, entry, `return require("frozen").value;`)
	require.NoError(t, err)

	require.NotNil(t, captured)
	err = captured.SetExport("value", ctx.Undefined())
	require.Error(t, err, "SetExport after evaluate must be rejected")
}

func TestPathToFileURLRoundTrip(t *testing.T) {
	abs := filepath.Join(string(filepath.Separator), "tmp", "pkg", "index.js")
	if filepath.Separator != '/' {
		t.Skip("file URL test assumes POSIX-style absolute paths")
	}
	u, err := PathToFileURL(abs)
	require.NoError(t, err)
	require.Equal(t, "file://"+abs, u)

	back, err := FileURLToPath(u)
	require.NoError(t, err)
	require.Equal(t, abs, back)
}

func TestPathToFileURLRejectsRelativePath(t *testing.T) {
	_, err := PathToFileURL("relative/path.js")
	require.Error(t, err)
}

func TestFileURLToPathRejectsNonFileScheme(t *testing.T) {
	_, err := FileURLToPath("https://example.com/index.js")
	require.Error(t, err)
}

func TestPackageMapResolveMissingSpecifier(t *testing.T) {
	pm := &PackageMap{Packages: map[string]string{"a": "/root/a"}}
	_, ok := pm.Resolve("b")
	require.False(t, ok)

	var nilPM *PackageMap
	_, ok = nilPM.Resolve("a")
	require.False(t, ok)
}

func TestLoaderInvalidateForcesReEvaluation(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.js", `module.exports = "v1";`)
	entry := writeFile(t, dir, "main.js", "")

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	first, err := runEntrySource(t, ctx, loader, entry, fmt.Sprintf(`return require(%q);`, path))
	require.NoError(t, err)
	s, err := first.ToString()
	require.NoError(t, err)
	require.Equal(t, "v1", s)

	require.NoError(t, os.WriteFile(path, []byte(`module.exports = "v2";`), 0o644))
	loader.Invalidate(path)

	second, err := runEntrySource(t, ctx, loader, entry, fmt.Sprintf(`return require(%q);`, path))
	require.NoError(t, err)
	s, err = second.ToString()
	require.NoError(t, err)
	require.Equal(t, "v2", s, "Invalidate must force the next require to re-read the file")
}

func TestNewWatcherSkipsConfiguredDirectories(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0o755))

	loader := NewLoader(ctx, NewVModRegistry(), nil)
	w, err := NewWatcher(loader, []string{dir})
	require.NoError(t, err)
	defer w.Close()
}
