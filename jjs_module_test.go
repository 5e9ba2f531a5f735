// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package jjs_test

import (
	"os"
	"path/filepath"
	"testing"

	jjs "github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/module"
	"github.com/kraklabs/jjs/object"
	"github.com/stretchr/testify/require"
)

// TestRequireSyntheticModule_S6 is spec scenario S6: a Go-implemented
// virtual module is require()'d from script and its exports are used,
// exercising the public jjs API and the module package together - the
// way a host embeds a native capability (here a trivial "os" vmod) as a
// JS-visible module rather than a global.
func TestRequireSyntheticModule_S6(t *testing.T) {
	ctx, err := jjs.NewContext(jjs.DefaultOptions())
	require.NoError(t, err)
	defer ctx.Close()

	reg := module.NewVModRegistry()
	require.NoError(t, reg.Register("os", func(c *jjs.Context, m *module.SyntheticModule) error {
		platform, err := c.String("jjs")
		if err != nil {
			return err
		}
		return m.SetExport("platform", platform)
	}))
	loader := module.NewLoader(ctx, reg, nil)

	requireFn, err := ctx.NewNativeFunction(func(c *jjs.Context, this jjs.Value, args []jjs.Value) (jjs.Value, error) {
		spec, err := args[0].ToString()
		if err != nil {
			return jjs.Value{}, err
		}
		return loader.Require(spec, "")
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Global().DefineDataProperty("require", requireFn,
		object.FlagWritable|object.FlagConfigurable|object.FlagValueDefined))

	result, err := ctx.Eval(`return require("os").platform;`, "s6.js")
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "jjs", s)
}

// TestRequireFileModule_S6File is the filesystem-backed half of S6: a
// module on disk is require()'d relative to an entry script's directory.
func TestRequireFileModule_S6File(t *testing.T) {
	ctx, err := jjs.NewContext(jjs.DefaultOptions())
	require.NoError(t, err)
	defer ctx.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.js"),
		[]byte(`module.exports = function(name) { return "hello " + name; };`), 0o644))

	loader := module.NewLoader(ctx, module.NewVModRegistry(), nil)
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

	result, err := ctx.Eval(`return require("./greet.js")("world");`, filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	s, err := result.ToString()
	require.NoError(t, err)
	require.Equal(t, "hello world", s)
}
