// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/module"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/vm"
)

// runner bundles the Context and module machinery a single jjsrun
// invocation needs, so --watch can re-run the same script through the
// same loader and cache rather than rebuilding either per reload.
type runner struct {
	ctx        *jjs.Context
	loader     *module.Loader
	scriptPath string
	scriptDir  string
	globals    globalFlags
}

func newRunner(scriptPath, configPath, pmapPath string, globals globalFlags) (*runner, error) {
	opts := jjs.DefaultOptions()
	if configPath != "" {
		loaded, err := jjs.LoadOptions(configPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	if globals.Verbose > 0 {
		opts.LogLevel = "debug"
	}
	if globals.Quiet {
		opts.LogLevel = "error"
	}

	ctx, err := jjs.NewContext(opts)
	if err != nil {
		return nil, err
	}

	var pmap *module.PackageMap
	if pmapPath != "" {
		pmap, err = module.LoadPackageMap(pmapPath)
		if err != nil {
			ctx.Close()
			return nil, err
		}
	}

	vmod := module.NewVModRegistry()
	if err := registerHostModules(vmod); err != nil {
		ctx.Close()
		return nil, err
	}

	scriptDir := filepath.Dir(scriptPath)
	loader := module.NewLoader(ctx, vmod, pmap, scriptDir)

	requireFn, err := ctx.NewNativeFunction(func(c *jjs.Context, this jjs.Value, args []jjs.Value) (jjs.Value, error) {
		if len(args) == 0 {
			return jjs.Value{}, fmt.Errorf("require: missing specifier argument")
		}
		spec, err := args[0].ToString()
		if err != nil {
			return jjs.Value{}, err
		}
		return loader.Require(spec, scriptDir)
	})
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if err := ctx.Global().DefineDataProperty("require", requireFn,
		object.FlagWritable|object.FlagConfigurable|object.FlagValueDefined); err != nil {
		ctx.Close()
		return nil, err
	}

	r := &runner{ctx: ctx, loader: loader, scriptPath: scriptPath, scriptDir: scriptDir, globals: globals}
	r.preLink(pmap)
	return r, nil
}

// preLink gives the embedder visible feedback while every bare
// specifier named by the package map is resolved and required up front,
// the same "show a bar while a batch of slow operations completes"
// shape cmd/cie/index.go's indexing progress callback uses - except
// here the total is known before the loop starts, so the bar is built
// once rather than recreated per phase.
func (r *runner) preLink(pmap *module.PackageMap) {
	if pmap == nil || len(pmap.Packages) == 0 || r.globals.Quiet {
		return
	}
	bar := progressbar.NewOptions(len(pmap.Packages),
		progressbar.OptionSetDescription("linking modules"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	for name := range pmap.Packages {
		_, _ = r.loader.Require(name, r.scriptDir)
		_ = bar.Add(1)
	}
}

func (r *runner) runOnce() error {
	src, err := os.ReadFile(r.scriptPath)
	if err != nil {
		return err
	}

	result, err := r.ctx.Eval(string(src), r.scriptPath)
	if err != nil {
		if thrown, ok := vm.AsThrown(err); ok {
			msg, dispErr := r.ctx.VM.ToDisplayString(thrown)
			if dispErr == nil {
				return fmt.Errorf("uncaught exception: %s", msg)
			}
		}
		return err
	}

	if !result.IsUndefined() && !r.globals.Quiet {
		s, err := r.ctx.VM.ToDisplayString(result.Raw())
		if err == nil {
			fmt.Fprintln(os.Stdout, color.CyanString(s))
		}
	}
	return nil
}
