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
	"os"
	"runtime"
	"strconv"

	"github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/module"
	"github.com/kraklabs/jjs/object"
)

// registerHostModules installs the virtual modules jjsrun offers every
// script - a synthetic "os" module exposing the platform/args the
// process was started with, the way Node's own built-in modules are
// implemented in the host rather than loaded from disk.
func registerHostModules(vmod *module.VModRegistry) error {
	return vmod.Register("os", func(c *jjs.Context, m *module.SyntheticModule) error {
		platform, err := c.String(runtime.GOOS)
		if err != nil {
			return err
		}
		if err := m.SetExport("platform", platform); err != nil {
			return err
		}

		args, err := c.NewObject()
		if err != nil {
			return err
		}
		for i, a := range os.Args {
			v, err := c.String(a)
			if err != nil {
				return err
			}
			if err := args.DefineDataProperty(strconv.Itoa(i), v, object.FlagWritable|object.FlagEnumerable|object.FlagConfigurable|object.FlagValueDefined); err != nil {
				return err
			}
		}
		return m.SetExport("args", args)
	})
}
