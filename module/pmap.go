// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package module implements the module loader (module map entry L13):
// CommonJS-style require() resolution over the filesystem, a package
// map for bare-specifier aliasing, a virtual-module registry for
// modules implemented in Go rather than JS, and the annex path/file-URL
// conversions a loader needs to report module identities.
package module

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PackageMap aliases bare specifiers ("lodash") to a filesystem root, the
// way a Node "imports" field or an import-map resolves a package name
// without a relative path - loaded from YAML the same way jjs.Options
// loads its own config (cmd/cie/config.go's defaults-then-unmarshal
// shape).
type PackageMap struct {
	Packages map[string]string `yaml:"packages"`
}

// LoadPackageMap reads a YAML package map file.
func LoadPackageMap(path string) (*PackageMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("module: reading package map %s: %w", path, err)
	}
	pm := &PackageMap{Packages: map[string]string{}}
	if err := yaml.Unmarshal(data, pm); err != nil {
		return nil, fmt.Errorf("module: parsing package map %s: %w", path, err)
	}
	return pm, nil
}

// Resolve returns the filesystem root aliased to specifier, if any.
func (pm *PackageMap) Resolve(specifier string) (string, bool) {
	if pm == nil {
		return "", false
	}
	root, ok := pm.Packages[specifier]
	return root, ok
}
