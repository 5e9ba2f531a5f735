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

	jjs "github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/object"
)

// Factory populates a synthetic module's exports via m.SetExport, the
// Go-implemented-module analogue of jjs-ext's vmod API (a module whose
// body is a host callback rather than parsed JS source).
type Factory func(ctx *jjs.Context, m *SyntheticModule) error

// SyntheticModule is the exports object a Factory populates. Every
// export must be set before the factory returns; the loader freezes the
// underlying object immediately afterward, so a held *SyntheticModule
// used past that point only ever rejects further writes.
type SyntheticModule struct {
	ctx      *jjs.Context
	exports  jjs.Value
	objIdx   heap.Index
	evaluated bool
}

func newSyntheticModule(ctx *jjs.Context) (*SyntheticModule, error) {
	obj, err := ctx.NewObject()
	if err != nil {
		return nil, err
	}
	return &SyntheticModule{ctx: ctx, exports: obj, objIdx: obj.Raw().AsHeapRef()}, nil
}

// SetExport defines name as a data property on the module's exports
// object. Returns an error once the module has been evaluated (the
// loader calls the factory exactly once, then freezes the result).
func (m *SyntheticModule) SetExport(name string, v jjs.Value) error {
	if m.evaluated {
		return fmt.Errorf("module: SetExport(%q) called after the module was evaluated", name)
	}
	return m.exports.DefineDataProperty(name, v, object.FlagWritable|object.FlagEnumerable|object.FlagConfigurable|object.FlagValueDefined)
}

// Exports returns the module's exports object.
func (m *SyntheticModule) Exports() jjs.Value {
	return m.exports
}

// VModRegistry holds Factories keyed by module specifier, resolved
// ahead of filesystem/package-map lookup by Loader.Require. Collision
// semantics: the last Register call before a name's first require()
// wins; Register after that point is rejected, since the module's
// exports object has already been materialized and handed out.
type VModRegistry struct {
	factories map[string]Factory
	locked    map[string]bool
}

// NewVModRegistry returns an empty registry.
func NewVModRegistry() *VModRegistry {
	return &VModRegistry{factories: map[string]Factory{}, locked: map[string]bool{}}
}

// Register binds name to factory. Returns an error if name has already
// been required once (and so is locked).
func (r *VModRegistry) Register(name string, factory Factory) error {
	if r.locked[name] {
		return fmt.Errorf("module: cannot register %q: already required", name)
	}
	r.factories[name] = factory
	return nil
}

// lookup returns name's factory and locks the name against further
// registration, the "first require() wins" half of the collision rule.
func (r *VModRegistry) lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	if ok {
		r.locked[name] = true
	}
	return f, ok
}
