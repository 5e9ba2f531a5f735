// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package object implements the engine's object and property model:
// object headers, the property-pair chain, an attached hashmap index for
// large objects, a small lookup cache, fast dense arrays, and Proxy
// (spec.md section 4.4).
package object

// PropFlags is the per-property descriptor bitfield (spec.md section
// 4.4, "Property descriptor flags").
type PropFlags uint8

const (
	FlagWritable PropFlags = 1 << iota
	FlagEnumerable
	FlagConfigurable
	FlagIsData
	FlagIsAccessor
	FlagGetDefined
	FlagSetDefined
	FlagValueDefined
)

func (f PropFlags) Has(bit PropFlags) bool { return f&bit != 0 }

// ObjFlags holds object-level state independent of any single property.
type ObjFlags uint16

const (
	ObjExtensible ObjFlags = 1 << iota
	ObjIsArray
	ObjIsCallable
	ObjIsConstructor
	ObjFastArray // set only while the array invariant (spec.md 3, inv. 4) holds
	ObjRevoked   // Proxy only
)

func (f ObjFlags) Has(bit ObjFlags) bool { return f&bit != 0 }

// Kind distinguishes an object's internal layout and [[...]] method set
// (spec.md section 3, "Object": "Type tag distinguishes plain, function,
// bound-function, array, arguments, proxy, class-of-X builtin").
type Kind uint8

const (
	KindPlain Kind = iota
	KindArray
	KindFunction
	KindBoundFunction
	KindArguments
	KindProxy
	KindError
	KindPromise
	KindBuiltinClass // class-of-X builtin instance (Date, RegExp, Map, ...)
)
