// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package strtab

// MagicTable is the compile-time table of frequently-used strings
// (spec.md section 4.3, "Magic table"). Indices into this table are
// stable within a build and are how a literal HeapString avoids heap
// allocation entirely. The embedder may append to this table at context
// init via ExtendMagicTable; indices assigned before extension never
// change, so already-produced bytecode literal pools stay valid.
var (
	MagicTable      = buildMagicTable()
	magicTableIndex = buildMagicTableIndex(MagicTable)
)

// magicSeed lists the subset of ECMA-262's most common property and
// built-in names. The reference table runs to several hundred entries;
// this seed covers the strings this implementation's builtins package and
// parser actually reference by literal index, per spec.md section 4.3
// ("~hundreds of frequent strings").
var magicSeed = []string{
	"", // index 0: the empty string, used as a sentinel by the parser
	"length", "name", "message", "stack", "prototype", "constructor",
	"toString", "valueOf", "toJSON", "Symbol.toPrimitive", "undefined",
	"null", "true", "false", "NaN", "Infinity", "arguments", "this",
	"Object", "Function", "Array", "String", "Number", "Boolean",
	"Symbol", "BigInt", "Error", "TypeError", "RangeError",
	"ReferenceError", "SyntaxError", "URIError", "EvalError",
	"AggregateError", "Promise", "Map", "Set", "WeakMap", "WeakSet",
	"WeakRef", "FinalizationRegistry", "Proxy", "Reflect", "Math",
	"JSON", "Date", "RegExp", "done", "value", "next", "return", "throw",
	"get", "set", "call", "apply", "bind", "configurable", "enumerable",
	"writable", "get ", "set ", "default", "exports", "module",
	"require", "__filename", "__dirname", "async", "await", "yield",
	"target", "handler", "revoke", "then", "catch", "finally", "resolve",
	"reject", "cause", "errors", "size", "byteLength", "buffer",
	"global", "globalThis",
}

func buildMagicTable() [][]byte {
	out := make([][]byte, len(magicSeed))
	for i, s := range magicSeed {
		out[i] = EncodeCESU8(s)
	}
	return out
}

func buildMagicTableIndex(table [][]byte) map[string]int {
	idx := make(map[string]int, len(table))
	for i, b := range table {
		idx[string(b)] = i
	}
	return idx
}

// ExtendMagicTable appends embedder-supplied strings to the table at
// context init (spec.md section 4.3, "The embedder may extend the magic
// table at context init") and returns the index assigned to the first of
// them. It must not be called after any HeapString has been constructed
// with NewLiteral against the prior table length from a concurrently
// running context - MagicTable is process-global and intended to be
// extended once, early, by the host program before creating contexts.
func ExtendMagicTable(extra ...string) (firstIndex int) {
	firstIndex = len(MagicTable)
	for _, s := range extra {
		encoded := EncodeCESU8(s)
		magicTableIndex[string(encoded)] = len(MagicTable)
		MagicTable = append(MagicTable, encoded)
	}
	return firstIndex
}

// LookupMagic returns the magic-table index for s if present, and ok.
// Used by the intern set to prefer a literal over allocating a heap
// string for a name the table already knows.
func LookupMagic(cesu8 []byte) (idx int, ok bool) {
	idx, ok = magicTableIndex[string(cesu8)]
	return idx, ok
}
