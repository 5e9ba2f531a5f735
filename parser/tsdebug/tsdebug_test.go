// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build jjs_tsdebug

package tsdebug

import "testing"

func TestDumpProducesNonEmptyTree(t *testing.T) {
	out, err := Dump([]byte("function f(a, b) { return a + b; }"))
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if out == "" {
		t.Fatal("Dump() returned an empty string")
	}
}

func TestDumpReflectsSourceSpan(t *testing.T) {
	src := []byte("const x = 1;")
	out, err := Dump(src)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if got, want := len(src), 12; got != want {
		t.Fatalf("test fixture length changed, update the expected span: got %d want %d", got, want)
	}
}
