// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build jjs_debug

package heap

import "fmt"

// assertf panics with a formatted message when cond is false, the Go
// rendering of the reference's jjs_assert/jjs_assert_fail
// (jjs-core/jrt/jrt-fatals.c), compiled only under the jjs_debug build
// tag exactly as the original guards it with #ifndef JJS_NDEBUG.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("jjs: assertion failed: "+format, args...))
	}
}
