// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !jjs_debug

package heap

// assertf is a no-op outside a jjs_debug build, matching the reference's
// #ifndef JJS_NDEBUG compile-time elision of jjs_assert.
func assertf(cond bool, format string, args ...any) {}
