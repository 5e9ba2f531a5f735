// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import isatty_pkg "github.com/mattn/go-isatty"

// isatty reports whether fd refers to a terminal, so color output
// disables itself automatically when stdout is redirected to a file or
// pipe rather than only responding to --no-color/NO_COLOR.
func isatty(fd uintptr) bool {
	return isatty_pkg.IsTerminal(fd) || isatty_pkg.IsCygwinTerminal(fd)
}
