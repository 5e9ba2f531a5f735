// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vm

import "github.com/kraklabs/jjs/port"

// unreachable is the Go rendering of the reference's jjs_unreachable
// (jjs-core/jrt/jrt-fatals.c): a code path the interpreter's own
// invariants say can never run. It calls the embedder's Fatal hook
// rather than panicking outright, so a host with a custom Port can log
// or flush diagnostics before the process goes down.
func (vm *VM) unreachable(reason string) {
	if vm.Logger != nil {
		vm.Logger.Error("vm: unreachable code reached", "reason", reason)
	}
	if vm.Port != nil {
		vm.Port.Fatal(port.FatalFailedAssertion)
		return
	}
	panic("vm: unreachable: " + reason)
}
