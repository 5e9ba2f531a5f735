// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package heap

import "errors"

// ErrOutOfMemory is returned by Alloc when the arena's configured Limit is
// reached. The owning Context is expected to run a HIGH-pressure GC and
// retry once before escalating to port.Fatal(FatalOutOfMemory)
// (spec.md section 4.1, "Allocation contract").
var ErrOutOfMemory = errors.New("heap: out of memory")
