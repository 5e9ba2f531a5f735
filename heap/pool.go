// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package heap

// sizeClasses mirrors the reference pool allocator's four small size
// classes (spec.md section 4.1). Go's runtime allocator already performs
// size-classed small-object allocation internally, so there is no
// separate free-list tier to hand-roll here; sizeClasses is retained as
// the contract other packages (notably strtab, for its direct-string
// inline threshold) consult when deciding whether a payload fits inline
// or needs an external allocation, matching the reference's class
// boundaries.
var sizeClasses = [4]int{8, 16, 32, 64}

// FitsSmallClass reports whether n bytes would have been served by the
// reference's pool allocator rather than its block allocator - used by
// strtab to pick the "direct" vs "extended" string representation
// (spec.md section 3, "Heap object classes").
func FitsSmallClass(n int) bool {
	return n <= sizeClasses[len(sizeClasses)-1]
}

// DebugGCBeforeEachAlloc mirrors MEM_GC_BEFORE_EACH_ALLOC (spec.md
// section 4.1): when true, the owning Context runs a full PressureHigh
// collection before every allocation. It is a debug-build knob, not
// something the Arena enforces itself, since GC requires root
// information only the Context has.
type DebugGCBeforeEachAlloc struct {
	Enabled bool
}
