// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package object

import "github.com/kraklabs/jjs/heap"

// LookupCacheSize is the default entry count (spec.md section 4.4,
// "default 128-entry direct-mapped L1").
const LookupCacheSize = 128

type cacheEntry struct {
	valid  bool
	objIdx heap.Index
	nameH  uint32
	pair   heap.Index
	slot   int
}

// LookupCache is a small direct-mapped cache from (object, property name)
// to the property-pair slot that held it the last time it was resolved.
// It is invalidated coarsely - any mutation of an object's own
// properties, or of any object's prototype chain, clears the whole cache
// rather than tracking per-entry dependencies (spec.md section 4.4:
// "coarse invalidation is acceptable").
type LookupCache struct {
	entries [LookupCacheSize]cacheEntry
}

func NewLookupCache() *LookupCache { return &LookupCache{} }

func bucketFor(objIdx heap.Index, nameHash uint32) int {
	h := uint32(objIdx)*2654435761 ^ nameHash
	return int(h % LookupCacheSize)
}

// Lookup returns the cached (pair, slot) for (objIdx, nameHash), if the
// bucket still matches both keys.
func (c *LookupCache) Lookup(objIdx heap.Index, nameHash uint32) (pair heap.Index, slot int, ok bool) {
	e := &c.entries[bucketFor(objIdx, nameHash)]
	if !e.valid || e.objIdx != objIdx || e.nameH != nameHash {
		return heap.NullIndex, 0, false
	}
	return e.pair, e.slot, true
}

// Store records a resolution.
func (c *LookupCache) Store(objIdx heap.Index, nameHash uint32, pair heap.Index, slot int) {
	c.entries[bucketFor(objIdx, nameHash)] = cacheEntry{
		valid: true, objIdx: objIdx, nameH: nameHash, pair: pair, slot: slot,
	}
}

// Invalidate clears the entire cache (spec.md section 4.4, "coarse
// invalidation").
func (c *LookupCache) Invalidate() {
	for i := range c.entries {
		c.entries[i] = cacheEntry{}
	}
}
