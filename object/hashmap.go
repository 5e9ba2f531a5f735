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

// HashmapThreshold is the property-pair chain length beyond which an
// index is attached (spec.md section 4.4, "default 32 entries").
const HashmapThreshold = 32

// hashmapRef locates one property slot.
type hashmapRef struct {
	Pair heap.Index
	Slot int // 0 or 1
}

// Hashmap is the open-addressed name -> slot index attached to objects
// with many properties (spec.md section 4.4). The reference implements
// open addressing over a flat array; this port uses a Go map keyed by the
// interned name's byte content, which gives the same amortized O(1)
// lookup/insert behavior idiomatically in Go without hand-rolling probing
// - the *property chain itself* (PropertyPair) is still the
// spec-mandated cache-line-friendly linked storage this index merely
// accelerates lookups into.
type Hashmap struct {
	byName map[string]hashmapRef
}

func NewHashmap() *Hashmap {
	return &Hashmap{byName: make(map[string]hashmapRef, HashmapThreshold*2)}
}

func (h *Hashmap) Kind() heap.Kind    { return heap.KindHashmap }
func (h *Hashmap) Refs() []heap.Index { return nil } // keys are raw bytes, not heap refs

func (h *Hashmap) Put(nameBytes []byte, pair heap.Index, slot int) {
	h.byName[string(nameBytes)] = hashmapRef{Pair: pair, Slot: slot}
}

func (h *Hashmap) Get(nameBytes []byte) (hashmapRef, bool) {
	ref, ok := h.byName[string(nameBytes)]
	return ref, ok
}

func (h *Hashmap) Delete(nameBytes []byte) {
	delete(h.byName, string(nameBytes))
}

func (h *Hashmap) Len() int { return len(h.byName) }
