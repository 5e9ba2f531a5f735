// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package heap

import "fmt"

// boundaryTagRegion is a variable-size block allocator over a single
// contiguous []byte, used when an embedder supplies an external heap
// buffer (spec.md section 4.1, "Optional external heap"). Free blocks are
// tracked in a list sorted by address, each carrying an implicit boundary
// tag (offset, length) so adjacent frees coalesce in O(1) relative to
// their neighbors. This is the variable-size counterpart to the
// small-object size classes in pool.go, which Go's own allocator already
// subsumes for ordinary (non-external-buffer) arenas.
type boundaryTagRegion struct {
	buf   []byte
	freed []blockSpan // sorted by Offset
}

type blockSpan struct {
	Offset int
	Length int
}

func newBoundaryTagRegion(buf []byte) *boundaryTagRegion {
	return &boundaryTagRegion{buf: buf, freed: []blockSpan{{Offset: 0, Length: len(buf)}}}
}

// Alloc returns a zeroed sub-slice of length n, aligned to align bytes
// (the compressed-pointer granule), or an error if no free span is large
// enough. This mirrors the reference allocator's "returns a zeroed block
// aligned to the compressed-pointer granule" contract (spec.md 4.1).
func (r *boundaryTagRegion) Alloc(n, align int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("heap: invalid allocation size %d", n)
	}
	for i, span := range r.freed {
		start := alignUp(span.Offset, align)
		pad := start - span.Offset
		need := pad + n
		if need > span.Length {
			continue
		}
		rest := span.Length - need
		if rest == 0 {
			r.freed = append(r.freed[:i], r.freed[i+1:]...)
		} else {
			r.freed[i] = blockSpan{Offset: span.Offset + need, Length: rest}
		}
		out := r.buf[start : start+n]
		for i := range out {
			out[i] = 0
		}
		return out, nil
	}
	return nil, ErrOutOfMemory
}

// Free returns [offset, offset+length) to the free list, coalescing with
// any adjacent spans.
func (r *boundaryTagRegion) Free(offset, length int) {
	span := blockSpan{Offset: offset, Length: length}
	i := 0
	for ; i < len(r.freed) && r.freed[i].Offset < span.Offset; i++ {
	}
	r.freed = append(r.freed, blockSpan{})
	copy(r.freed[i+1:], r.freed[i:])
	r.freed[i] = span
	r.coalesce()
}

func (r *boundaryTagRegion) coalesce() {
	out := r.freed[:0]
	for _, span := range r.freed {
		if n := len(out); n > 0 && out[n-1].Offset+out[n-1].Length == span.Offset {
			out[n-1].Length += span.Length
			continue
		}
		out = append(out, span)
	}
	r.freed = out
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
