// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/heap"
	"github.com/kraklabs/jjs/strtab"
)

// ErrFlagMismatch is returned by Merge when the snapshots being combined
// were not all saved with the same Flags - spec.md section 6: "Snapshots
// from N contexts may be merged so long as their option flags match."
var ErrFlagMismatch = fmt.Errorf("snapshot: cannot merge snapshots with different flags")

// Bundle holds several independently-compiled top-level scripts packaged
// as one multi-script snapshot (one bytecode.Bytecode per entry point,
// e.g. a module graph pre-linked ahead of time by cmd/jjsrun).
type Bundle struct {
	Flags   Flags
	Scripts []*bytecode.Bytecode
}

// SaveBundle encodes every script in bundle.Scripts under one header, so
// a single Load (via LoadBundle) reproduces the whole set.
func SaveBundle(w io.Writer, arena *heap.Arena, bundle *Bundle) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(bundle.Scripts))); err != nil {
		return err
	}
	for _, bc := range bundle.Scripts {
		var sub bytes.Buffer
		if err := writeBytecode(&sub, arena, bc); err != nil {
			return err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(sub.Len())); err != nil {
			return err
		}
		if _, err := buf.Write(sub.Bytes()); err != nil {
			return err
		}
	}

	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	hdr := Header{Version: FormatVersion, Flags: bundle.Flags | flagBundle, BuildID: BuildID}
	if err := writeHeader(w, hdr); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// LoadBundle is SaveBundle's inverse.
func LoadBundle(r io.Reader, arena *heap.Arena, interner *strtab.InternSet, allowStatic bool) (*Bundle, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("snapshot: reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("snapshot: bad magic %q, expected %q", magic, Magic)
	}
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported format version %d, engine is %d", hdr.Version, FormatVersion)
	}
	if hdr.BuildID != BuildID {
		return nil, ErrBuildIDMismatch
	}
	if !hdr.Flags.Has(flagBundle) {
		return nil, fmt.Errorf("snapshot: not a bundle (missing flagBundle)")
	}
	scriptFlags := hdr.Flags &^ flagBundle
	if scriptFlags.Has(FlagStatic) && !allowStatic {
		return nil, ErrStaticNotAllowed
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	scripts := make([]*bytecode.Bytecode, count)
	for i := range scripts {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		bc, err := readBytecode(io.LimitReader(r, int64(size)), arena, interner)
		if err != nil {
			return nil, err
		}
		scripts[i] = bc
	}
	return &Bundle{Flags: scriptFlags, Scripts: scripts}, nil
}

// flagBundle is an internal header bit distinguishing a multi-script
// Bundle stream from a single-script Save stream; it never appears in a
// caller-supplied Flags value.
const flagBundle Flags = 1 << 15

// Merge combines snapshots already held in memory (e.g. just produced by
// Save in the same process) into a Bundle, rejecting the set if their
// Flags disagree.
func Merge(scripts []*bytecode.Bytecode, flags []Flags) (*Bundle, error) {
	if len(scripts) != len(flags) {
		return nil, fmt.Errorf("snapshot: Merge given %d scripts but %d flag values", len(scripts), len(flags))
	}
	if len(scripts) == 0 {
		return &Bundle{}, nil
	}
	want := flags[0]
	for _, f := range flags[1:] {
		if f != want {
			return nil, ErrFlagMismatch
		}
	}
	return &Bundle{Flags: want, Scripts: scripts}, nil
}
