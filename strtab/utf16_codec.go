// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package strtab

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CESU8FromUTF16LE decodes a raw little-endian UTF-16 byte buffer (the
// shape an embedder's "external string" bytes most commonly arrive in,
// e.g. from a Windows host API) into CESU-8, using
// golang.org/x/text/encoding/unicode rather than a hand-rolled UTF-16LE
// byte-pair reader - the internal CESU-8 codec above is JJS-specific
// surrogate handling and stays hand-written, but decoding an external
// wire encoding at the API boundary is exactly the kind of concern a
// library should own (spec.md section 4.3, "The API converts to/from
// strict UTF-8 and UTF-16 at the boundary").
func CESU8FromUTF16LE(raw []byte) ([]byte, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	utf8Bytes, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, fmt.Errorf("strtab: decode external UTF-16LE string: %w", err)
	}
	return EncodeCESU8(string(utf8Bytes)), nil
}

// UTF16LEFromCESU8 encodes CESU-8 bytes to little-endian UTF-16, the
// inverse of CESU8FromUTF16LE, for embedder APIs that read strings back
// out as UTF-16 (e.g. jjs_string_to_utf16_char_buffer equivalents).
func UTF16LEFromCESU8(cesu8 []byte) ([]byte, error) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, _, err := transform.Bytes(encoder, []byte(DecodeCESU8(cesu8)))
	if err != nil {
		return nil, fmt.Errorf("strtab: encode external UTF-16LE string: %w", err)
	}
	return out, nil
}
