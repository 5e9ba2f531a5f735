// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package module

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// PathToFileURL converts an absolute filesystem path to a `file://` URL
// string, the annex helper a module loader uses to report a module's
// canonical identity (import.meta.url and similar) the way Node's
// url.pathToFileURL does. path must already be absolute; relative paths
// have no well-defined file URL.
func PathToFileURL(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("module: PathToFileURL requires an absolute path, got %q", path)
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if !strings.HasPrefix(clean, "/") {
		// Windows drive-letter paths ("C:/foo") need a leading slash in
		// the URL form.
		clean = "/" + clean
	}
	u := url.URL{Scheme: "file", Path: clean}
	return u.String(), nil
}

// FileURLToPath is PathToFileURL's inverse: given a `file://` URL,
// returns the filesystem path it names.
func FileURLToPath(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("module: parsing file URL %q: %w", fileURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("module: %q is not a file: URL", fileURL)
	}
	path := u.Path
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		// "/C:/foo" -> "C:/foo" (Windows drive-letter form).
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}
