// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) error = %v", path, err)
	}
	return path
}

func TestRunOnceEvaluatesScriptAndReturnsNoError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1 + 1;")

	r, err := newRunner(script, "", "", globalFlags{Quiet: true})
	if err != nil {
		t.Fatalf("newRunner() error = %v", err)
	}
	defer r.ctx.Close()

	if err := r.runOnce(); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}
}

func TestRunOnceSurfacesUncaughtException(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "throw new Error('boom');")

	r, err := newRunner(script, "", "", globalFlags{Quiet: true})
	if err != nil {
		t.Fatalf("newRunner() error = %v", err)
	}
	defer r.ctx.Close()

	if err := r.runOnce(); err == nil {
		t.Fatal("runOnce() error = nil, want an error for an uncaught throw")
	}
}

func TestRunOnceCanRequireAFileModule(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "lib.js", "module.exports = { value: 42 };")
	script := writeScript(t, dir, "main.js", `
		var lib = require('./lib.js');
		if (lib.value !== 42) { throw new Error('unexpected value ' + lib.value); }
	`)

	r, err := newRunner(script, "", "", globalFlags{Quiet: true})
	if err != nil {
		t.Fatalf("newRunner() error = %v", err)
	}
	defer r.ctx.Close()

	if err := r.runOnce(); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}
}

func TestRunOnceCanRequireHostOSModule(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", `
		var os = require('os');
		if (typeof os.platform !== 'string') { throw new Error('platform missing'); }
	`)

	r, err := newRunner(script, "", "", globalFlags{Quiet: true})
	if err != nil {
		t.Fatalf("newRunner() error = %v", err)
	}
	defer r.ctx.Close()

	if err := r.runOnce(); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}
}

func TestNewRunnerRejectsMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1;")

	if _, err := newRunner(script, filepath.Join(dir, "missing.yaml"), "", globalFlags{}); err == nil {
		t.Fatal("newRunner() error = nil, want an error for a missing config file")
	}
}
