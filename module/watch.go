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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSkipDirs lists directory names a Watcher never descends into -
// the same reasoning (wasted descriptors, noise from tool/VCS churn)
// cmd/cie/watch.go's watchSkipDirs applies to repository indexing.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true, "build": true,
}

// watchDebounce coalesces a burst of writes (an editor's save-then-
// rewrite, a build tool touching several files) into one reload,
// mirroring cmd/cie/watch.go's watchDebounce.
const watchDebounce = 200 * time.Millisecond

// Watcher invalidates a Loader's cache when a watched .js file changes
// on disk, so a long-running host (cmd/jjsrun --watch) can re-require a
// module and pick up edits without restarting the process.
type Watcher struct {
	loader  *Loader
	fsw     *fsnotify.Watcher
	onEvent func(path string)
}

// NewWatcher watches every directory under each of roots (recursively,
// skipping watchSkipDirs) and invalidates loader's cache for any .js
// file that changes.
func NewWatcher(loader *Loader, roots []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{loader: loader, fsw: fsw}
	for _, root := range roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || !info.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(root)) {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		})
	}
	return w, nil
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, invalidating the Loader's cache for changed .js files and
// calling onReload (if non-nil) with each invalidated path, until the
// Watcher is closed or stop is closed.
func (w *Watcher) Run(stop <-chan struct{}, onReload func(path string)) {
	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := map[string]bool{}

	flush := func() {
		for path := range pending {
			w.loader.Invalidate(path)
			if onReload != nil {
				onReload(path)
			}
		}
		pending = map[string]bool{}
	}

	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".js" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		case <-timerCh:
			flush()
			timerCh = nil
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
