// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package jjs

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/jjs/builtins"
	"github.com/kraklabs/jjs/port"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Options configures a Context, the YAML-loadable equivalent of the
// reference's jjs_context_options_t, shaped after cmd/cie/config.go's
// Config/nested-struct pattern (a root struct of scalar fields plus one
// nested struct per subsystem, all yaml-tagged).
type Options struct {
	HeapLimitBytes int             `yaml:"heap_limit_bytes"`
	MarkLimit      int             `yaml:"mark_limit"`
	LogLevel       string          `yaml:"log_level"`
	Builtins       builtins.Config `yaml:"builtins"`

	// Metrics registers engine/metrics collectors on this registry when
	// non-nil. Left nil (and not YAML-configurable - a *Registry has no
	// sensible textual form), metrics collection is skipped entirely.
	Metrics *prometheus.Registry `yaml:"-"`
}

// DefaultOptions returns an Options with every builtin group enabled and
// an unbounded heap, suitable for tests and simple embeddings.
func DefaultOptions() Options {
	return Options{
		LogLevel: "info",
		Builtins: builtins.DefaultConfig(),
	}
}

// LoadOptions reads and parses a YAML options file, starting from
// DefaultOptions so a partial file only overrides the fields it sets -
// the same "defaults then yaml.Unmarshal over them" shape
// cmd/cie/config.go's LoadConfig uses.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("jjs: reading options file %s: %w", path, err)
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("jjs: parsing options file %s: %w", path, err)
	}
	return opts, nil
}

func (o Options) logger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: o.slogLevel()})
	return slog.New(h)
}

func (o Options) slogLevel() slog.Level {
	switch o.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (o Options) port(logger *slog.Logger) port.Port {
	return port.NewDefaultPort(logger)
}
