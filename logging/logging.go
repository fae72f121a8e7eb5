// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package logging wires go.uber.org/zap into the broker's library
// packages without introducing a global mutable logger: components
// take a *zap.Logger field, defaulting to a no-op logger when unset,
// the way the teacher's framer.Options default to sane zero values
// (SPEC_FULL.md §10).
package logging

import "go.uber.org/zap"

// Nop returns a logger that discards everything, used as the default
// for any component constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// OrNop returns l if non-nil, otherwise Nop(). Broker components call
// this once in their constructor rather than nil-checking on every log
// call.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// New builds the process logger for cmd/msgbrokerd: JSON production
// config at the requested level, or a development (console, debug)
// logger when level is "debug".
func New(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err == nil {
			cfg.Level = lvl
		}
	}
	return cfg.Build()
}
