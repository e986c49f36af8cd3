// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"io"
	"log/slog"
)

// NewLogger creates the standard chunkstore logger: a JSON handler
// writing to w (stderr in binaries) at the given level. It also sets
// the default slog logger so that code using slog.Info etc. gets the
// same handler.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
