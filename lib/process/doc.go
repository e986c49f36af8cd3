// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for chunkstore binaries.
// These functions centralize the raw I/O that happens before or after
// the structured logger:
//
//   - [NewLogger] builds the JSON stderr logger every binary uses.
//   - [Fatal] and [Report] print "error: ..." and choose the exit code.
//   - [UsageError] distinguishes command-line mistakes (exit 2) from
//     runtime failures (exit 1).
package process
