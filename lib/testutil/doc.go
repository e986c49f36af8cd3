// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// [WriteFile] and [UniqueName] build input fixtures in a per-test
// temporary directory. [CountLines] reads back line-oriented output
// such as the manifest log.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no chunkstore-internal dependencies.
package testutil
