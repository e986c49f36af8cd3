// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for chunkstore
// binaries.
//
// Configuration is loaded from a single file specified by either the
// CHUNKSTORE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). The file format is chosen by extension: YAML
// for .yaml and .yml, JSONC (JSON with comments and trailing commas)
// for .json and .jsonc. Values in the file are merged over [Default].
// Binaries that run without a config file use Default directly.
//
// The file may carry development and production sections that override
// base values when [Config].Environment matches. Production is
// stricter by default: the manifest log is locked around every append.
//
// Path fields support ${HOME}, ${CHUNKSTORE_ROOT}, and ${VAR:-default}
// expansion after loading. No other environment variables override
// config values.
package config
