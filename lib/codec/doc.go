// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the repository's canonical binary encoding.
//
// The manifest log is JSON, one record per line, because it is the
// durable external record and must stay readable with ordinary tools.
// Where a byte-exact canonical form is needed instead (fingerprinting a
// manifest, comparing two manifests for identity) the value is encoded
// as CBOR with Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical value always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//
// Types use `json` struct tags only. fxamacker/cbor falls back to json
// tags when cbor tags are absent, so one tag controls field naming and
// omitempty for both encodings.
package codec
