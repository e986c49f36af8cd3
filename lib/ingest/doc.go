// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest turns one file into one manifest log record.
//
// [Pipeline.Ingest] runs a fixed sequence of stages:
//
//	classify → read → compress → encrypt → chunk+hash → (spool) → build → append
//
// Classification happens before the file is opened, so an unsupported
// extension costs no I/O. The first failing stage aborts the run and
// nothing is appended: the log gains exactly one line per successful
// ingestion and none otherwise. Only the hashing stage runs
// concurrently; see [chunk.Hasher].
//
// Per-file key material exists in memory only between encryption and
// the log append. It is held in a locked [secret.Buffer] and never
// logged; operational logs identify records by manifest fingerprint.
//
// A Pipeline keeps no state between runs and is safe for concurrent
// use. Concurrent runs against one log path must be serialized, either
// by the caller or by enabling LockLog.
package ingest
