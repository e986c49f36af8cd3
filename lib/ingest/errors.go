// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by [Pipeline.Ingest] is an
// *Error whose Kind is exactly one of these, so callers can branch with
// errors.Is without inspecting stages or causes.
var (
	// ErrUnsupportedFileType means the file's extension is missing or
	// not in the classification table. Nothing was read.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrIO covers reading the source, compression, spooling, and
	// writing the manifest log.
	ErrIO = errors.New("i/o failure")

	// ErrEncryption means key generation or cipher construction failed.
	ErrEncryption = errors.New("encryption failure")

	// ErrHashWorkerFailure means at least one chunk hashing task failed.
	ErrHashWorkerFailure = errors.New("hash worker failure")
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageClassify Stage = "classify"
	StageRead     Stage = "read"
	StageCompress Stage = "compress"
	StageEncrypt  Stage = "encrypt"
	StageChunk    Stage = "chunk"
	StageSpool    Stage = "spool"
	StageManifest Stage = "manifest"
	StageLock     Stage = "lock"
	StageAppend   Stage = "append"
)

// Error is the failure of one ingestion. It matches its Kind and every
// error in its cause chain under errors.Is and errors.As.
type Error struct {
	Stage Stage
	Kind  error
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingesting %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageError(stage Stage, kind error, path string, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Path: path, Err: err}
}
