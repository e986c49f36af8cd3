// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifestlog persists manifests as newline-delimited JSON.
//
// Every successful ingestion appends exactly one line. Append opens the
// log for append only, writes the whole record in one write call,
// fsyncs, and closes, so a record is either fully on disk or absent.
// Existing lines are never rewritten.
//
// The log is not a synchronization primitive. Concurrent writers of
// one path must be serialized by the caller, for example with
// [github.com/bureau-foundation/chunkstore/lib/filelock].
package manifestlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/chunkstore/lib/manifest"
)

// Append writes m to the log at path as one JSON line, creating the
// file with mode 0600 if it does not exist.
func Append(path string, m *manifest.FileManifest) (err error) {
	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest for %s: %w", m.OriginalName, err)
	}
	line = append(line, '\n')

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening manifest log: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing manifest log: %w", closeErr)
		}
	}()

	written, err := file.Write(line)
	if err != nil {
		return fmt.Errorf("appending to manifest log: %w", err)
	}
	if written != len(line) {
		return fmt.Errorf("appending to manifest log: short write (%d of %d bytes)", written, len(line))
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing manifest log: %w", err)
	}
	return nil
}

// LineError reports a record that could not be decoded or failed
// validation.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("manifest log line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Scan reads the log at path and calls fn with each record in order.
// Lines are numbered from 1. Empty lines are skipped. Decoding stops at
// the first malformed or invalid record, which is returned as a
// *LineError; an error from fn stops the scan and is returned as is.
// Records have no size limit.
func Scan(path string, fn func(line int, m *manifest.FileManifest) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening manifest log: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for lineNumber := 1; ; lineNumber++ {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading manifest log: %w", readErr)
		}
		if errors.Is(readErr, io.EOF) && len(line) > 0 {
			return &LineError{Line: lineNumber, Err: errors.New("truncated record: no trailing newline")}
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var record manifest.FileManifest
			if err := json.Unmarshal(line, &record); err != nil {
				return &LineError{Line: lineNumber, Err: err}
			}
			if err := record.Validate(); err != nil {
				return &LineError{Line: lineNumber, Err: err}
			}
			if err := fn(lineNumber, &record); err != nil {
				return err
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

// Read returns every record in the log at path.
func Read(path string) ([]manifest.FileManifest, error) {
	var records []manifest.FileManifest
	err := Scan(path, func(_ int, m *manifest.FileManifest) error {
		records = append(records, *m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
