// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

var uniqueCounter atomic.Uint64

// UniqueName returns a string of the form "prefix-N.ext" where N is a
// monotonically increasing integer, so fixtures created in the same
// directory never collide.
//
//	name := testutil.UniqueName("report", ".pdf") // "report-1.pdf", ...
func UniqueName(prefix, extension string) string {
	return fmt.Sprintf("%s-%d%s", prefix, uniqueCounter.Add(1), extension)
}

// WriteFile creates name inside a fresh t.TempDir() holding data and
// returns its absolute path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

// CountLines returns the number of newline-terminated lines in the
// file at path. A missing file has zero lines. A final fragment without
// a trailing newline fails the test: line-oriented logs written by this
// module always end every record with one.
func CountLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		t.Fatalf("%s ends with a partial line", path)
	}
	return bytes.Count(data, []byte{'\n'})
}

// ReadLines returns the lines of the file at path without their
// terminators.
func ReadLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return lines
}
