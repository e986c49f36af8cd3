// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes shared by chunkstore binaries.
const (
	// ExitFailure is returned for any runtime failure.
	ExitFailure = 1

	// ExitUsage is returned for invalid flags or arguments.
	ExitUsage = 2
)

// UsageError marks an error caused by the command line rather than by
// the work the command attempted.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Fatal writes "error: err" to stderr and exits. This is the standard
// binary entrypoint error handler for errors from run(), where the
// structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes "error: err" to w and returns the exit code for err:
// ExitUsage for a *UsageError, ExitFailure otherwise.
func Report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFailure
}
