// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock serializes writers of one file across goroutines and
// processes with an advisory flock(2) held on a sibling ".lock" file.
//
// The lock lives on a separate file so that the protected file is only
// ever opened for append and can be created lazily by its writer. Locks
// are per open file description: two Acquire calls in one process
// conflict exactly as two processes would.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/chunkstore/lib/clock"
)

// Suffix is appended to the protected path to name its lock file.
const Suffix = ".lock"

// ErrLocked is returned by TryAcquire when another holder has the lock.
var ErrLocked = errors.New("file is locked by another writer")

// ErrTimeout is returned by AcquireWithin when the lock did not become
// free before the deadline.
var ErrTimeout = errors.New("timed out waiting for file lock")

// Lock is a held exclusive lock. Release it exactly once; further calls
// are no-ops.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// Acquire blocks until it holds the exclusive lock for path.
func Acquire(path string) (*Lock, error) {
	return acquire(path, unix.LOCK_EX)
}

// TryAcquire takes the exclusive lock for path without blocking. It
// returns ErrLocked if the lock is held elsewhere.
func TryAcquire(path string) (*Lock, error) {
	return acquire(path, unix.LOCK_EX|unix.LOCK_NB)
}

// AcquireWithin polls TryAcquire every interval until the lock is held
// or timeout has elapsed on c.
func AcquireWithin(path string, timeout, interval time.Duration, c clock.Clock) (*Lock, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	deadline := c.Now().Add(timeout)
	for {
		lock, err := TryAcquire(path)
		if !errors.Is(err, ErrLocked) {
			return lock, err
		}
		if !c.Now().Before(deadline) {
			return nil, fmt.Errorf("locking %s after %v: %w", path, timeout, ErrTimeout)
		}
		<-c.After(interval)
	}
}

func acquire(path string, how int) (*Lock, error) {
	lockPath := path + Suffix
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	for {
		err = unix.Flock(int(file.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("locking %s: %w", lockPath, ErrLocked)
		}
		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}
	return &Lock{path: lockPath, file: file}, nil
}

// Release drops the lock and closes the lock file. The lock file itself
// is left in place; removing it would race with a waiter that has
// already opened it.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil

	unlockErr := unix.Flock(int(file.Fd()), unix.LOCK_UN)
	closeErr := file.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", l.path, closeErr)
	}
	return nil
}
