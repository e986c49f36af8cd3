// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spool keeps ciphertext chunks on local disk, addressed by
// their digest, until a transport picks them up. Each chunk is one file
// under two levels of hex sharding:
//
//	<root>/<hash[:2]>/<hash[2:4]>/<hash>.chunk
//
// Writes go to a temporary file in the spool root and are renamed into
// place, so a chunk file is either absent or complete. A chunk already
// present is left untouched: identical digests mean identical bytes.
package spool

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/chunkstore/lib/chunk"
)

const extension = ".chunk"

// Spool is a content-addressed chunk directory. Safe for concurrent
// use: concurrent Puts of the same hash both rename complete files onto
// the same path.
type Spool struct {
	root string
}

// New returns a Spool rooted at root, creating the directory if needed.
func New(root string) (*Spool, error) {
	if root == "" {
		return nil, errors.New("spool root must not be empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating spool directory %s: %w", root, err)
	}
	return &Spool{root: root}, nil
}

// Root returns the spool directory.
func (s *Spool) Root() string { return s.root }

// Path returns where the chunk with the given hex digest is stored.
func (s *Spool) Path(hash string) (string, error) {
	if err := validateHash(hash); err != nil {
		return "", err
	}
	return s.path(hash), nil
}

func (s *Spool) path(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:4], hash+extension)
}

func validateHash(hash string) error {
	if len(hash) != chunk.DigestLength {
		return fmt.Errorf("chunk hash %q is %d characters, want %d", hash, len(hash), chunk.DigestLength)
	}
	if strings.ToLower(hash) != hash {
		return fmt.Errorf("chunk hash %q must be lower-case hex", hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("chunk hash %q is not hex: %w", hash, err)
	}
	return nil
}

// Put stores data under hash. It reports whether a new file was
// written; false means the chunk was already spooled.
func (s *Spool) Put(hash string, data []byte) (bool, error) {
	if err := validateHash(hash); err != nil {
		return false, err
	}
	finalPath := s.path(hash)
	if _, err := os.Stat(finalPath); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking spooled chunk %s: %w", hash, err)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o700); err != nil {
		return false, fmt.Errorf("creating spool shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.root, "chunk-*.tmp")
	if err != nil {
		return false, fmt.Errorf("creating temp chunk file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return false, fmt.Errorf("writing chunk %s: %w", hash, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return false, fmt.Errorf("syncing chunk %s: %w", hash, err)
	}
	if err := tmpFile.Close(); err != nil {
		return false, fmt.Errorf("closing temp chunk file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return false, fmt.Errorf("renaming chunk to %s: %w", finalPath, err)
	}

	success = true
	return true, nil
}

// PutAll stores blocks[i] under records[i].Hash for every record and
// returns the number of newly written files.
func (s *Spool) PutAll(blocks [][]byte, records []chunk.Record) (int, error) {
	if len(blocks) != len(records) {
		return 0, fmt.Errorf("have %d blocks for %d chunk records", len(blocks), len(records))
	}
	written := 0
	for i, record := range records {
		created, err := s.Put(record.Hash, blocks[i])
		if err != nil {
			return written, fmt.Errorf("spooling chunk %d: %w", record.Index, err)
		}
		if created {
			written++
		}
	}
	return written, nil
}

// Get returns the bytes of a spooled chunk. The error wraps
// fs.ErrNotExist if the chunk is not present.
func (s *Spool) Get(hash string) ([]byte, error) {
	if err := validateHash(hash); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		return nil, fmt.Errorf("reading spooled chunk %s: %w", hash, err)
	}
	return data, nil
}

// Hashes walks the spool and returns the digest of every stored chunk.
// Only file names are read. Leftover temp files are skipped.
func (s *Spool) Hashes() ([]string, error) {
	var hashes []string
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if !strings.HasSuffix(name, extension) {
			return nil
		}
		hash := strings.TrimSuffix(name, extension)
		if validateHash(hash) != nil {
			return nil
		}
		hashes = append(hashes, hash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning spool directory: %w", err)
	}
	return hashes, nil
}
