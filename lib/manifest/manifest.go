// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest defines the per-file descriptor written to the
// manifest log: enough to locate every encrypted chunk of a file, in
// order, and to decrypt the reassembled stream.
package manifest

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chunkstore/lib/chunk"
	"github.com/bureau-foundation/chunkstore/lib/codec"
	"github.com/bureau-foundation/chunkstore/lib/encrypt"
	"github.com/bureau-foundation/chunkstore/lib/filetype"
)

// ChunkRecord is one entry of a manifest's chunk list.
type ChunkRecord = chunk.Record

// FileManifest describes one ingested file. A manifest is built once
// and never modified; the log is its only durable copy.
//
// EncryptionKey and Nonce are fixed-size arrays so that encoding/json
// writes them as arrays of integers rather than base64 strings.
type FileManifest struct {
	OriginalName  string                  `json:"original_name"`
	FileType      filetype.Type           `json:"file_type"`
	Chunks        []ChunkRecord           `json:"chunks"`
	EncryptionKey [encrypt.KeySize]byte   `json:"encryption_key"`
	Nonce         [encrypt.NonceSize]byte `json:"nonce"`

	// Cipher is set only when the file was sealed with something other
	// than AES-256-GCM.
	Cipher string `json:"cipher,omitempty"`

	// Digest is set only when chunk hashes use something other than
	// SHA-256.
	Digest string `json:"digest,omitempty"`
}

// Params carries the already-validated outputs of the earlier pipeline
// stages.
type Params struct {
	FileType filetype.Type
	Name     string
	Chunks   []ChunkRecord
	Key      [encrypt.KeySize]byte
	Nonce    [encrypt.NonceSize]byte
	Cipher   encrypt.Cipher
	Digest   chunk.Digest
}

// Build assembles a manifest. Name is reduced to its base name; the
// chunk list is copied so later changes to params.Chunks cannot reach
// the manifest.
func Build(params Params) *FileManifest {
	chunks := make([]ChunkRecord, len(params.Chunks))
	copy(chunks, params.Chunks)

	manifest := &FileManifest{
		OriginalName:  filepath.Base(params.Name),
		FileType:      params.FileType,
		Chunks:        chunks,
		EncryptionKey: params.Key,
		Nonce:         params.Nonce,
	}
	if params.Cipher != encrypt.AES256GCM {
		manifest.Cipher = params.Cipher.String()
	}
	if params.Digest != chunk.SHA256 {
		manifest.Digest = params.Digest.String()
	}
	return manifest
}

// CipherAlgorithm returns the cipher the file was sealed with.
func (m *FileManifest) CipherAlgorithm() (encrypt.Cipher, error) {
	if m.Cipher == "" {
		return encrypt.AES256GCM, nil
	}
	return encrypt.ParseCipher(m.Cipher)
}

// DigestAlgorithm returns the digest used for chunk hashes.
func (m *FileManifest) DigestAlgorithm() (chunk.Digest, error) {
	if m.Digest == "" {
		return chunk.SHA256, nil
	}
	return chunk.ParseDigest(m.Digest)
}

// Validate checks the structural invariants of a manifest read back
// from the log: a known file type, a base name, contiguous chunk
// indices from zero, well-formed digests, non-zero key material, and
// recognised algorithm names.
func (m *FileManifest) Validate() error {
	if m.OriginalName == "" || m.OriginalName != filepath.Base(m.OriginalName) {
		return fmt.Errorf("original_name %q is not a base file name", m.OriginalName)
	}
	if !m.FileType.Valid() {
		return fmt.Errorf("invalid file_type %d", m.FileType)
	}
	for position, record := range m.Chunks {
		if record.Index != position {
			return fmt.Errorf("chunk at position %d has index %d", position, record.Index)
		}
		if len(record.Hash) != chunk.DigestLength {
			return fmt.Errorf("chunk %d: hash is %d characters, want %d", position, len(record.Hash), chunk.DigestLength)
		}
		if _, err := hex.DecodeString(record.Hash); err != nil {
			return fmt.Errorf("chunk %d: hash is not hex: %w", position, err)
		}
	}
	if m.EncryptionKey == [encrypt.KeySize]byte{} {
		return fmt.Errorf("encryption_key is all zero")
	}
	if m.Nonce == [encrypt.NonceSize]byte{} {
		return fmt.Errorf("nonce is all zero")
	}
	if _, err := m.CipherAlgorithm(); err != nil {
		return err
	}
	if _, err := m.DigestAlgorithm(); err != nil {
		return err
	}
	return nil
}

// Fingerprint returns the hex BLAKE3 hash of the manifest's
// deterministic CBOR encoding. Two manifests have the same fingerprint
// exactly when every field is equal. The fingerprint identifies a log
// record in operational logs without exposing key material.
func (m *FileManifest) Fingerprint() (string, error) {
	encoded, err := codec.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding manifest for fingerprint: %w", err)
	}
	sum := blake3.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
