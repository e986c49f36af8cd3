// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk splits ciphertext into fixed-size blocks and computes
// a content digest for every block concurrently.
//
// Blocks are consecutive sub-slices of the input: every block except
// possibly the last is exactly the configured size; the last holds the
// remainder, or a full block when the input length divides evenly. The
// block count is therefore ceil(len(data) / size).
//
// # Concurrency
//
// [Hasher.Hash] dispatches one task per block. Results land in a
// pre-sized slot array indexed by block number, and each task writes
// only its own slot, so no two tasks share mutable state and no result
// can be dropped or duplicated. The call joins every task before
// returning, including after a failure: there is no cancellation, and
// the cost of a failed run is bounded by the block count. Output order
// is always block order, whatever order tasks complete in.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// DefaultSize is the default block size (1 MiB).
const DefaultSize = 1024 * 1024

// DigestLength is the length of every hex-encoded digest: 256 bits.
const DigestLength = 64

// Record identifies one block of the encrypted stream.
type Record struct {
	// Index is the block's position in the stream, starting at 0.
	Index int `json:"index"`

	// Hash is the hex-encoded digest of the block's raw bytes.
	Hash string `json:"hash"`
}

// Digest identifies a 256-bit digest algorithm.
type Digest uint8

const (
	// SHA256 is SHA-256. The default.
	SHA256 Digest = iota
	// BLAKE3 is unkeyed BLAKE3 with 256-bit output.
	BLAKE3
)

// String returns the configuration name of the digest.
func (d Digest) String() string {
	switch d {
	case SHA256:
		return "sha256"
	case BLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// ParseDigest parses a digest from its configuration name.
func ParseDigest(name string) (Digest, error) {
	switch name {
	case "sha256":
		return SHA256, nil
	case "blake3":
		return BLAKE3, nil
	default:
		return 0, fmt.Errorf("unknown digest: %q", name)
	}
}

// HashFunc computes the hex digest of one block. It is the unit of
// work a hashing task runs.
type HashFunc func(block []byte) (string, error)

// Func returns the HashFunc for d.
func (d Digest) Func() (HashFunc, error) {
	switch d {
	case SHA256:
		return hashSHA256, nil
	case BLAKE3:
		return hashBLAKE3, nil
	default:
		return nil, fmt.Errorf("unsupported digest: %d", d)
	}
}

func hashSHA256(block []byte) (string, error) {
	sum := sha256.Sum256(block)
	return hex.EncodeToString(sum[:]), nil
}

func hashBLAKE3(block []byte) (string, error) {
	sum := blake3.Sum256(block)
	return hex.EncodeToString(sum[:]), nil
}

// Count returns the number of blocks a stream of length bytes splits
// into. Panics if size is not positive.
func Count(length, size int) int {
	if size <= 0 {
		panic(fmt.Sprintf("chunk.Count: size must be positive, got %d", size))
	}
	if length <= 0 {
		return 0
	}
	return (length + size - 1) / size
}

// Split returns the blocks of data. Blocks alias data; nothing is
// copied. Panics if size is not positive.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		panic(fmt.Sprintf("chunk.Split: size must be positive, got %d", size))
	}
	blocks := make([][]byte, 0, Count(len(data), size))
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		blocks = append(blocks, data[start:end:end])
	}
	return blocks
}

// ErrWorkerFailure matches any error returned by [Hasher.Hash] because
// a hashing task failed.
var ErrWorkerFailure = errors.New("hash worker failure")

// WorkerError reports the failure of the task for one block.
type WorkerError struct {
	Index int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("hashing chunk %d: %v", e.Index, e.Err)
}

// Unwrap exposes both ErrWorkerFailure and the underlying cause to
// errors.Is and errors.As.
func (e *WorkerError) Unwrap() []error {
	return []error{ErrWorkerFailure, e.Err}
}

// Options configures a Hasher.
type Options struct {
	// Size is the block size in bytes. Zero means DefaultSize.
	Size int

	// MaxWorkers caps the number of tasks hashing at once. Zero means
	// no cap: one goroutine per block.
	MaxWorkers int

	// Digest selects the digest algorithm when Hash is nil.
	Digest Digest

	// Hash overrides the digest function. Tests use it to inject
	// delays and failures.
	Hash HashFunc
}

// Hasher splits data into blocks and digests them concurrently. A
// Hasher holds no per-call state and is safe for concurrent use.
type Hasher struct {
	size       int
	maxWorkers int
	digest     Digest
	hash       HashFunc
}

// NewHasher validates options and returns a Hasher.
func NewHasher(options Options) (*Hasher, error) {
	if options.Size < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", options.Size)
	}
	if options.Size == 0 {
		options.Size = DefaultSize
	}
	if options.MaxWorkers < 0 {
		return nil, fmt.Errorf("max workers must not be negative, got %d", options.MaxWorkers)
	}
	if options.Hash == nil {
		hash, err := options.Digest.Func()
		if err != nil {
			return nil, err
		}
		options.Hash = hash
	}
	return &Hasher{
		size:       options.Size,
		maxWorkers: options.MaxWorkers,
		digest:     options.Digest,
		hash:       options.Hash,
	}, nil
}

// Size returns the block size.
func (h *Hasher) Size() int {
	return h.size
}

// Digest returns the configured digest algorithm.
func (h *Hasher) Digest() Digest {
	return h.digest
}

// Hash digests every block of data and returns one Record per block in
// index order. If any task fails, Hash still waits for all tasks and
// then returns the failure with the lowest block index as a
// *WorkerError.
func (h *Hasher) Hash(data []byte) ([]Record, error) {
	blocks := Split(data, h.size)
	records := make([]Record, len(blocks))
	failures := make([]error, len(blocks))

	var slots chan struct{}
	if h.maxWorkers > 0 && h.maxWorkers < len(blocks) {
		slots = make(chan struct{}, h.maxWorkers)
	}

	var group sync.WaitGroup
	for index, block := range blocks {
		if slots != nil {
			slots <- struct{}{}
		}
		group.Add(1)
		go func() {
			defer group.Done()
			if slots != nil {
				defer func() { <-slots }()
			}

			digest, err := h.run(block)
			if err != nil {
				failures[index] = &WorkerError{Index: index, Err: err}
				return
			}
			records[index] = Record{Index: index, Hash: digest}
		}()
	}
	group.Wait()

	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// run executes the digest function for one block, converting a panic
// into an error so one bad task cannot take down the process.
func (h *Hasher) run(block []byte) (digest string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()

	digest, err = h.hash(block)
	if err != nil {
		return "", err
	}
	if len(digest) != DigestLength {
		return "", fmt.Errorf("digest is %d hex characters, want %d", len(digest), DigestLength)
	}
	return digest, nil
}

// Verify recomputes the digest of every block of data and checks it
// against records. It runs sequentially and is meant for audits and
// tests, not the ingestion path.
func Verify(data []byte, size int, records []Record, digest Digest) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	hash, err := digest.Func()
	if err != nil {
		return err
	}
	blocks := Split(data, size)
	if len(blocks) != len(records) {
		return fmt.Errorf("data splits into %d chunks, manifest lists %d", len(blocks), len(records))
	}
	for index, block := range blocks {
		if records[index].Index != index {
			return fmt.Errorf("record %d has index %d", index, records[index].Index)
		}
		sum, err := hash(block)
		if err != nil {
			return fmt.Errorf("hashing chunk %d: %w", index, err)
		}
		if sum != records[index].Hash {
			return fmt.Errorf("chunk %d: digest %s does not match recorded %s", index, sum, records[index].Hash)
		}
	}
	return nil
}
