// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/chunkstore/lib/chunk"
	"github.com/bureau-foundation/chunkstore/lib/clock"
	"github.com/bureau-foundation/chunkstore/lib/compress"
	"github.com/bureau-foundation/chunkstore/lib/config"
	"github.com/bureau-foundation/chunkstore/lib/encrypt"
	"github.com/bureau-foundation/chunkstore/lib/filelock"
	"github.com/bureau-foundation/chunkstore/lib/filetype"
	"github.com/bureau-foundation/chunkstore/lib/manifest"
	"github.com/bureau-foundation/chunkstore/lib/manifestlog"
	"github.com/bureau-foundation/chunkstore/lib/secret"
	"github.com/bureau-foundation/chunkstore/lib/spool"
)

// lockPollInterval is how often a bounded lock wait retries.
const lockPollInterval = 50 * time.Millisecond

// Options configures a Pipeline. The zero value gives the baseline
// behaviour: 1 MiB chunks, one hashing task per chunk, SHA-256, zlib
// for every file type, AES-256-GCM, no spool, no log locking.
type Options struct {
	// ChunkSize is the block size in bytes. Zero means chunk.DefaultSize.
	ChunkSize int

	// MaxWorkers caps concurrent hashing tasks. Zero means no cap.
	MaxWorkers int

	// Digest selects the block digest.
	Digest chunk.Digest

	// Hash overrides the block digest function.
	Hash chunk.HashFunc

	// Policy chooses the compressor per file type. Nil means zlib for
	// every type.
	Policy compress.Policy

	// Cipher selects the AEAD.
	Cipher encrypt.Cipher

	// Spool, when non-nil, receives every ciphertext chunk before the
	// manifest is appended.
	Spool *spool.Spool

	// LockLog takes an exclusive filelock on the log path around the
	// append.
	LockLog bool

	// LockTimeout bounds the lock wait. Zero waits indefinitely.
	LockTimeout time.Duration

	// Logger receives stage and summary logs. Nil means slog.Default().
	Logger *slog.Logger

	// Clock times stages and bounds lock waits. Nil means clock.Real().
	Clock clock.Clock

	// Open opens the source file. Nil means os.Open.
	Open func(path string) (io.ReadCloser, error)
}

// Pipeline ingests files into manifest logs.
type Pipeline struct {
	hasher      *chunk.Hasher
	policy      compress.Policy
	sealer      *encrypt.Sealer
	spool       *spool.Spool
	lockLog     bool
	lockTimeout time.Duration
	logger      *slog.Logger
	clock       clock.Clock
	open        func(path string) (io.ReadCloser, error)
	lock        func(logPath string) (releaser, error)
}

// New validates options and returns a Pipeline.
func New(options Options) (*Pipeline, error) {
	hasher, err := chunk.NewHasher(chunk.Options{
		Size:       options.ChunkSize,
		MaxWorkers: options.MaxWorkers,
		Digest:     options.Digest,
		Hash:       options.Hash,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}

	sealer, err := encrypt.NewSealer(options.Cipher)
	if err != nil {
		return nil, fmt.Errorf("configuring encryption: %w", err)
	}

	if options.LockTimeout < 0 {
		return nil, fmt.Errorf("lock timeout must not be negative, got %v", options.LockTimeout)
	}

	policy := options.Policy
	if policy == nil {
		zlib, err := compress.New(compress.Zlib)
		if err != nil {
			return nil, err
		}
		policy = compress.Uniform(zlib)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	open := options.Open
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}

	p := &Pipeline{
		hasher:      hasher,
		policy:      policy,
		sealer:      sealer,
		spool:       options.Spool,
		lockLog:     options.LockLog,
		lockTimeout: options.LockTimeout,
		logger:      logger,
		clock:       clk,
		open:        open,
	}
	p.lock = p.acquire
	return p, nil
}

// FromConfig builds a Pipeline from a validated configuration.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	digest, _ := cfg.ChunkDigest()
	cipher, _ := cfg.CipherSuite()
	algorithm, _ := cfg.CompressionAlgorithm()
	lockTimeout, _ := cfg.LockTimeout()

	compressor, err := compress.New(algorithm)
	if err != nil {
		return nil, err
	}

	var chunkSpool *spool.Spool
	if cfg.Paths.Spool != "" {
		chunkSpool, err = spool.New(cfg.Paths.Spool)
		if err != nil {
			return nil, err
		}
	}

	return New(Options{
		ChunkSize:   cfg.Chunk.Size,
		MaxWorkers:  cfg.Chunk.MaxWorkers,
		Digest:      digest,
		Policy:      compress.Uniform(compressor),
		Cipher:      cipher,
		Spool:       chunkSpool,
		LockLog:     cfg.LockEnabled(),
		LockTimeout: lockTimeout,
		Logger:      logger,
	})
}

// Result summarizes one successful ingestion. It never carries key
// material.
type Result struct {
	Name           string
	Type           filetype.Type
	Chunks         int
	Size           int
	CompressedSize int
	CiphertextSize int

	// SpooledChunks counts chunk files newly written to the spool.
	SpooledChunks int

	// Fingerprint identifies the appended log record.
	Fingerprint string

	Elapsed time.Duration
}

// Ingest runs the pipeline with default options.
func Ingest(filePath, logPath string) error {
	pipeline, err := New(Options{})
	if err != nil {
		return err
	}
	_, err = pipeline.Ingest(filePath, logPath)
	return err
}

// Ingest processes filePath and appends its manifest to the log at
// logPath. On any error nothing is appended and the returned error is
// an *Error.
func (p *Pipeline) Ingest(filePath, logPath string) (*Result, error) {
	start := p.clock.Now()
	logger := p.logger.With(
		"run_id", uuid.NewString(),
		"file", filepath.Base(filePath),
	)

	fileType, err := filetype.Classify(filePath)
	if err != nil {
		return nil, stageError(StageClassify, ErrUnsupportedFileType, filePath, err)
	}
	logger.Debug("classified", "file_type", fileType)

	data, err := p.read(filePath)
	if err != nil {
		return nil, stageError(StageRead, ErrIO, filePath, err)
	}
	logger.Debug("read", "bytes", len(data))

	compressor := p.policy.For(fileType)
	compressed, err := compressor.Compress(data)
	if err != nil {
		return nil, stageError(StageCompress, ErrIO, filePath, err)
	}
	logger.Debug("compressed", "algorithm", compressor.Algorithm().String(), "bytes", len(compressed))

	sealed, err := p.sealer.Seal(compressed)
	if err != nil {
		return nil, stageError(StageEncrypt, ErrEncryption, filePath, err)
	}
	defer sealed.Close()
	logger.Debug("encrypted", "cipher", sealed.Cipher.String(), "bytes", len(sealed.Ciphertext))

	records, err := p.hasher.Hash(sealed.Ciphertext)
	if err != nil {
		return nil, stageError(StageChunk, ErrHashWorkerFailure, filePath, err)
	}
	logger.Debug("chunked", "chunks", len(records), "chunk_size", p.hasher.Size())

	spooled := 0
	if p.spool != nil {
		spooled, err = p.spool.PutAll(chunk.Split(sealed.Ciphertext, p.hasher.Size()), records)
		if err != nil {
			return nil, stageError(StageSpool, ErrIO, filePath, err)
		}
		logger.Debug("spooled", "new_chunks", spooled, "spool", p.spool.Root())
	}

	params := manifest.Params{
		FileType: fileType,
		Name:     filePath,
		Chunks:   records,
		Nonce:    sealed.Nonce,
		Cipher:   sealed.Cipher,
		Digest:   p.hasher.Digest(),
	}
	copy(params.Key[:], sealed.Key.Bytes())
	defer secret.Zero(params.Key[:])

	record := manifest.Build(params)
	defer secret.Zero(record.EncryptionKey[:])

	fingerprint, err := record.Fingerprint()
	if err != nil {
		return nil, stageError(StageManifest, ErrIO, filePath, err)
	}

	if err := p.appendRecord(logger, filePath, logPath, record); err != nil {
		return nil, err
	}

	result := &Result{
		Name:           record.OriginalName,
		Type:           fileType,
		Chunks:         len(records),
		Size:           len(data),
		CompressedSize: len(compressed),
		CiphertextSize: len(sealed.Ciphertext),
		SpooledChunks:  spooled,
		Fingerprint:    fingerprint,
		Elapsed:        p.clock.Now().Sub(start),
	}
	logger.Info("file ingested",
		"file_type", result.Type,
		"chunks", result.Chunks,
		"bytes", result.Size,
		"compressed_bytes", result.CompressedSize,
		"ciphertext_bytes", result.CiphertextSize,
		"fingerprint", result.Fingerprint,
		"log", logPath,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (p *Pipeline) read(filePath string) (data []byte, err error) {
	file, err := p.open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing source: %w", closeErr)
		}
	}()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return data, nil
}

// releaser is the held side of a log lock.
type releaser interface {
	Release() error
}

// appendRecord appends record under the log lock when locking is on.
// A failed unlock is logged, not returned: the record is already
// durable in the log.
func (p *Pipeline) appendRecord(logger *slog.Logger, filePath, logPath string, record *manifest.FileManifest) error {
	if p.lockLog {
		lock, err := p.lock(logPath)
		if err != nil {
			return stageError(StageLock, ErrIO, filePath, err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("releasing log lock failed", "log", logPath, "error", err)
			}
		}()
	}
	if err := manifestlog.Append(logPath, record); err != nil {
		return stageError(StageAppend, ErrIO, filePath, err)
	}
	return nil
}

func (p *Pipeline) acquire(logPath string) (releaser, error) {
	if p.lockTimeout > 0 {
		return filelock.AcquireWithin(logPath, p.lockTimeout, lockPollInterval, p.clock)
	}
	return filelock.Acquire(logPath)
}
