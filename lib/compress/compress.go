// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress reduces file contents before encryption. Each
// algorithm is a [Compressor]; a [Policy] chooses the compressor for a
// classified file. The baseline policy, [Uniform], applies one
// algorithm to every file type.
//
// All compressors are deterministic: the same input always produces
// byte-identical output under the same algorithm and library version.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/chunkstore/lib/filetype"
)

// Algorithm identifies a compression algorithm.
type Algorithm uint8

const (
	// None passes data through unchanged.
	None Algorithm = iota
	// Zlib is DEFLATE in a zlib container at the default level. This
	// is the baseline algorithm for every file type.
	Zlib
	// Zstd is zstd at SpeedDefault (level 3).
	Zstd
	// LZ4 is the LZ4 frame format.
	LZ4
)

// String returns the configuration name of the algorithm.
func (algorithm Algorithm) String() string {
	switch algorithm {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(algorithm))
	}
}

// ParseAlgorithm parses an algorithm from its configuration name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "none":
		return None, nil
	case "zlib":
		return Zlib, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// Compressor is the capability to compress a whole buffer with one
// algorithm.
type Compressor interface {
	Algorithm() Algorithm
	Compress(data []byte) ([]byte, error)
}

// New returns the compressor for algorithm.
func New(algorithm Algorithm) (Compressor, error) {
	switch algorithm {
	case None:
		return noneCompressor{}, nil
	case Zlib:
		return zlibCompressor{}, nil
	case Zstd:
		return zstdCompressor{}, nil
	case LZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %d", algorithm)
	}
}

// Decompress reverses Compress for the given algorithm.
func Decompress(algorithm Algorithm, compressed []byte) ([]byte, error) {
	switch algorithm {
	case None:
		return compressed, nil
	case Zlib:
		reader, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		defer reader.Close()
		return readAll("zlib", reader)
	case Zstd:
		result, err := zstdDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return result, nil
	case LZ4:
		return readAll("lz4", lz4.NewReader(bytes.NewReader(compressed)))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %d", algorithm)
	}
}

func readAll(name string, reader io.Reader) ([]byte, error) {
	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", name, err)
	}
	return result, nil
}

type noneCompressor struct{}

func (noneCompressor) Algorithm() Algorithm { return None }

// Compress returns the input unchanged (no copy).
func (noneCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

type zlibCompressor struct{}

func (zlibCompressor) Algorithm() Algorithm { return Zlib }

func (zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, err := zlib.NewWriterLevel(&buffer, zlib.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: finishing stream: %w", err)
	}
	return buffer.Bytes(), nil
}

// zstdEncoder and zstdDecoder are shared across calls. Both are safe
// for concurrent use through EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

type zstdCompressor struct{}

func (zstdCompressor) Algorithm() Algorithm { return Zstd }

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

type lz4Compressor struct{}

func (lz4Compressor) Algorithm() Algorithm { return LZ4 }

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: finishing frame: %w", err)
	}
	return buffer.Bytes(), nil
}

// Policy selects the compressor for a classified file.
type Policy interface {
	For(fileType filetype.Type) Compressor
}

// Uniform returns a policy that applies compressor to every file type.
// The file type is carried as metadata only.
func Uniform(compressor Compressor) Policy {
	return uniformPolicy{compressor: compressor}
}

type uniformPolicy struct {
	compressor Compressor
}

func (policy uniformPolicy) For(filetype.Type) Compressor {
	return policy.compressor
}

// ByType returns a policy that looks up a compressor per file type and
// falls back to fallback for types without an entry.
func ByType(compressors map[filetype.Type]Compressor, fallback Compressor) Policy {
	copied := make(map[filetype.Type]Compressor, len(compressors))
	for fileType, compressor := range compressors {
		copied[fileType] = compressor
	}
	return typedPolicy{compressors: copied, fallback: fallback}
}

type typedPolicy struct {
	compressors map[filetype.Type]Compressor
	fallback    Compressor
}

func (policy typedPolicy) For(fileType filetype.Type) Compressor {
	if compressor, ok := policy.compressors[fileType]; ok {
		return compressor
	}
	return policy.fallback
}
