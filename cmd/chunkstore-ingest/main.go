// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chunkstore-ingest compresses, encrypts, and chunks files and appends
// one manifest per file to a manifest log.
//
// Usage:
//
//	chunkstore-ingest [flags] FILE...
//
// Files are processed one at a time in argument order. A failing file
// is reported and skipped; the command exits non-zero if any file
// failed. Configuration comes from --config, else CHUNKSTORE_CONFIG,
// else built-in defaults; flags override the configuration.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/chunkstore/lib/config"
	"github.com/bureau-foundation/chunkstore/lib/filetype"
	"github.com/bureau-foundation/chunkstore/lib/ingest"
	"github.com/bureau-foundation/chunkstore/lib/process"
	"github.com/bureau-foundation/chunkstore/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		logPath     string
		spoolDir    string
		chunkSize   int
		workers     int
		lockLog     bool
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("chunkstore-ingest", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "configuration file (.yaml, .yml, .json, .jsonc)")
	flagSet.StringVar(&logPath, "log", "", "manifest log to append to (overrides paths.log)")
	flagSet.StringVar(&spoolDir, "spool", "", "directory to spool ciphertext chunks into (overrides paths.spool)")
	flagSet.IntVar(&chunkSize, "chunk-size", 0, "chunk size in bytes (overrides chunk.size)")
	flagSet.IntVar(&workers, "workers", 0, "maximum concurrent hashing tasks, 0 for one per chunk (overrides chunk.max_workers)")
	flagSet.BoolVar(&lockLog, "lock", false, "hold an exclusive lock on the log around each append (overrides lock.enabled)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every pipeline stage")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.UsageError{Err: err}
	}

	if showVersion {
		fmt.Fprintf(stdout, "chunkstore-ingest %s\n", version.Info())
		return nil
	}

	files := flagSet.Args()
	if len(files) == 0 {
		return process.Usagef("no input files (see --help)")
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("log") {
		cfg.Paths.Log = logPath
	}
	if flagSet.Changed("spool") {
		cfg.Paths.Spool = spoolDir
	}
	if flagSet.Changed("chunk-size") {
		cfg.Chunk.Size = chunkSize
	}
	if flagSet.Changed("workers") {
		cfg.Chunk.MaxWorkers = workers
	}
	if flagSet.Changed("lock") {
		cfg.Lock.Enabled = &lockLog
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := process.NewLogger(stderr, level)

	pipeline, err := ingest.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		result, err := pipeline.Ingest(file, cfg.Paths.Log)
		if err != nil {
			failed++
			logger.Error("ingestion failed", "file", file, "error", err, "kind", kindName(err))
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\t%d\t%s\n", result.Name, result.Type, result.Chunks, result.Fingerprint)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func kindName(err error) string {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return "unsupported_file_type"
	case errors.Is(err, ingest.ErrEncryption):
		return "encryption"
	case errors.Is(err, ingest.ErrHashWorkerFailure):
		return "hash_worker_failure"
	case errors.Is(err, ingest.ErrIO):
		return "io"
	default:
		return "unknown"
	}
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `chunkstore-ingest - prepare files for content-addressed storage

Each file is classified by extension, compressed, encrypted under a
fresh key, split into fixed-size chunks, and hashed. One manifest line
per file is appended to the manifest log. Successful files are printed
as: name, type, chunk count, manifest fingerprint (tab-separated).

Usage:
    chunkstore-ingest [flags] FILE...

Supported extensions:
%s
Flags:
%s`, supportedExtensions(), flagSet.FlagUsages())
}

func supportedExtensions() string {
	var builder strings.Builder
	for _, fileType := range filetype.All() {
		fmt.Fprintf(&builder, "    %-6s %s\n", fileType, strings.Join(filetype.Extensions(fileType), " "))
	}
	return builder.String()
}
