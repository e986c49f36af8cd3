// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chunkstore-log lists and checks the records of a manifest log.
//
// Usage:
//
//	chunkstore-log [flags]
//
// Every record is decoded and validated. Output identifies records by
// manifest fingerprint and never includes key material. With
// --verify, every chunk of every record is looked up in the spool and
// its digest recomputed, and spooled chunks no record lists are
// reported. Configuration comes from --config, else
// CHUNKSTORE_CONFIG, else built-in defaults.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/chunkstore/lib/config"
	"github.com/bureau-foundation/chunkstore/lib/manifest"
	"github.com/bureau-foundation/chunkstore/lib/manifestlog"
	"github.com/bureau-foundation/chunkstore/lib/process"
	"github.com/bureau-foundation/chunkstore/lib/spool"
	"github.com/bureau-foundation/chunkstore/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

// summary is the listing form of a record.
type summary struct {
	Line         int    `json:"line"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	Chunks       int    `json:"chunks"`
	Cipher       string `json:"cipher"`
	Digest       string `json:"digest"`
	Fingerprint  string `json:"fingerprint"`
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		logPath     string
		spoolDir    string
		jsonOutput  bool
		verify      bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("chunkstore-log", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "configuration file (.yaml, .yml, .json, .jsonc)")
	flagSet.StringVar(&logPath, "log", "", "manifest log to read (overrides paths.log)")
	flagSet.StringVar(&spoolDir, "spool", "", "chunk spool for --verify (overrides paths.spool)")
	flagSet.BoolVar(&jsonOutput, "json", false, "print one JSON object per record")
	flagSet.BoolVar(&verify, "verify", false, "check every chunk against the spool")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "chunkstore-log - list and check manifest log records\n\nUsage:\n    chunkstore-log [flags]\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.UsageError{Err: err}
	}
	if showVersion {
		fmt.Fprintf(stdout, "chunkstore-log %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return process.Usagef("unexpected argument: %s", flagSet.Arg(0))
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

	var chunkSpool *spool.Spool
	if verify {
		if cfg.Paths.Spool == "" {
			return process.Usagef("--verify needs a spool directory (--spool or paths.spool)")
		}
		chunkSpool, err = spool.New(cfg.Paths.Spool)
		if err != nil {
			return err
		}
	}

	table := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	encoder := json.NewEncoder(stdout)
	if !jsonOutput {
		fmt.Fprintln(table, "LINE\tNAME\tTYPE\tCHUNKS\tFINGERPRINT")
	}

	records, problems := 0, 0
	referenced := make(map[string]bool)
	err = manifestlog.Scan(cfg.Paths.Log, func(line int, record *manifest.FileManifest) error {
		records++
		for _, entry := range record.Chunks {
			referenced[entry.Hash] = true
		}
		entry, err := summarize(line, record)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := encoder.Encode(entry); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(table, "%d\t%s\t%s\t%d\t%s\n", entry.Line, entry.OriginalName, entry.FileType, entry.Chunks, entry.Fingerprint)
		}

		if chunkSpool != nil {
			for _, issue := range verifyRecord(chunkSpool, record) {
				problems++
				fmt.Fprintf(stderr, "line %d (%s): %s\n", line, record.OriginalName, issue)
			}
		}
		return nil
	})
	if !jsonOutput {
		table.Flush()
	}
	if err != nil {
		return err
	}

	if chunkSpool != nil {
		unreferenced, err := unreferencedChunks(chunkSpool, referenced)
		if err != nil {
			return err
		}
		for _, hash := range unreferenced {
			fmt.Fprintf(stderr, "spool: chunk %s is not referenced by any record\n", hash)
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d chunk problems across %d records", problems, records)
	}
	return nil
}

func summarize(line int, record *manifest.FileManifest) (summary, error) {
	fingerprint, err := record.Fingerprint()
	if err != nil {
		return summary{}, err
	}
	cipher, _ := record.CipherAlgorithm()
	digest, _ := record.DigestAlgorithm()
	return summary{
		Line:         line,
		OriginalName: record.OriginalName,
		FileType:     record.FileType.String(),
		Chunks:       len(record.Chunks),
		Cipher:       cipher.String(),
		Digest:       digest.String(),
		Fingerprint:  fingerprint,
	}, nil
}

// verifyRecord returns one message per chunk that is missing from the
// spool or whose bytes no longer match the recorded digest.
func verifyRecord(chunkSpool *spool.Spool, record *manifest.FileManifest) []string {
	// Validate has already checked the digest name.
	digest, _ := record.DigestAlgorithm()
	hash, err := digest.Func()
	if err != nil {
		return []string{err.Error()}
	}

	var issues []string
	for _, entry := range record.Chunks {
		block, err := chunkSpool.Get(entry.Hash)
		if err != nil {
			issues = append(issues, fmt.Sprintf("chunk %d: %v", entry.Index, err))
			continue
		}
		sum, err := hash(block)
		if err != nil {
			issues = append(issues, fmt.Sprintf("chunk %d: %v", entry.Index, err))
			continue
		}
		if sum != entry.Hash {
			issues = append(issues, fmt.Sprintf("chunk %d: spooled bytes hash to %s", entry.Index, sum))
		}
	}
	return issues
}

// unreferencedChunks returns the spooled chunks no record lists, in
// sorted order. Another log may share the spool, so these are reported
// but not counted as problems.
func unreferencedChunks(chunkSpool *spool.Spool, referenced map[string]bool) ([]string, error) {
	hashes, err := chunkSpool.Hashes()
	if err != nil {
		return nil, err
	}
	var unreferenced []string
	for _, hash := range hashes {
		if !referenced[hash] {
			unreferenced = append(unreferenced, hash)
		}
	}
	slices.Sort(unreferenced)
	return unreferenced, nil
}
