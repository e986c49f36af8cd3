// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/bureau-foundation/chunkstore/lib/chunk"
	"github.com/bureau-foundation/chunkstore/lib/encrypt"
	"github.com/bureau-foundation/chunkstore/lib/filetype"
)

func testParams() Params {
	var key [encrypt.KeySize]byte
	var nonce [encrypt.NonceSize]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	for i := range nonce {
		nonce[i] = byte(0xA0 + i)
	}
	return Params{
		FileType: filetype.Doc,
		Name:     "/data/inbox/report.pdf",
		Chunks: []ChunkRecord{
			{Index: 0, Hash: strings.Repeat("ab", 32)},
			{Index: 1, Hash: strings.Repeat("cd", 32)},
		},
		Key:    key,
		Nonce:  nonce,
		Cipher: encrypt.AES256GCM,
		Digest: chunk.SHA256,
	}
}

func TestBuild(t *testing.T) {
	params := testParams()
	manifest := Build(params)

	if manifest.OriginalName != "report.pdf" {
		t.Errorf("OriginalName = %q, want %q", manifest.OriginalName, "report.pdf")
	}
	if manifest.FileType != filetype.Doc {
		t.Errorf("FileType = %v, want Doc", manifest.FileType)
	}
	if len(manifest.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(manifest.Chunks))
	}
	if manifest.EncryptionKey != params.Key || manifest.Nonce != params.Nonce {
		t.Error("key material not carried into manifest")
	}
	if manifest.Cipher != "" || manifest.Digest != "" {
		t.Errorf("default algorithms should be omitted, got cipher=%q digest=%q", manifest.Cipher, manifest.Digest)
	}

	params.Chunks[0].Hash = strings.Repeat("ff", 32)
	if manifest.Chunks[0].Hash == params.Chunks[0].Hash {
		t.Error("manifest chunk list aliases the caller's slice")
	}

	if err := manifest.Validate(); err != nil {
		t.Errorf("Validate on built manifest: %v", err)
	}
}

func TestBuildEmptyChunkList(t *testing.T) {
	params := testParams()
	params.Chunks = nil
	manifest := Build(params)
	if manifest.Chunks == nil {
		t.Fatal("Chunks should be an empty list, not nil")
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"chunks":[]`) {
		t.Errorf("empty chunk list should serialize as []: %s", data)
	}
}

func TestBuildNonDefaultAlgorithms(t *testing.T) {
	params := testParams()
	params.Cipher = encrypt.ChaCha20Poly1305
	params.Digest = chunk.BLAKE3
	manifest := Build(params)

	if manifest.Cipher != "chacha20-poly1305" {
		t.Errorf("Cipher = %q", manifest.Cipher)
	}
	if manifest.Digest != "blake3" {
		t.Errorf("Digest = %q", manifest.Digest)
	}

	c, err := manifest.CipherAlgorithm()
	if err != nil || c != encrypt.ChaCha20Poly1305 {
		t.Errorf("CipherAlgorithm = %v, %v", c, err)
	}
	d, err := manifest.DigestAlgorithm()
	if err != nil || d != chunk.BLAKE3 {
		t.Errorf("DigestAlgorithm = %v, %v", d, err)
	}
}

func TestJSONShape(t *testing.T) {
	data, err := json.Marshal(Build(testParams()))
	if err != nil {
		t.Fatal(err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}

	if generic["original_name"] != "report.pdf" {
		t.Errorf("original_name = %v", generic["original_name"])
	}
	if generic["file_type"] != "Doc" {
		t.Errorf("file_type = %v, want \"Doc\"", generic["file_type"])
	}

	key, ok := generic["encryption_key"].([]any)
	if !ok || len(key) != encrypt.KeySize {
		t.Fatalf("encryption_key should be an array of %d numbers, got %T %v", encrypt.KeySize, generic["encryption_key"], generic["encryption_key"])
	}
	if key[0] != float64(1) || key[31] != float64(32) {
		t.Errorf("encryption_key values wrong: first=%v last=%v", key[0], key[31])
	}

	nonce, ok := generic["nonce"].([]any)
	if !ok || len(nonce) != encrypt.NonceSize {
		t.Fatalf("nonce should be an array of %d numbers, got %v", encrypt.NonceSize, generic["nonce"])
	}

	chunks, ok := generic["chunks"].([]any)
	if !ok || len(chunks) != 2 {
		t.Fatalf("chunks = %v", generic["chunks"])
	}
	first := chunks[0].(map[string]any)
	if first["index"] != float64(0) || first["hash"] != strings.Repeat("ab", 32) {
		t.Errorf("chunks[0] = %v", first)
	}

	for _, omitted := range []string{"cipher", "digest"} {
		if _, present := generic[omitted]; present {
			t.Errorf("%q should be omitted for default algorithms", omitted)
		}
	}
}

func TestJSONRoundtrip(t *testing.T) {
	original := Build(testParams())
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}
	var decoded FileManifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded manifest invalid: %v", err)
	}

	want, err := original.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	got, err := decoded.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("fingerprint changed across JSON roundtrip: %s != %s", got, want)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FileManifest)
	}{
		{"path in name", func(m *FileManifest) { m.OriginalName = "dir/file.pdf" }},
		{"empty name", func(m *FileManifest) { m.OriginalName = "" }},
		{"unknown type", func(m *FileManifest) { m.FileType = filetype.Type(0) }},
		{"gap in indices", func(m *FileManifest) { m.Chunks[1].Index = 2 }},
		{"short hash", func(m *FileManifest) { m.Chunks[0].Hash = "abc" }},
		{"non-hex hash", func(m *FileManifest) { m.Chunks[0].Hash = strings.Repeat("zz", 32) }},
		{"zero key", func(m *FileManifest) { m.EncryptionKey = [encrypt.KeySize]byte{} }},
		{"zero nonce", func(m *FileManifest) { m.Nonce = [encrypt.NonceSize]byte{} }},
		{"unknown cipher", func(m *FileManifest) { m.Cipher = "rot13" }},
		{"unknown digest", func(m *FileManifest) { m.Digest = "md5" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			manifest := Build(testParams())
			test.mutate(manifest)
			if err := manifest.Validate(); err == nil {
				t.Error("Validate should have failed")
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	first, err := Build(testParams()).Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(first))
	}

	again, err := Build(testParams()).Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Error("fingerprint is not deterministic")
	}

	params := testParams()
	params.Nonce[0] ^= 0xFF
	changed, err := Build(params).Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Error("fingerprint did not change when the nonce changed")
	}
}
