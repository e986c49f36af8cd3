// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"bytes"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestHasher(t *testing.T, options Options) *Hasher {
	t.Helper()
	hasher, err := NewHasher(options)
	if err != nil {
		t.Fatalf("NewHasher(%+v) failed: %v", options, err)
	}
	return hasher
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func randomBytes(t *testing.T, length int) []byte {
	t.Helper()
	data := make([]byte, length)
	if _, err := cryptorand.Read(data); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSplitLengths(t *testing.T) {
	const size = 100
	tests := []struct {
		length    int
		wantCount int
		wantLast  int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{99, 1, 99},
		{100, 1, 100},
		{101, 2, 1},
		{300, 3, 100},
		{307, 4, 7},
	}

	for _, tt := range tests {
		data := make([]byte, tt.length)
		blocks := Split(data, size)

		if len(blocks) != tt.wantCount {
			t.Errorf("length %d: %d blocks, want %d", tt.length, len(blocks), tt.wantCount)
			continue
		}
		if Count(tt.length, size) != tt.wantCount {
			t.Errorf("Count(%d, %d) = %d, want %d", tt.length, size, Count(tt.length, size), tt.wantCount)
		}
		if tt.wantCount == 0 {
			continue
		}
		for i, block := range blocks[:len(blocks)-1] {
			if len(block) != size {
				t.Errorf("length %d: block %d has %d bytes, want %d", tt.length, i, len(block), size)
			}
		}
		last := blocks[len(blocks)-1]
		if len(last) != tt.wantLast {
			t.Errorf("length %d: last block has %d bytes, want %d", tt.length, len(last), tt.wantLast)
		}
		if want := tt.length - (tt.wantCount-1)*size; len(last) != want {
			t.Errorf("length %d: last block %d != length - (count-1)*size = %d", tt.length, len(last), want)
		}
	}
}

func TestSplitAliasesWithoutOverlap(t *testing.T) {
	data := []byte("abcdefghij")
	blocks := Split(data, 4)

	if !bytes.Equal(bytes.Join(blocks, nil), data) {
		t.Fatal("concatenated blocks do not reproduce input")
	}

	// Appending to a block must not clobber its neighbour.
	_ = append(blocks[0], 'X')
	if data[4] != 'e' {
		t.Error("append to block 0 overwrote block 1")
	}
}

func TestSplitPanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Split with size 0 should panic")
		}
	}()
	Split([]byte("x"), 0)
}

func TestCountPanicsOnBadSize(t *testing.T) {
	for _, size := range []int{0, -4} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Count(10, %d) should panic", size)
				}
			}()
			Count(10, size)
		})
	}
}

func TestNewHasherValidation(t *testing.T) {
	if _, err := NewHasher(Options{Size: -1}); err == nil {
		t.Error("negative size should fail")
	}
	if _, err := NewHasher(Options{MaxWorkers: -1}); err == nil {
		t.Error("negative max workers should fail")
	}
	if _, err := NewHasher(Options{Digest: Digest(7)}); err == nil {
		t.Error("unknown digest should fail")
	}

	hasher := newTestHasher(t, Options{})
	if hasher.Size() != DefaultSize {
		t.Errorf("default size = %d, want %d", hasher.Size(), DefaultSize)
	}
	if hasher.Digest() != SHA256 {
		t.Errorf("default digest = %v, want sha256", hasher.Digest())
	}
}

func TestHashMatchesIndependentDigest(t *testing.T) {
	const size = 1000
	data := randomBytes(t, 10*size+123)
	hasher := newTestHasher(t, Options{Size: size})

	records, err := hasher.Hash(data)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(records) != Count(len(data), size) {
		t.Fatalf("%d records, want %d", len(records), Count(len(data), size))
	}

	for i, record := range records {
		if record.Index != i {
			t.Errorf("record %d has index %d", i, record.Index)
		}
		start := i * size
		end := min(start+size, len(data))
		if want := sha256Hex(data[start:end]); record.Hash != want {
			t.Errorf("record %d hash = %s, want %s", i, record.Hash, want)
		}
		if len(record.Hash) != DigestLength {
			t.Errorf("record %d hash has %d characters", i, len(record.Hash))
		}
	}

	if err := Verify(data, size, records, SHA256); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestHashEmpty(t *testing.T) {
	records, err := newTestHasher(t, Options{Size: 16}).Hash(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("empty input produced %d records", len(records))
	}
}

func TestHashBLAKE3(t *testing.T) {
	data := randomBytes(t, 4096)
	shaRecords, err := newTestHasher(t, Options{Size: 1024}).Hash(data)
	if err != nil {
		t.Fatal(err)
	}
	blakeRecords, err := newTestHasher(t, Options{Size: 1024, Digest: BLAKE3}).Hash(data)
	if err != nil {
		t.Fatal(err)
	}

	if len(blakeRecords) != 4 {
		t.Fatalf("%d records, want 4", len(blakeRecords))
	}
	for i := range blakeRecords {
		if len(blakeRecords[i].Hash) != DigestLength {
			t.Errorf("blake3 record %d hash has %d characters", i, len(blakeRecords[i].Hash))
		}
		if blakeRecords[i].Hash == shaRecords[i].Hash {
			t.Errorf("record %d: blake3 and sha256 digests are equal", i)
		}
	}
	if err := Verify(data, 1024, blakeRecords, BLAKE3); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := Verify(data, 1024, blakeRecords, SHA256); err == nil {
		t.Error("Verify with the wrong digest should fail")
	}
}

func TestHashOrderUnderRandomDelays(t *testing.T) {
	const size = 64
	data := randomBytes(t, 200*size+5)

	delayed := func(block []byte) (string, error) {
		time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
		return hashSHA256(block)
	}

	for _, workers := range []int{0, 3} {
		hasher := newTestHasher(t, Options{Size: size, MaxWorkers: workers, Hash: delayed})
		records, err := hasher.Hash(data)
		if err != nil {
			t.Fatalf("workers=%d: Hash failed: %v", workers, err)
		}
		if err := Verify(data, size, records, SHA256); err != nil {
			t.Errorf("workers=%d: %v", workers, err)
		}
	}
}

func TestHashOrderUnderReversedCompletion(t *testing.T) {
	// Block i is filled with byte i. The task for block i waits until
	// block i+1 has finished, so tasks complete strictly last-to-first.
	const blockCount = 32
	const size = 8
	data := make([]byte, 0, blockCount*size)
	for i := 0; i < blockCount; i++ {
		data = append(data, bytes.Repeat([]byte{byte(i)}, size)...)
	}

	finished := make([]chan struct{}, blockCount+1)
	for i := range finished {
		finished[i] = make(chan struct{})
	}
	close(finished[blockCount])

	var mu sync.Mutex
	var completionOrder []int

	gated := func(block []byte) (string, error) {
		index := int(block[0])
		select {
		case <-finished[index+1]:
		case <-time.After(10 * time.Second):
			return "", errors.New("gate never opened")
		}
		mu.Lock()
		completionOrder = append(completionOrder, index)
		mu.Unlock()
		close(finished[index])
		return hashSHA256(block)
	}

	records, err := newTestHasher(t, Options{Size: size, Hash: gated}).Hash(data)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if completionOrder[0] != blockCount-1 || completionOrder[blockCount-1] != 0 {
		t.Fatalf("completion order was not reversed: %v", completionOrder)
	}
	for i, record := range records {
		if record.Index != i {
			t.Fatalf("record %d has index %d", i, record.Index)
		}
		if want := sha256Hex(data[i*size : (i+1)*size]); record.Hash != want {
			t.Errorf("record %d carries the wrong digest", i)
		}
	}
}

func TestHashFailureWaitsForAllTasks(t *testing.T) {
	const size = 4
	data := make([]byte, 20*size)
	for i := 0; i < 20; i++ {
		data[i*size] = byte(i)
	}

	var completed atomic.Int32
	failing := func(block []byte) (string, error) {
		defer completed.Add(1)
		switch block[0] {
		case 7, 3:
			return "", errors.New("disk on fire")
		case 12:
			time.Sleep(20 * time.Millisecond)
		}
		return hashSHA256(block)
	}

	records, err := newTestHasher(t, Options{Size: size, Hash: failing}).Hash(data)
	if err == nil {
		t.Fatal("expected failure")
	}
	if records != nil {
		t.Errorf("failed Hash returned %d records", len(records))
	}
	if !errors.Is(err, ErrWorkerFailure) {
		t.Errorf("error %v does not match ErrWorkerFailure", err)
	}

	var workerError *WorkerError
	if !errors.As(err, &workerError) {
		t.Fatalf("error %v is not a *WorkerError", err)
	}
	if workerError.Index != 3 {
		t.Errorf("reported failure at chunk %d, want lowest failing index 3", workerError.Index)
	}
	if got := completed.Load(); got != 20 {
		t.Errorf("%d tasks completed before Hash returned, want all 20", got)
	}
}

func TestHashRecoversPanic(t *testing.T) {
	panicking := func(block []byte) (string, error) {
		if block[0] == 1 {
			panic("corrupt state")
		}
		return hashSHA256(block)
	}

	_, err := newTestHasher(t, Options{Size: 1, Hash: panicking}).Hash([]byte{0, 1, 2})
	if !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("expected worker failure, got %v", err)
	}
}

func TestHashRejectsMalformedDigest(t *testing.T) {
	short := func([]byte) (string, error) { return "abc", nil }
	_, err := newTestHasher(t, Options{Size: 2, Hash: short}).Hash([]byte("abcd"))
	if !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("expected worker failure for a short digest, got %v", err)
	}
}

func TestHashRespectsMaxWorkers(t *testing.T) {
	const maxWorkers = 4
	var active, peak atomic.Int32

	tracking := func(block []byte) (string, error) {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return hashSHA256(block)
	}

	hasher := newTestHasher(t, Options{Size: 16, MaxWorkers: maxWorkers, Hash: tracking})
	if _, err := hasher.Hash(make([]byte, 64*16)); err != nil {
		t.Fatal(err)
	}
	if got := peak.Load(); got > maxWorkers {
		t.Errorf("peak concurrency %d exceeds MaxWorkers %d", got, maxWorkers)
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	data := randomBytes(t, 300)
	records, err := newTestHasher(t, Options{Size: 100}).Hash(data)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), data...)
	tampered[150] ^= 0xFF
	if err := Verify(tampered, 100, records, SHA256); err == nil {
		t.Error("Verify accepted tampered data")
	}
	if err := Verify(data, 100, records[:2], SHA256); err == nil {
		t.Error("Verify accepted a short record list")
	}
	if err := Verify(data, 0, records, SHA256); err == nil {
		t.Error("Verify accepted a zero chunk size")
	}
}

func TestDigestStringParse(t *testing.T) {
	for _, digest := range []Digest{SHA256, BLAKE3} {
		parsed, err := ParseDigest(digest.String())
		if err != nil || parsed != digest {
			t.Errorf("ParseDigest(%q) = %v, %v", digest.String(), parsed, err)
		}
	}
	if _, err := ParseDigest("md5"); err == nil {
		t.Error("ParseDigest(\"md5\") should fail")
	}
}
