// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds per-file encryption keys while an ingestion is
// in flight.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock, and marks it excluded from
// core dumps via madvise(MADV_DONTDUMP). [NewRandom] fills a buffer
// straight from a random source so a freshly generated key never
// passes through a heap slice. On Close the memory is zeroed,
// unlocked, and unmapped.
//
// The garbage collector never sees the backing memory and cannot copy
// or relocate it.
package secret
