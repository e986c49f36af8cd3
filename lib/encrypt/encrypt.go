// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package encrypt seals compressed file contents with authenticated
// encryption under key material generated fresh for every call.
//
// Each [Sealer.Seal] draws a new 256-bit key and 96-bit nonce from a
// cryptographically secure source. Because a key is never used for
// more than one plaintext, the (key, nonce) pair cannot repeat and
// random 96-bit nonces are safe. The ciphertext and authentication tag
// are returned as one combined buffer:
//
//	[Ciphertext: N bytes] [Tag: 16 bytes]
//
// The key lives in a [secret.Buffer] until the caller closes the
// [Sealed] result.
package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/bureau-foundation/chunkstore/lib/secret"
)

// KeySize is the size in bytes of every per-file key.
const KeySize = 32

// NonceSize is the size in bytes of every per-file nonce. Both
// supported ciphers use the 96-bit IETF nonce.
const NonceSize = 12

// Overhead is the authentication tag size appended to the ciphertext.
const Overhead = 16

// maxDraws bounds redraws of key material that comes out all-zero.
// With a healthy source the first draw is accepted with probability
// 1 - 2^-256; repeated zero draws mean the source is broken.
const maxDraws = 4

// Cipher identifies an AEAD construction.
type Cipher uint8

const (
	// AES256GCM is AES-256 in Galois/Counter Mode. The default.
	AES256GCM Cipher = iota
	// ChaCha20Poly1305 is the IETF ChaCha20-Poly1305 construction
	// (RFC 8439), preferable on hardware without AES instructions.
	ChaCha20Poly1305
)

// String returns the configuration name of the cipher.
func (c Cipher) String() string {
	switch c {
	case AES256GCM:
		return "aes-256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCipher parses a cipher from its configuration name.
func ParseCipher(name string) (Cipher, error) {
	switch name {
	case "aes-256-gcm":
		return AES256GCM, nil
	case "chacha20-poly1305":
		return ChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown cipher: %q", name)
	}
}

// Sealed is the result of one encryption. Close releases the key.
type Sealed struct {
	// Ciphertext is the encrypted data with the tag appended.
	Ciphertext []byte

	// Key is the freshly generated per-file key.
	Key *secret.Buffer

	// Nonce is the freshly generated per-file nonce.
	Nonce [NonceSize]byte

	// Cipher is the construction used.
	Cipher Cipher
}

// Close zeroes and releases the key. Idempotent.
func (s *Sealed) Close() error {
	return s.Key.Close()
}

// Sealer encrypts with one cipher. The zero value is not usable; use
// [NewSealer].
type Sealer struct {
	cipher Cipher
	random io.Reader
}

// NewSealer returns a Sealer for the given cipher that draws key
// material from crypto/rand.
func NewSealer(c Cipher) (*Sealer, error) {
	return newSealer(c, rand.Reader)
}

func newSealer(c Cipher, random io.Reader) (*Sealer, error) {
	if c != AES256GCM && c != ChaCha20Poly1305 {
		return nil, fmt.Errorf("unsupported cipher: %d", c)
	}
	return &Sealer{cipher: c, random: random}, nil
}

// Cipher returns the construction this Sealer uses.
func (s *Sealer) Cipher() Cipher {
	return s.cipher
}

// Seal encrypts plaintext under a new key and nonce.
func (s *Sealer) Seal(plaintext []byte) (*Sealed, error) {
	key, err := s.drawKey()
	if err != nil {
		return nil, err
	}

	nonce, err := s.drawNonce()
	if err != nil {
		key.Close()
		return nil, err
	}

	aead, err := newAEAD(s.cipher, key.Bytes())
	if err != nil {
		key.Close()
		return nil, err
	}

	return &Sealed{
		Ciphertext: aead.Seal(nil, nonce[:], plaintext, nil),
		Key:        key,
		Nonce:      nonce,
		Cipher:     s.cipher,
	}, nil
}

func (s *Sealer) drawKey() (*secret.Buffer, error) {
	for range maxDraws {
		key, err := secret.NewRandom(KeySize, s.random)
		if err != nil {
			return nil, fmt.Errorf("generating key: %w", err)
		}
		if !key.IsZero() {
			return key, nil
		}
		key.Close()
	}
	return nil, fmt.Errorf("generating key: random source returned all-zero key %d times", maxDraws)
}

func (s *Sealer) drawNonce() ([NonceSize]byte, error) {
	var nonce, zero [NonceSize]byte
	for range maxDraws {
		if _, err := io.ReadFull(s.random, nonce[:]); err != nil {
			return nonce, fmt.Errorf("generating nonce: %w", err)
		}
		if subtle.ConstantTimeCompare(nonce[:], zero[:]) == 0 {
			return nonce, nil
		}
	}
	return nonce, fmt.Errorf("generating nonce: random source returned all-zero nonce %d times", maxDraws)
}

// Open decrypts and authenticates ciphertext produced by Seal.
func Open(c Cipher, key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(c, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce is %d bytes, want %d", len(nonce), aead.NonceSize())
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, wrong nonce, or tampered data): %w", err)
	}
	return plaintext, nil
}

func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	switch c {
	case AES256GCM:
		if len(key) != KeySize {
			return nil, fmt.Errorf("AES-256-GCM key is %d bytes, want %d", len(key), KeySize)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("creating AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM: %w", err)
		}
		return aead, nil
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("creating ChaCha20-Poly1305 cipher: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported cipher: %d", c)
	}
}
