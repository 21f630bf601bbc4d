// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securestorage.
//
// go-securestorage is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package aesgcm provides nonce-prefixed AES-GCM encryption of small payloads.
//
// Blob layout:
//
//	authenticated: nonce(12) || ciphertext || tag(16)
//	legacy:        nonce(12) || ciphertext
//
// The legacy layout is only produced when the Provider rejects the GCM
// parameters. It is AES-CTR laid out exactly like GCM's keystream (counter
// block nonce || 0x00000002), so its ciphertext body matches what GCM would
// have produced, but it carries no tag and forfeits integrity protection.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-securestorage/pkg/logging"
)

const (
	// NonceSize is the length of the random nonce prefixed to every blob
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes (128 bits)
	TagSize = 16
)

// Mode identifies the cipher mode a blob was produced or opened with
type Mode int

const (
	// ModeGCM is authenticated AES-GCM
	ModeGCM Mode = iota
	// ModeLegacy is tagless AES-CTR with the GCM counter layout
	ModeLegacy
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeGCM:
		return "gcm"
	case ModeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidInput indicates the blob is shorter than the nonce
	ErrInvalidInput = errors.New("aesgcm: ciphertext too short")

	// ErrInvalidKey indicates the key is not 16, 24 or 32 bytes
	ErrInvalidKey = errors.New("aesgcm: invalid key size")

	// ErrAuthentication indicates the tag did not verify
	ErrAuthentication = errors.New("aesgcm: message authentication failed")

	// ErrUnsupportedParameters is returned by a Provider that cannot honor
	// the requested GCM parameters. It triggers the legacy fallback.
	ErrUnsupportedParameters = errors.New("aesgcm: unsupported cipher parameters")
)

// Provider constructs the underlying cipher primitives.
type Provider interface {
	// NewGCM returns an AEAD with a standard nonce and the given tag size,
	// or ErrUnsupportedParameters when the parameters are not recognized.
	NewGCM(key []byte, tagSize int) (cipher.AEAD, error)

	// NewCTR returns a CTR keystream starting at the given counter block.
	NewCTR(key, iv []byte) (cipher.Stream, error)
}

// StdProvider implements Provider with crypto/aes and crypto/cipher
type StdProvider struct{}

// NewGCM implements Provider
func (StdProvider) NewGCM(key []byte, tagSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if tagSize == TagSize {
		return cipher.NewGCM(block)
	}
	return cipher.NewGCMWithTagSize(block, tagSize)
}

// NewCTR implements Provider
func (StdProvider) NewCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

// FallbackFunc is notified whenever the legacy mode is used.
// direction is "encrypt" or "decrypt".
type FallbackFunc func(direction string)

// AESGCM provides AES-GCM encryption/decryption
type AESGCM struct {
	provider   Provider
	random     io.Reader
	logger     logging.Logger
	onFallback FallbackFunc
}

// Option configures an AESGCM
type Option func(*AESGCM)

// WithProvider replaces the cipher provider
func WithProvider(p Provider) Option {
	return func(a *AESGCM) { a.provider = p }
}

// WithRandom replaces the nonce source
func WithRandom(r io.Reader) Option {
	return func(a *AESGCM) { a.random = r }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(a *AESGCM) { a.logger = l }
}

// WithFallbackFunc registers a callback for legacy mode use
func WithFallbackFunc(fn FallbackFunc) Option {
	return func(a *AESGCM) { a.onFallback = fn }
}

// New creates a new AESGCM instance
func New(opts ...Option) *AESGCM {
	a := &AESGCM{
		provider: StdProvider{},
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNoOp(a.logger)
	return a
}

// Encrypt encrypts plaintext under key and returns nonce || ciphertext || tag
func (a *AESGCM) Encrypt(key, plaintext []byte) ([]byte, error) {
	blob, _, err := a.EncryptWithMode(key, plaintext)
	return blob, err
}

// EncryptWithMode is Encrypt that also reports the mode that was used
func (a *AESGCM) EncryptWithMode(key, plaintext []byte) ([]byte, Mode, error) {
	if err := checkKey(key); err != nil {
		return nil, ModeGCM, err
	}

	// A fresh nonce for every call; never reused under the same key.
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(a.random, nonce); err != nil {
		return nil, ModeGCM, fmt.Errorf("aesgcm: failed to generate nonce: %w", err)
	}

	gcm, err := a.provider.NewGCM(key, TagSize)
	if err == nil {
		if gcm.NonceSize() != NonceSize {
			return nil, ModeGCM, fmt.Errorf("aesgcm: provider nonce size %d", gcm.NonceSize())
		}
		// Prepend nonce to ciphertext
		return gcm.Seal(nonce, nonce, plaintext, nil), ModeGCM, nil
	}
	if !errors.Is(err, ErrUnsupportedParameters) {
		return nil, ModeGCM, fmt.Errorf("aesgcm: failed to create GCM: %w", err)
	}

	a.fallback("encrypt")
	stream, err := a.provider.NewCTR(key, legacyCounter(nonce))
	if err != nil {
		return nil, ModeLegacy, fmt.Errorf("aesgcm: failed to create legacy cipher: %w", err)
	}
	out := make([]byte, NonceSize+len(plaintext))
	copy(out, nonce)
	stream.XORKeyStream(out[NonceSize:], plaintext)
	return out, ModeLegacy, nil
}

// Decrypt decrypts a blob produced by Encrypt
func (a *AESGCM) Decrypt(key, blob []byte) ([]byte, error) {
	plaintext, _, err := a.DecryptWithMode(key, blob)
	return plaintext, err
}

// DecryptWithMode is Decrypt that also reports the mode that was used
func (a *AESGCM) DecryptWithMode(key, blob []byte) ([]byte, Mode, error) {
	if len(blob) < NonceSize {
		return nil, ModeGCM, ErrInvalidInput
	}
	if err := checkKey(key); err != nil {
		return nil, ModeGCM, err
	}

	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]

	gcm, err := a.provider.NewGCM(key, TagSize)
	if err == nil {
		plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, ModeGCM, ErrAuthentication
		}
		return plaintext, ModeGCM, nil
	}
	if !errors.Is(err, ErrUnsupportedParameters) {
		return nil, ModeGCM, fmt.Errorf("aesgcm: failed to create GCM: %w", err)
	}

	a.fallback("decrypt")
	stream, err := a.provider.NewCTR(key, legacyCounter(nonce))
	if err != nil {
		return nil, ModeLegacy, fmt.Errorf("aesgcm: failed to create legacy cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, ModeLegacy, nil
}

func (a *AESGCM) fallback(direction string) {
	a.logger.Warn("provider rejected GCM parameters, using unauthenticated legacy mode",
		logging.String("direction", direction))
	if a.onFallback != nil {
		a.onFallback(direction)
	}
}

// legacyCounter returns the CTR counter block GCM uses for the first
// block of plaintext with a 96-bit nonce.
func legacyCounter(nonce []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	binary.BigEndian.PutUint32(iv[NonceSize:], 2)
	return iv
}

func checkKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
}
