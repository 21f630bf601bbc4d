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

// Package kdf derives symmetric keys from storage passphrases using Argon2id.
package kdf

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the salt length written in front of passphrase-protected blobs
	SaltSize = 16

	// MinArgon2SaltLength is the minimum accepted salt length in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1

	// MinArgon2Threads is the minimum number of threads
	MinArgon2Threads = 1
)

var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidPassphrase indicates the passphrase is empty
	ErrInvalidPassphrase = errors.New("kdf: invalid passphrase")
)

// Params contains Argon2id cost parameters
type Params struct {
	// Memory is the memory cost in KiB
	Memory uint32

	// Time is the number of passes over memory
	Time uint32

	// Threads is the degree of parallelism
	Threads uint8

	// KeyLength is the desired output key length in bytes
	KeyLength int
}

// DefaultParams returns the parameters used for stored passphrase protection:
// time=1, memory=64MiB, threads=4, keyLen=32.
func DefaultParams() Params {
	return Params{
		Memory:    64 * 1024,
		Time:      1,
		Threads:   4,
		KeyLength: 32,
	}
}

// Validate checks the parameters against the minimum costs
func (p Params) Validate() error {
	if p.KeyLength != 16 && p.KeyLength != 24 && p.KeyLength != 32 {
		return ErrInvalidKeyLength
	}
	if p.Memory < MinArgon2Memory {
		return ErrInvalidMemory
	}
	if p.Time < MinArgon2Time {
		return ErrInvalidTime
	}
	if p.Threads < MinArgon2Threads {
		return ErrInvalidThreads
	}
	return nil
}

// DeriveKey derives a key from passphrase and salt with Argon2id
func DeriveKey(passphrase, salt []byte, params Params) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrInvalidPassphrase
	}
	if len(salt) < MinArgon2SaltLength {
		return nil, ErrInvalidSalt
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, uint32(params.KeyLength)), nil
}

// NewSalt returns SaltSize random bytes
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("kdf: failed to generate salt: %w", err)
	}
	return salt, nil
}
