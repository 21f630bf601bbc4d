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

// Package secure keeps key material that must outlive a single operation
// (the unwrapped data-encryption key, passphrase-derived keys) inside a
// memguard enclave instead of on the Go heap.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed Key is opened
var ErrDestroyed = errors.New("secure: key destroyed")

// Key is an encrypted-at-rest, mlocked holder for symmetric key material.
type Key struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewKey seals a copy of material into an enclave and wipes material.
func NewKey(material []byte) *Key {
	size := len(material)
	// memguard.NewEnclave wipes its argument
	return &Key{
		enclave: memguard.NewEnclave(material),
		size:    size,
	}
}

// Size returns the key length in bytes.
func (k *Key) Size() int {
	return k.size
}

// Use decrypts the key into a locked buffer, calls fn with it, and
// destroys the buffer afterwards. fn must not retain the slice.
func (k *Key) Use(fn func(key []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed || k.enclave == nil {
		return ErrDestroyed
	}

	buf, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Destroy drops the enclave. It is idempotent.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.enclave = nil
	k.destroyed = true
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
