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

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Blob name prefixes used by the key stores and the encrypted value backend
const (
	SymmetricKeyPrefix = "symmetric/"
	KeyPairPrefix      = "keypairs/"
	ValuePrefix        = "values/"
)

// SymmetricKeyPath returns the storage path for a symmetric key.
// The path follows the convention: symmetric/{alias}.key
func SymmetricKeyPath(alias string) string {
	return SymmetricKeyPrefix + alias + ".key"
}

// PrivateKeyPath returns the storage path for a key pair's private key.
// The path follows the convention: keypairs/{alias}.key.pem
func PrivateKeyPath(alias string) string {
	return KeyPairPrefix + alias + ".key.pem"
}

// CertificatePath returns the storage path for a key pair's certificate.
// The path follows the convention: keypairs/{alias}.crt.pem
func CertificatePath(alias string) string {
	return KeyPairPrefix + alias + ".crt.pem"
}

// ValuePath returns the storage path for the value stored under key. Keys
// are hashed so any string maps to a fixed-length, filesystem-safe name
// that does not reveal the key.
func ValuePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return ValuePrefix + hex.EncodeToString(sum[:])
}

// CountValues returns the number of values stored in backend
func CountValues(backend Backend) (int, error) {
	names, err := backend.List(ValuePrefix)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, name := range names {
		if strings.TrimPrefix(name, ValuePrefix) != "" {
			n++
		}
	}
	return n, nil
}
