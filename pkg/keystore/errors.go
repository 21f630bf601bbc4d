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

package keystore

import "errors"

var (
	// ErrKeyNotFound is returned when no key exists under the alias
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrInvalidAlias is returned for empty aliases or aliases containing a path separator
	ErrInvalidAlias = errors.New("keystore: invalid alias")

	// ErrInvalidPassphrase is returned when the protecting passphrase is empty
	ErrInvalidPassphrase = errors.New("keystore: invalid passphrase")

	// ErrInvalidKeySize is returned for RSA key sizes below 2048 bits
	ErrInvalidKeySize = errors.New("keystore: invalid key size")

	// ErrDecrypt is returned when stored key material cannot be decrypted,
	// e.g. a wrong passphrase or a corrupted entry
	ErrDecrypt = errors.New("keystore: failed to decrypt key material")

	// ErrStoreClosed is returned when operations are attempted on a closed store
	ErrStoreClosed = errors.New("keystore: store is closed")
)
