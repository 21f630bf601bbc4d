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

package blobstore

import "errors"

var (
	// ErrCrypto is returned when the artifact cannot be sealed or opened
	ErrCrypto = errors.New("blobstore: cryptographic failure")

	// ErrCorrupt is returned when an opened artifact is not a valid mapping
	ErrCorrupt = errors.New("blobstore: corrupt artifact")

	// ErrPersistence is returned when the artifact cannot be read or written
	ErrPersistence = errors.New("blobstore: persistence failure")

	// ErrInvalidConfig is returned for missing constructor arguments
	ErrInvalidConfig = errors.New("blobstore: invalid configuration")
)
