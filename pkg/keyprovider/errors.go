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

package keyprovider

import "errors"

var (
	// ErrInvalidConfig is returned when the provider configuration is incomplete
	ErrInvalidConfig = errors.New("keyprovider: invalid configuration")

	// ErrKeyUnavailable is returned when the data-encryption key cannot be
	// produced: key generation, storage or unwrap failed
	ErrKeyUnavailable = errors.New("keyprovider: data-encryption key unavailable")

	// ErrProviderClosed is returned after Close
	ErrProviderClosed = errors.New("keyprovider: provider is closed")
)
