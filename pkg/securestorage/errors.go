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

package securestorage

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-securestorage/pkg/blobstore"
	"github.com/jeremyhahn/go-securestorage/pkg/codec"
	"github.com/jeremyhahn/go-securestorage/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/keyprovider"
	"github.com/jeremyhahn/go-securestorage/pkg/keystore"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
	"github.com/jeremyhahn/go-securestorage/pkg/validation"
)

var (
	// ErrInvalidArgument is returned for malformed keys or values. It is
	// detected before any I/O or cryptographic work.
	ErrInvalidArgument = errors.New("securestorage: invalid argument")

	// ErrConfiguration is returned at construction when a required setting
	// such as the passphrase or alias is missing or invalid
	ErrConfiguration = errors.New("securestorage: configuration error")

	// ErrCrypto covers key generation, wrap/unwrap and encrypt/decrypt
	// failures, including authentication tag mismatches
	ErrCrypto = errors.New("securestorage: cryptographic failure")

	// ErrPersistence is returned when the backing artifact cannot be read
	// or written, or does not decode
	ErrPersistence = errors.New("securestorage: persistence failure")

	// ErrClosed is returned by operations on a closed Storage
	ErrClosed = errors.New("securestorage: storage is closed")

	// ErrUnsupported is returned when the backend lacks a capability
	ErrUnsupported = errors.New("securestorage: operation not supported by backend")
)

// classify wraps err with the taxonomy sentinel it belongs to. Errors that
// already carry a taxonomy sentinel are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrCrypto),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrUnsupported):
		return err

	case errors.Is(err, validation.ErrInvalidKey),
		errors.Is(err, validation.ErrInvalidValue):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)

	case errors.Is(err, validation.ErrInvalidAlias),
		errors.Is(err, blobstore.ErrInvalidConfig),
		errors.Is(err, keyprovider.ErrInvalidConfig),
		errors.Is(err, keystore.ErrInvalidPassphrase),
		errors.Is(err, keystore.ErrInvalidKeySize),
		errors.Is(err, kdf.ErrInvalidPassphrase),
		errors.Is(err, kdf.ErrInvalidMemory),
		errors.Is(err, kdf.ErrInvalidTime),
		errors.Is(err, kdf.ErrInvalidThreads),
		errors.Is(err, kdf.ErrInvalidKeyLength):
		return fmt.Errorf("%w: %w", ErrConfiguration, err)

	case errors.Is(err, blobstore.ErrCrypto),
		errors.Is(err, keyprovider.ErrKeyUnavailable),
		errors.Is(err, keystore.ErrDecrypt),
		errors.Is(err, aesgcm.ErrAuthentication),
		errors.Is(err, aesgcm.ErrInvalidInput),
		errors.Is(err, aesgcm.ErrInvalidKey),
		errors.Is(err, codec.ErrInvalidUTF8):
		return fmt.Errorf("%w: %w", ErrCrypto, err)

	case errors.Is(err, keyprovider.ErrProviderClosed),
		errors.Is(err, storage.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)

	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
