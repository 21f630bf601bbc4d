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

// Package keystore provides the software key stores that stand in for a
// platform's hardware-backed key storage: a symmetric key store holding
// AES keys by alias, and an asymmetric store holding RSA key pairs with a
// self-signed certificate. Entries are protected at rest with the store
// passphrase and persisted through a storage.Backend.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
)

const (
	// SymmetricKeySize is the AES key length generated by the symmetric store
	SymmetricKeySize = 32

	// DefaultRSAKeySize is the modulus size of generated key pairs
	DefaultRSAKeySize = 2048

	// MinRSAKeySize is the smallest accepted modulus size
	MinRSAKeySize = 2048

	// DefaultValidity is the certificate validity window of generated key pairs
	DefaultValidity = 20 * 365 * 24 * time.Hour
)

// SymmetricKeyStore holds persistent symmetric keys by alias.
type SymmetricKeyStore interface {
	// Get returns the key stored under alias or ErrKeyNotFound.
	Get(alias string) ([]byte, error)

	// Generate creates and persists a new key under alias, replacing any
	// existing one, and returns it.
	Generate(alias string) ([]byte, error)

	// Delete removes the key under alias. Deleting an absent key is not an error.
	Delete(alias string) error

	Close() error
}

// KeyPair is an RSA key pair with its self-signed certificate
type KeyPair struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// Public returns the public half of the pair
func (kp *KeyPair) Public() *rsa.PublicKey {
	return &kp.PrivateKey.PublicKey
}

// KeyPairStore holds persistent RSA key pairs by alias.
type KeyPairStore interface {
	// Get returns the pair stored under alias. ErrKeyNotFound is returned
	// when either the private key or the certificate is missing.
	Get(alias string) (*KeyPair, error)

	// Generate creates and persists a new pair under alias, replacing any
	// existing one, and returns it.
	Generate(alias string) (*KeyPair, error)

	// Delete removes both halves of the pair under alias.
	Delete(alias string) error

	Close() error
}

type options struct {
	params   kdf.Params
	keySize  int
	validity time.Duration
	logger   logging.Logger
	now      func() time.Time
}

// Option configures a software key store
type Option func(*options)

// WithKDFParams sets the Argon2id parameters protecting symmetric keys
func WithKDFParams(params kdf.Params) Option {
	return func(o *options) {
		o.params = params
	}
}

// WithKeySize sets the RSA modulus size of generated key pairs
func WithKeySize(bits int) Option {
	return func(o *options) {
		o.keySize = bits
	}
}

// WithValidity sets the certificate validity window of generated key pairs
func WithValidity(d time.Duration) Option {
	return func(o *options) {
		o.validity = d
	}
}

// WithLogger sets the store logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		params:   kdf.DefaultParams(),
		keySize:  DefaultRSAKeySize,
		validity: DefaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNoOp(o.logger)

	if err := o.params.Validate(); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	if o.keySize < MinRSAKeySize {
		return nil, fmt.Errorf("%w: %d bits (minimum %d)", ErrInvalidKeySize, o.keySize, MinRSAKeySize)
	}
	return o, nil
}

func validateAlias(alias string) error {
	if strings.TrimSpace(alias) == "" || strings.ContainsAny(alias, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}
	return nil
}
