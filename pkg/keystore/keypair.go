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

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/encoding"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

// SoftwareKeyPairStore keeps RSA key pairs in a storage.Backend. Private
// keys are stored as passphrase-encrypted PKCS#8 PEM, certificates as PEM.
//
// Thread-safe: Yes, uses a read-write mutex for concurrent access.
type SoftwareKeyPairStore struct {
	storage    storage.Backend
	passphrase *secure.Key
	opts       *options
	closed     bool
	mu         sync.RWMutex
}

// NewKeyPairStore creates a key pair store over backend. The passphrase is
// copied into protected memory.
func NewKeyPairStore(backend storage.Backend, passphrase []byte, opts ...Option) (*SoftwareKeyPairStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("keystore: storage backend is required")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	pw, err := newPassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	return &SoftwareKeyPairStore{
		storage:    backend,
		passphrase: pw,
		opts:       o,
	}, nil
}

// Get loads the key pair under alias
func (s *SoftwareKeyPairStore) Get(alias string) (*KeyPair, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	keyPEM, err := s.read(storage.PrivateKeyPath(alias))
	if err != nil {
		return nil, err
	}
	certPEM, err := s.read(storage.CertificatePath(alias))
	if err != nil {
		return nil, err
	}

	var privateKey *rsa.PrivateKey
	err = s.passphrase.Use(func(pw []byte) error {
		key, err := encoding.DecodePrivateKeyPEM(keyPEM, pw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("%w: not an RSA key", ErrDecrypt)
		}
		privateKey = rsaKey
		return nil
	})
	if err != nil {
		return nil, err
	}

	cert, err := encoding.DecodeCertificatePEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to decode certificate %s: %w", alias, err)
	}

	if !privateKey.PublicKey.Equal(cert.PublicKey) {
		return nil, fmt.Errorf("%w: certificate does not match private key for %s", ErrDecrypt, alias)
	}

	return &KeyPair{PrivateKey: privateKey, Certificate: cert}, nil
}

// Generate creates an RSA key pair and a self-signed certificate with
// subject "CN=<alias> CA Certificate", serial 1, valid for the configured
// window starting now.
func (s *SoftwareKeyPairStore) Generate(alias string) (*KeyPair, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, s.opts.keySize)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to generate RSA key: %w", err)
	}

	cert, err := s.selfSign(alias, privateKey)
	if err != nil {
		return nil, err
	}

	var keyPEM []byte
	err = s.passphrase.Use(func(pw []byte) error {
		keyPEM, err = encoding.EncodePrivateKeyPEM(privateKey, pw)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to encode private key: %w", err)
	}

	certPEM, err := encoding.EncodeCertificatePEM(cert)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to encode certificate: %w", err)
	}

	// Certificate first: a pair is only visible once the private key lands.
	if err := s.storage.Put(storage.CertificatePath(alias), certPEM, storage.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("keystore: failed to store certificate %s: %w", alias, err)
	}
	if err := s.storage.Put(storage.PrivateKeyPath(alias), keyPEM, storage.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("keystore: failed to store private key %s: %w", alias, err)
	}

	s.opts.logger.Debug("generated key pair",
		logging.String("alias", alias),
		logging.Int("bits", s.opts.keySize))

	return &KeyPair{PrivateKey: privateKey, Certificate: cert}, nil
}

// Delete removes both halves of the pair
func (s *SoftwareKeyPairStore) Delete(alias string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, name := range []string{storage.PrivateKeyPath(alias), storage.CertificatePath(alias)} {
		if err := s.storage.Delete(name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("keystore: failed to delete %s: %w", name, err)
		}
	}
	return nil
}

// Close destroys the cached passphrase and closes the storage backend
func (s *SoftwareKeyPairStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.passphrase.Destroy()
	return s.storage.Close()
}

func (s *SoftwareKeyPairStore) read(name string) ([]byte, error) {
	data, err := s.storage.Get(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keystore: failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *SoftwareKeyPairStore) selfSign(alias string, privateKey *rsa.PrivateKey) (*x509.Certificate, error) {
	notBefore := s.opts.now()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: alias + " CA Certificate"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(s.opts.validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to parse certificate: %w", err)
	}
	return cert, nil
}
