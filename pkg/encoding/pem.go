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

package encoding

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const (
	pemTypePrivateKey          = "PRIVATE KEY"
	pemTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemTypeCertificate         = "CERTIFICATE"
)

// EncodePrivateKeyPEM encodes a private key as PKCS#8 PEM. A non-empty
// password produces an "ENCRYPTED PRIVATE KEY" block.
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	der, err := EncodePKCS8(privateKey, password)
	if err != nil {
		return nil, err
	}

	blockType := pemTypePrivateKey
	if len(password) > 0 {
		blockType = pemTypeEncryptedPrivateKey
	}

	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// DecodePrivateKeyPEM decodes a PKCS#8 PEM private key
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}

	switch block.Type {
	case pemTypePrivateKey, pemTypeEncryptedPrivateKey:
	default:
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrInvalidPEMEncoding, block.Type)
	}

	return DecodePKCS8(block.Bytes, password)
}

// EncodeCertificatePEM encodes an x509 certificate to PEM
func EncodeCertificatePEM(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, ErrInvalidCertificate
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: cert.Raw}), nil
}

// DecodeCertificatePEM decodes a PEM certificate
func DecodeCertificatePEM(data []byte) (*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeCertificate {
		return nil, ErrInvalidPEMEncoding
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	return cert, nil
}
