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

// Package encoding converts key-pair artifacts to and from their on-disk
// forms: password-protected PKCS#8 private keys and PEM certificates.
package encoding

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8 format.
// If a password is provided the key is encrypted (PBES2, AES-256-CBC).
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("encoding: failed to marshal PKCS#8: %w", err)
	}

	return der, nil
}

// DecodePKCS8 decodes ASN.1 DER PKCS#8 data to a private key, decrypting it
// with password when the data is encrypted.
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("encoding: failed to parse PKCS#8: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok || privKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	return privKey, nil
}

// isPasswordError reports whether err came from a wrong password. youmark/pkcs8
// does not export sentinels, so the message is matched.
func isPasswordError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
