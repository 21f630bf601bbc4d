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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestPrivateKeyPEM_Encrypted(t *testing.T) {
	key := testRSAKey(t)
	password := []byte("correct horse battery staple")

	data, err := EncodePrivateKeyPEM(key, password)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ENCRYPTED PRIVATE KEY")

	decoded, err := DecodePrivateKeyPEM(data, password)
	require.NoError(t, err)
	rsaKey, ok := decoded.(*rsa.PrivateKey)
	require.True(t, ok)
	assert.True(t, key.Equal(rsaKey))

	_, err = DecodePrivateKeyPEM(data, []byte("wrong"))
	assert.Error(t, err)
}

func TestPrivateKeyPEM_Plain(t *testing.T) {
	key := testRSAKey(t)

	data, err := EncodePrivateKeyPEM(key, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN PRIVATE KEY")

	decoded, err := DecodePrivateKeyPEM(data, nil)
	require.NoError(t, err)
	assert.True(t, key.Equal(decoded))
}

func TestPrivateKeyPEM_Invalid(t *testing.T) {
	_, err := EncodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = DecodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = DecodePrivateKeyPEM([]byte("not pem"), nil)
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)

	_, err = DecodePKCS8(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestCertificatePEM(t *testing.T) {
	key := testRSAKey(t)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	data, err := EncodeCertificatePEM(cert)
	require.NoError(t, err)

	decoded, err := DecodeCertificatePEM(data)
	require.NoError(t, err)
	assert.Equal(t, "test", decoded.Subject.CommonName)
	assert.True(t, cert.Equal(decoded))

	_, err = EncodeCertificatePEM(nil)
	assert.ErrorIs(t, err, ErrInvalidCertificate)

	_, err = DecodeCertificatePEM([]byte("junk"))
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)
}
