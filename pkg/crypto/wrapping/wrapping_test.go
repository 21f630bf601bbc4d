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

package wrapping

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

func TestWrapUnwrapRSAOAEP(t *testing.T) {
	privateKey := generateTestKeyPair(t)
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)

	for _, alg := range []Algorithm{AlgorithmOAEPSHA1, AlgorithmOAEPSHA256} {
		t.Run(string(alg), func(t *testing.T) {
			wrapped, err := WrapRSAOAEP(dek, &privateKey.PublicKey, alg)
			require.NoError(t, err)
			assert.Len(t, wrapped, privateKey.Size())
			assert.NotContains(t, string(wrapped), string(dek))

			unwrapped, err := UnwrapRSAOAEP(wrapped, privateKey, alg)
			require.NoError(t, err)
			assert.Equal(t, dek, unwrapped)
		})
	}
}

func TestUnwrap_WrongKeyPair(t *testing.T) {
	a := generateTestKeyPair(t)
	b := generateTestKeyPair(t)

	wrapped, err := WrapRSAOAEP([]byte("0123456789abcdef0123456789abcdef"), &a.PublicKey, AlgorithmOAEPSHA256)
	require.NoError(t, err)

	_, err = UnwrapRSAOAEP(wrapped, b, AlgorithmOAEPSHA256)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestUnwrap_Corrupted(t *testing.T) {
	key := generateTestKeyPair(t)
	wrapped, err := WrapRSAOAEP([]byte("0123456789abcdef"), &key.PublicKey, AlgorithmOAEPSHA256)
	require.NoError(t, err)

	wrapped[10] ^= 0xFF
	_, err = UnwrapRSAOAEP(wrapped, key, AlgorithmOAEPSHA256)
	assert.ErrorIs(t, err, ErrUnwrap)

	_, err = UnwrapRSAOAEP(nil, key, AlgorithmOAEPSHA256)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestInvalidParameters(t *testing.T) {
	key := generateTestKeyPair(t)

	_, err := WrapRSAOAEP(nil, &key.PublicKey, AlgorithmOAEPSHA256)
	assert.Error(t, err)

	_, err = WrapRSAOAEP([]byte("k"), nil, AlgorithmOAEPSHA256)
	assert.Error(t, err)

	_, err = WrapRSAOAEP([]byte("k"), &key.PublicKey, "RSA_PKCS1")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = UnwrapRSAOAEP([]byte("k"), nil, AlgorithmOAEPSHA256)
	assert.Error(t, err)

	_, err = UnwrapRSAOAEP([]byte("k"), key, "RSA_PKCS1")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
