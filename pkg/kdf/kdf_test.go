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

package kdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams keeps Argon2 at its minimum cost so tests stay fast
var testParams = Params{Memory: MinArgon2Memory, Time: 1, Threads: 1, KeyLength: 32}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)

	a, err := DeriveKey([]byte("passphrase"), salt, testParams)
	require.NoError(t, err)
	b, err := DeriveKey([]byte("passphrase"), salt, testParams)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
}

func TestDeriveKey_SaltAndPassphraseMatter(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)
	base, err := DeriveKey([]byte("passphrase"), salt, testParams)
	require.NoError(t, err)

	otherSalt := bytes.Repeat([]byte{8}, SaltSize)
	k1, err := DeriveKey([]byte("passphrase"), otherSalt, testParams)
	require.NoError(t, err)
	assert.NotEqual(t, base, k1)

	k2, err := DeriveKey([]byte("passphrase2"), salt, testParams)
	require.NoError(t, err)
	assert.NotEqual(t, base, k2)
}

func TestDeriveKey_Errors(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)

	_, err := DeriveKey(nil, salt, testParams)
	assert.ErrorIs(t, err, ErrInvalidPassphrase)

	_, err = DeriveKey([]byte("p"), salt[:8], testParams)
	assert.ErrorIs(t, err, ErrInvalidSalt)

	bad := testParams
	bad.KeyLength = 20
	_, err = DeriveKey([]byte("p"), salt, bad)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"memory", func(p *Params) { p.Memory = 1024 }, ErrInvalidMemory},
		{"time", func(p *Params) { p.Time = 0 }, ErrInvalidTime},
		{"threads", func(p *Params) { p.Threads = 0 }, ErrInvalidThreads},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.want)
		})
	}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, a, SaltSize)
	assert.NotEqual(t, a, b)
}
