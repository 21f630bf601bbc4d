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

import (
	"errors"
	"testing"

	"github.com/jeremyhahn/go-securestorage/pkg/codec"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/keystore"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAlias = "SecureStorage"

// countingSymmetricStore records calls and can inject failures
type countingSymmetricStore struct {
	keystore.SymmetricKeyStore
	gets        int
	generates   int
	generateErr error
}

func (c *countingSymmetricStore) Get(alias string) ([]byte, error) {
	c.gets++
	return c.SymmetricKeyStore.Get(alias)
}

func (c *countingSymmetricStore) Generate(alias string) ([]byte, error) {
	c.generates++
	if c.generateErr != nil {
		return nil, c.generateErr
	}
	return c.SymmetricKeyStore.Generate(alias)
}

func newSymmetricStore(t *testing.T) *countingSymmetricStore {
	t.Helper()
	ks, err := keystore.NewSymmetricKeyStore(storage.New(), []byte("passphrase"),
		keystore.WithKDFParams(kdf.Params{Memory: kdf.MinArgon2Memory, Time: 1, Threads: 1, KeyLength: 32}))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return &countingSymmetricStore{SymmetricKeyStore: ks}
}

func newKeyPairStore(t *testing.T) keystore.KeyPairStore {
	t.Helper()
	ks, err := keystore.NewKeyPairStore(storage.New(), []byte("passphrase"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty alias", Config{Direct: true, SymmetricKeys: &countingSymmetricStore{}}},
		{"whitespace alias", Config{Alias: "  ", Direct: true, SymmetricKeys: &countingSymmetricStore{}}},
		{"direct without store", Config{Alias: testAlias, Direct: true}},
		{"wrapped without key pairs", Config{Alias: testAlias, Preferences: storage.New()}},
		{"wrapped without preferences", Config{Alias: testAlias, KeyPairs: &fakeKeyPairStore{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDirect_GeneratesOnceAndCaches(t *testing.T) {
	store := newSymmetricStore(t)

	p, err := New(Config{Alias: testAlias, Direct: true, SymmetricKeys: store})
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, p.Strategy())

	key1, err := p.GetOrCreateKey()
	require.NoError(t, err)
	assert.Len(t, key1, keystore.SymmetricKeySize)

	key2, err := p.GetOrCreateKey()
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, store.generates)

	// a new provider over the same store finds the existing key
	p2, err := New(Config{Alias: testAlias, Direct: true, SymmetricKeys: store})
	require.NoError(t, err)
	key3, err := p2.GetOrCreateKey()
	require.NoError(t, err)
	assert.Equal(t, key1, key3)
	assert.Equal(t, 1, store.generates)
}

func TestDirect_GenerateFailureNotCached(t *testing.T) {
	store := newSymmetricStore(t)
	store.generateErr = errors.New("keystore unavailable")

	p, err := New(Config{Alias: testAlias, Direct: true, SymmetricKeys: store})
	require.NoError(t, err)

	_, err = p.GetOrCreateKey()
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	store.generateErr = nil
	key, err := p.GetOrCreateKey()
	require.NoError(t, err)
	assert.Len(t, key, keystore.SymmetricKeySize)
}

func TestWrapped_CreateAndReload(t *testing.T) {
	pairs := newKeyPairStore(t)
	prefs := storage.New()

	p, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	assert.Equal(t, StrategyWrapped, p.Strategy())

	key, err := p.GetOrCreateKey()
	require.NoError(t, err)
	assert.Len(t, key, DataKeySize)

	_, err = pairs.Get(testAlias + KeyPairSuffix)
	require.NoError(t, err)

	encoded, err := prefs.Get(WrappedKeyPreference)
	require.NoError(t, err)
	wrapped, err := codec.DecodeBase64(string(encoded))
	require.NoError(t, err)
	assert.NotEqual(t, key, wrapped)

	// a fresh provider (new process) unwraps the same key
	p2, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	reloaded, err := p2.GetOrCreateKey()
	require.NoError(t, err)
	assert.Equal(t, key, reloaded)
}

func TestWrapped_KeyPairWithoutWrappedKey(t *testing.T) {
	pairs := newKeyPairStore(t)
	prefs := storage.New()

	_, err := pairs.Generate(testAlias + KeyPairSuffix)
	require.NoError(t, err)

	p, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)

	key, err := p.GetOrCreateKey()
	require.NoError(t, err)
	assert.Len(t, key, DataKeySize)

	exists, err := prefs.Exists(WrappedKeyPreference)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWrapped_OrphanedWrappedKeyIsReplaced(t *testing.T) {
	pairs := newKeyPairStore(t)
	prefs := storage.New()

	p, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	original, err := p.GetOrCreateKey()
	require.NoError(t, err)
	oldWrapped, err := prefs.Get(WrappedKeyPreference)
	require.NoError(t, err)

	// key pair lost, wrapped key left behind
	require.NoError(t, pairs.Delete(testAlias+KeyPairSuffix))

	p2, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	replacement, err := p2.GetOrCreateKey()
	require.NoError(t, err)
	assert.NotEqual(t, original, replacement)

	newWrapped, err := prefs.Get(WrappedKeyPreference)
	require.NoError(t, err)
	assert.NotEqual(t, oldWrapped, newWrapped)

	// and the replacement is stable
	p3, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	again, err := p3.GetOrCreateKey()
	require.NoError(t, err)
	assert.Equal(t, replacement, again)
}

func TestWrapped_CorruptedWrappedKey(t *testing.T) {
	pairs := newKeyPairStore(t)
	prefs := storage.New()

	p, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
	require.NoError(t, err)
	_, err = p.GetOrCreateKey()
	require.NoError(t, err)

	for name, value := range map[string][]byte{
		"not base64": []byte("!!!"),
		"garbage":    []byte(codec.EncodeBase64([]byte("definitely not a wrapped key"))),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, prefs.Put(WrappedKeyPreference, value, nil))

			p2, err := New(Config{Alias: testAlias, KeyPairs: pairs, Preferences: prefs})
			require.NoError(t, err)
			_, err = p2.GetOrCreateKey()
			assert.ErrorIs(t, err, ErrKeyUnavailable)

			// failures are not cached
			_, err = p2.GetOrCreateKey()
			assert.ErrorIs(t, err, ErrKeyUnavailable)
		})
	}
}

func TestUseKey_AndClose(t *testing.T) {
	p, err := New(Config{Alias: testAlias, Direct: true, SymmetricKeys: newSymmetricStore(t)})
	require.NoError(t, err)

	var size int
	require.NoError(t, p.UseKey(func(key []byte) error {
		size = len(key)
		return nil
	}))
	assert.Equal(t, keystore.SymmetricKeySize, size)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.GetOrCreateKey()
	assert.ErrorIs(t, err, ErrProviderClosed)
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "direct", StrategyDirect.String())
	assert.Equal(t, "wrapped", StrategyWrapped.String())
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}

type fakeKeyPairStore struct {
	keystore.KeyPairStore
}
