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
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringBackend stores each entry in the platform keyring (macOS
// Keychain, Windows Credential Manager, Secret Service on Linux) keyed by
// (service, key). The platform store is trusted as an opaque primitive.
type KeyringBackend struct {
	service string
}

// NewKeyringBackend creates a keyring backend scoped to service
func NewKeyringBackend(service string) (*KeyringBackend, error) {
	if strings.TrimSpace(service) == "" {
		return nil, fmt.Errorf("%w: keyring service is required", ErrConfiguration)
	}
	return &KeyringBackend{service: service}, nil
}

// Name implements Named
func (b *KeyringBackend) Name() string {
	return BackendKeyring
}

// Get implements Backend
func (b *KeyringBackend) Get(key string) (string, bool, error) {
	value, err := keyring.Get(b.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keyring get failed: %w", err)
	}
	return value, true, nil
}

// Set implements Backend
func (b *KeyringBackend) Set(key, value string) error {
	if err := keyring.Set(b.service, key, value); err != nil {
		return fmt.Errorf("keyring set failed: %w", err)
	}
	return nil
}

// Delete implements Backend
func (b *KeyringBackend) Delete(key string) (bool, error) {
	err := keyring.Delete(b.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("keyring delete failed: %w", err)
	}
	return true, nil
}

// Has implements Backend
func (b *KeyringBackend) Has(key string) (bool, error) {
	_, ok, err := b.Get(key)
	return ok, err
}
