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

// Backend is the capability set a storage strategy implements. Backends
// receive keys and values that already passed validation. Absence is a
// normal (value, false) result, never an error.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) (bool, error)
	Has(key string) (bool, error)
}

// Named is implemented by backends that report a name for logs and metrics
type Named interface {
	Name() string
}

// Counter is implemented by backends that can report their entry count
type Counter interface {
	Len() (int, error)
}

// Lister is implemented by backends that can enumerate their keys
type Lister interface {
	Keys() ([]string, error)
}

// Closer is implemented by backends that hold resources
type Closer interface {
	Close() error
}

// Backend names
const (
	BackendProtectedFile = "file"
	BackendKeyStore      = "keystore"
	BackendKeyring       = "keyring"
)

func backendName(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return "custom"
}
