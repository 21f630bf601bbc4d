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

// Package storage provides an abstraction layer for opaque blob persistence.
// Backends store byte slices under string names and never interpret their
// contents: encryption happens above this layer.
package storage

import (
	"io/fs"
)

// Backend defines the interface for blob storage backends.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the blob stored under the given name.
	// Returns ErrNotFound if the name does not exist.
	Get(name string) ([]byte, error)

	// Put stores the blob under the given name, replacing any previous
	// contents. Implementations must never leave a partially written blob
	// visible to a subsequent Get.
	Put(name string, value []byte, opts *Options) error

	// Delete removes the blob stored under the given name.
	// Returns ErrNotFound if the name does not exist.
	Delete(name string) error

	// List returns all names with the given prefix.
	// If prefix is empty, all names are returned.
	List(prefix string) ([]string, error)

	// Exists checks if a blob exists under the given name.
	Exists(name string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Options contains optional parameters for storage operations.
type Options struct {
	// Permissions sets the file permissions for file-based storage
	Permissions fs.FileMode
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600, // Read/write for owner only
	}
}
