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

// Package file provides a file-based implementation of the storage.Backend interface.
// Every blob is one file under the root directory. Writes go to a temporary
// file in the same directory which is synced and renamed over the target, so
// a crash never leaves a torn blob behind.
package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// Default file permissions (owner rw only)
	defaultPerms = 0600

	// Prefix of in-flight temporary files; never reported by List
	tempPrefix = ".tmp-"
)

// FileStorage is a file-based implementation of storage.Backend.
// It stores blobs as files in a directory hierarchy and is thread-safe.
type FileStorage struct {
	mu      sync.RWMutex
	rootDir string
}

// New creates a new FileStorage instance with the specified root directory.
// The root directory is created with 0700 permissions if it doesn't exist.
func New(rootDir string) (storage.Backend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to resolve root directory: %w", err)
	}

	if err := os.MkdirAll(absRoot, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileStorage{
		rootDir: absRoot,
	}, nil
}

// Get retrieves the blob stored under name.
// Returns storage.ErrNotFound if the name does not exist.
func (f *FileStorage) Get(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.nameToPath(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304 - path is validated by nameToPath
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read %q: %w", name, err)
	}

	return data, nil
}

// Put atomically replaces the blob stored under name.
func (f *FileStorage) Put(name string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath, err := f.nameToPath(name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for %q: %w", name, err)
	}

	perms := fs.FileMode(defaultPerms)
	if opts != nil && opts.Permissions != 0 {
		perms = opts.Permissions
	}

	if err := writeAtomic(filePath, value, perms); err != nil {
		return fmt.Errorf("file storage: failed to write %q: %w", name, err)
	}

	return nil
}

// Delete removes the blob stored under name.
// Returns storage.ErrNotFound if the name does not exist.
func (f *FileStorage) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath, err := f.nameToPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete %q: %w", name, err)
	}

	return nil
}

// List returns all names with the given prefix in sorted order.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0)

	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if prefix == "" || strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Exists checks if a blob exists under name.
func (f *FileStorage) Exists(name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.nameToPath(name)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check %q: %w", name, err)
	}

	return true, nil
}

// Close releases any resources held by the backend.
// For file storage, this is a no-op but provided for interface compliance.
func (f *FileStorage) Close() error {
	return nil
}

// nameToPath converts a blob name to a file path under the root directory.
func (f *FileStorage) nameToPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidName, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(name)), nil
}

// validateName allows "/" separated names but blocks traversal out of the root.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("name contains null byte")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("name cannot be an absolute path")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return fmt.Errorf("name contains path traversal attempt")
		}
		if strings.HasPrefix(part, tempPrefix) {
			return fmt.Errorf("name uses reserved prefix %q", tempPrefix)
		}
	}
	return nil
}

// writeAtomic writes data to a temporary file in the target's directory,
// syncs it and renames it over path. The previous contents stay intact
// until the rename succeeds.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir) // #nosec G304 - directory of a validated path
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
