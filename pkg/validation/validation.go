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

// Package validation provides the input checks shared by every storage
// backend. The facade applies them before any backend work so a backend
// cannot skip them.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidKey is returned for empty or whitespace-only storage keys
	ErrInvalidKey = errors.New("validation: invalid key")

	// ErrInvalidValue is returned when no value is supplied to a set
	ErrInvalidValue = errors.New("validation: invalid value")

	// ErrInvalidAlias is returned for aliases that cannot name an artifact
	ErrInvalidAlias = errors.New("validation: invalid alias")

	// aliasPattern matches safe artifact aliases
	aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
)

// ValidateKey validates a storage key. Keys must be valid UTF-8 and
// contain at least one non-whitespace character.
func ValidateKey(key string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidKey)
	}
	if strings.TrimFunc(key, unicode.IsSpace) == "" {
		return fmt.Errorf("%w: key cannot be empty or whitespace", ErrInvalidKey)
	}
	return nil
}

// ValidateValue validates a value passed to set. Absence is modeled by
// deleting the key, so a nil value is rejected; the empty string is valid.
// Values are stored as UTF-8 text and must be valid UTF-8.
func ValidateValue(value *string) error {
	if value == nil {
		return fmt.Errorf("%w: value cannot be nil", ErrInvalidValue)
	}
	if !utf8.ValidString(*value) {
		return fmt.Errorf("%w: value is not valid UTF-8", ErrInvalidValue)
	}
	return nil
}

// ValidateAlias validates a store alias, which names the artifact and the
// keys protecting it. Prevents path traversal by:
// - Rejecting empty strings and null bytes
// - Rejecting absolute paths and parent directory references
// - Allowing only safe characters
// - Enforcing length limits
func ValidateAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("%w: alias cannot be empty", ErrInvalidAlias)
	}

	if strings.Contains(alias, "\x00") {
		return fmt.Errorf("%w: alias contains null byte", ErrInvalidAlias)
	}

	// Check length before the pattern (prevent ReDoS)
	if len(alias) > 255 {
		return fmt.Errorf("%w: alias too long (max 255 characters)", ErrInvalidAlias)
	}

	if filepath.IsAbs(alias) {
		return fmt.Errorf("%w: alias cannot be an absolute path", ErrInvalidAlias)
	}

	if clean := filepath.Clean(alias); clean == "." || clean == ".." {
		return fmt.Errorf("%w: alias contains path traversal attempt", ErrInvalidAlias)
	}

	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: alias contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)", ErrInvalidAlias)
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 256 {
		s = s[:256] + "...[truncated]"
	}

	return s
}
