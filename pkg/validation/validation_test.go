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

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "TestKey", false},
		{"with spaces inside", "my key", false},
		{"leading space", " key", false},
		{"unicode", "clé", false},
		{"path-like", "a/b/../c", false},

		{"empty string", "", true},
		{"spaces only", "   ", true},
		{"tabs and newlines", "\t\n\r ", true},
		{"unicode space only", "\u2003\u00a0", true},
		{"invalid utf-8", "\xff", true},
		{"truncated utf-8", "ab\xe2\x9c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	empty := ""
	value := "x"

	assert.ErrorIs(t, ValidateValue(nil), ErrInvalidValue)
	assert.NoError(t, ValidateValue(&empty))
	assert.NoError(t, ValidateValue(&value))

	multibyte := "héllo ✓"
	assert.NoError(t, ValidateValue(&multibyte))

	invalid := "\xff\xfe"
	assert.ErrorIs(t, ValidateValue(&invalid), ErrInvalidValue)
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		wantErr bool
	}{
		{"default", "SecureStorage", false},
		{"with dot", "app.production", false},
		{"with dash and underscore", "my-app_v1", false},
		{"leading double dot", "..backup", false},
		{"trailing double dot", "backup..", false},

		{"empty", "", true},
		{"null byte", "a\x00b", true},
		{"parent dir", "..", true},
		{"dot", ".", true},
		{"traversal", "../secrets", true},
		{"absolute", "/etc/passwd", true},
		{"separator", "a/b", true},
		{"space", "my alias", true},
		{"too long", strings.Repeat("a", 256), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlias(tt.alias)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAlias)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "ab", SanitizeForLog("a\nb"))
	assert.Equal(t, "tab", SanitizeForLog("t\ta\x00b"))

	long := SanitizeForLog(strings.Repeat("x", 300))
	assert.True(t, strings.HasSuffix(long, "...[truncated]"))
	assert.Len(t, long, 256+len("...[truncated]"))
}
