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

// Package codec converts between the string values callers store and the
// byte sequences the cipher and storage layers operate on.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrInvalidUTF8 is returned when decrypted bytes are not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("codec: invalid UTF-8")

	// ErrInvalidMapping is returned when a serialized mapping cannot be decoded.
	ErrInvalidMapping = errors.New("codec: invalid mapping")
)

// EncodeText returns the UTF-8 bytes of s.
func EncodeText(s string) []byte {
	return []byte(s)
}

// DecodeText converts UTF-8 bytes back into a string.
func DecodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// EncodeBase64 returns the standard base64 text form of b.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 parses standard base64 text.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: invalid base64: %w", err)
	}
	return b, nil
}

// MarshalMapping serializes a string->string mapping as a JSON object.
// encoding/json sorts object keys, so equal mappings produce equal bytes.
func MarshalMapping(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	return data, nil
}

// UnmarshalMapping decodes a JSON object produced by MarshalMapping.
// Empty input yields an empty mapping.
func UnmarshalMapping(data []byte) (map[string]string, error) {
	m := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	if m == nil {
		// JSON "null"
		return nil, fmt.Errorf("%w: not an object", ErrInvalidMapping)
	}
	return m, nil
}
