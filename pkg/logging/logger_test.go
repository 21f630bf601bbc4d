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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Level: LevelDebug, Format: "json", Output: &buf})

	log.With(String("backend", "file")).Warn("persist failed",
		Key("TestKey"), Error(errors.New("disk full")), Int("attempt", 1), Bool("rollback", true))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "persist failed", record["msg"])
	assert.Equal(t, "file", record["backend"])
	assert.Equal(t, "disk full", record["error"])
	assert.Equal(t, KeyFingerprint("TestKey"), record["key"])
	assert.Equal(t, true, record["rollback"])
	assert.NotContains(t, buf.String(), "TestKey")
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Level: LevelWarn, Output: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestKeyFingerprint(t *testing.T) {
	a := KeyFingerprint("TestKey")
	assert.Len(t, a, 12)
	assert.Equal(t, a, KeyFingerprint("TestKey"))
	assert.NotEqual(t, a, KeyFingerprint("TestKey2"))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))

	l := NewSlogAdapter(nil)
	assert.Same(t, l, OrNoOp(l))

	// no-op logger never panics
	n := NewNoOpLogger().With(String("a", "b"))
	n.Debug("x")
	n.Info("x")
	n.Warn("x")
	n.Error("x")
}
