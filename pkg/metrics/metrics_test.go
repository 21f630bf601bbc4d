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

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOperation(OpSet, "file", StatusSuccess, 2*time.Millisecond)
	m.RecordOperation(OpSet, "file", StatusSuccess, 3*time.Millisecond)
	m.RecordOperation(OpSet, "file", StatusError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpSet, "file", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpSet, "file", StatusError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestMetrics_FallbackAndEntries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCipherFallback("encrypt")
	m.SetEntries("keystore", 3)
	m.SetEntries("keystore", 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CipherFallbackTotal.WithLabelValues("encrypt")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Entries.WithLabelValues("keystore")))

	expected := `
# HELP securestorage_entries Number of entries held by a backend
# TYPE securestorage_entries gauge
securestorage_entries{backend="keystore"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "securestorage_entries"))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.RecordCipherFallback("decrypt")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CipherFallbackTotal.WithLabelValues("decrypt")))
}

func TestNoOp(t *testing.T) {
	r := OrNoOp(nil)
	assert.NotPanics(t, func() {
		r.RecordOperation(OpGet, "file", StatusSuccess, time.Millisecond)
		r.RecordCipherFallback("encrypt")
		r.SetEntries("file", 1)
	})

	m := New(nil)
	assert.Same(t, m, OrNoOp(m))
}
