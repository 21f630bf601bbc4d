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

// Package metrics provides Prometheus instrumentation for secure storage
// operations. Collectors are registered on a caller-supplied registry so
// independent storage instances and tests never share global state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all secure storage metrics
	Namespace = "securestorage"

	// Label names
	LabelOperation = "operation"
	LabelBackend   = "backend"
	LabelStatus    = "status"
	LabelDirection = "direction"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInvalid = "invalid"

	// Operation names
	OpGet     = "get"
	OpSet     = "set"
	OpDelete  = "delete"
	OpHas     = "has"
	OpList    = "list"
	OpMigrate = "migrate"
)

// Recorder receives storage instrumentation events
type Recorder interface {
	// RecordOperation counts a facade operation and observes its duration
	RecordOperation(operation, backend, status string, duration time.Duration)

	// RecordCipherFallback counts a use of the unauthenticated legacy cipher mode
	RecordCipherFallback(direction string)

	// SetEntries reports the number of entries held by a backend
	SetEntries(backend string, count int)
}

// Metrics is a Recorder backed by Prometheus collectors
type Metrics struct {
	// OperationsTotal tracks operations by type, backend, and status
	OperationsTotal *prometheus.CounterVec

	// OperationDuration tracks operation latency in seconds. Buckets cover
	// local disk and local cryptographic latencies.
	OperationDuration *prometheus.HistogramVec

	// CipherFallbackTotal tracks legacy cipher mode usage by direction
	CipherFallbackTotal *prometheus.CounterVec

	// Entries tracks the number of stored entries per backend
	Entries *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of secure storage operations by type, backend, and status",
			},
			[]string{LabelOperation, LabelBackend, LabelStatus},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of secure storage operations in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{LabelOperation, LabelBackend},
		),
		CipherFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cipher_fallback_total",
				Help:      "Total number of operations that used the unauthenticated legacy cipher mode",
			},
			[]string{LabelDirection},
		),
		Entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "entries",
				Help:      "Number of entries held by a backend",
			},
			[]string{LabelBackend},
		),
	}
}

// RecordOperation implements Recorder
func (m *Metrics) RecordOperation(operation, backend, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.OperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordCipherFallback implements Recorder
func (m *Metrics) RecordCipherFallback(direction string) {
	m.CipherFallbackTotal.WithLabelValues(direction).Inc()
}

// SetEntries implements Recorder
func (m *Metrics) SetEntries(backend string, count int) {
	m.Entries.WithLabelValues(backend).Set(float64(count))
}

type noop struct{}

func (noop) RecordOperation(string, string, string, time.Duration) {}
func (noop) RecordCipherFallback(string)                           {}
func (noop) SetEntries(string, int)                                {}

// NoOp returns a Recorder that discards everything
func NoOp() Recorder {
	return noop{}
}

// OrNoOp returns r, or a no-op Recorder when r is nil
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NoOp()
	}
	return r
}
