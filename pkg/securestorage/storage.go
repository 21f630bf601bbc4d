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

// Package securestorage is the public key/value surface for storing small
// secrets. A Storage validates every call and delegates to a Backend chosen
// once at construction: a passphrase-protected file, a per-value encrypted
// key store, or the platform keyring.
//
// Error policy: invalid keys and values are returned as ErrInvalidArgument.
// Backend failures on Set and Delete are logged and reported as false with
// a nil error. Backend failures on Get and Has are returned alongside the
// default value so a decryption failure is never mistaken for absence.
package securestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/metrics"
	"github.com/jeremyhahn/go-securestorage/pkg/validation"
)

// Storage is the secure storage facade
//
// Thread-safe: Yes. Backends provide per-operation atomicity; Storage
// guards its own lifecycle.
type Storage struct {
	backend  Backend
	name     string
	id       string
	logger   logging.Logger
	recorder metrics.Recorder
	closers  []func() error

	mu     sync.RWMutex
	closed bool
}

// Option configures a Storage
type Option func(*Storage)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(s *Storage) {
		s.logger = l
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Storage) {
		s.recorder = r
	}
}

// WithCloser registers fn to run on Close, after the backend is closed
func WithCloser(fn func() error) Option {
	return func(s *Storage) {
		s.closers = append(s.closers, fn)
	}
}

// New wraps backend in the validating facade
func New(backend Backend, opts ...Option) (*Storage, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrConfiguration)
	}

	s := &Storage{
		backend: backend,
		name:    backendName(backend),
		id:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = metrics.OrNoOp(s.recorder)
	s.logger = logging.OrNoOp(s.logger).With(
		logging.String("store_id", s.id),
		logging.String("backend", s.name))

	s.reportEntries()
	return s, nil
}

// ID returns the instance identifier used in logs
func (s *Storage) ID() string {
	return s.id
}

// Backend returns the backend name
func (s *Storage) Backend() string {
	return s.name
}

// Get returns the value stored under key, or defaultValue (or "") when
// the key is absent.
func (s *Storage) Get(key string, defaultValue ...string) (string, error) {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}

	v, err := s.GetValue(key)
	if err != nil || v == nil {
		return def, err
	}
	return *v, nil
}

// GetValue returns the value stored under key, or nil when absent
func (s *Storage) GetValue(key string) (*string, error) {
	start := time.Now()
	if err := validation.ValidateKey(key); err != nil {
		s.observe(metrics.OpGet, metrics.StatusInvalid, start)
		return nil, classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	value, ok, err := s.backend.Get(key)
	if err != nil {
		err = classify(err)
		s.logger.Error("get failed", logging.Key(key), logging.Error(err))
		s.observe(metrics.OpGet, metrics.StatusError, start)
		return nil, err
	}

	s.observe(metrics.OpGet, metrics.StatusSuccess, start)
	if !ok {
		return nil, nil
	}
	return &value, nil
}

// Set stores value under key, fully replacing any previous value. It
// returns false when the backend fails.
func (s *Storage) Set(key, value string) (bool, error) {
	return s.SetPtr(key, &value)
}

// SetPtr is Set for callers holding an optional value. A nil value is
// rejected with ErrInvalidArgument; use Delete to remove a key.
func (s *Storage) SetPtr(key string, value *string) (bool, error) {
	start := time.Now()
	if err := validation.ValidateKey(key); err != nil {
		s.observe(metrics.OpSet, metrics.StatusInvalid, start)
		return false, classify(err)
	}
	if err := validation.ValidateValue(value); err != nil {
		s.observe(metrics.OpSet, metrics.StatusInvalid, start)
		return false, classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	if err := s.backend.Set(key, *value); err != nil {
		s.logger.Error("set failed", logging.Key(key), logging.Error(classify(err)))
		s.observe(metrics.OpSet, metrics.StatusError, start)
		return false, nil
	}

	s.observe(metrics.OpSet, metrics.StatusSuccess, start)
	s.reportEntries()
	return true, nil
}

// Delete removes key. It returns true only when a key was removed.
func (s *Storage) Delete(key string) (bool, error) {
	start := time.Now()
	if err := validation.ValidateKey(key); err != nil {
		s.observe(metrics.OpDelete, metrics.StatusInvalid, start)
		return false, classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	deleted, err := s.backend.Delete(key)
	if err != nil {
		s.logger.Error("delete failed", logging.Key(key), logging.Error(classify(err)))
		s.observe(metrics.OpDelete, metrics.StatusError, start)
		return false, nil
	}

	s.observe(metrics.OpDelete, metrics.StatusSuccess, start)
	if deleted {
		s.reportEntries()
	}
	return deleted, nil
}

// Has reports whether key is present
func (s *Storage) Has(key string) (bool, error) {
	start := time.Now()
	if err := validation.ValidateKey(key); err != nil {
		s.observe(metrics.OpHas, metrics.StatusInvalid, start)
		return false, classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	ok, err := s.backend.Has(key)
	if err != nil {
		err = classify(err)
		s.logger.Error("has failed", logging.Key(key), logging.Error(err))
		s.observe(metrics.OpHas, metrics.StatusError, start)
		return false, err
	}

	s.observe(metrics.OpHas, metrics.StatusSuccess, start)
	return ok, nil
}

// Keys returns the stored keys in sorted order. Backends that cannot
// enumerate, such as those that store hashed names, return ErrUnsupported.
func (s *Storage) Keys() ([]string, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	l, ok := s.backend.(Lister)
	if !ok {
		s.observe(metrics.OpList, metrics.StatusInvalid, start)
		return nil, fmt.Errorf("%w: %s backend cannot list keys", ErrUnsupported, s.name)
	}

	keys, err := l.Keys()
	if err != nil {
		err = classify(err)
		s.logger.Error("list failed", logging.Error(err))
		s.observe(metrics.OpList, metrics.StatusError, start)
		return nil, err
	}

	s.observe(metrics.OpList, metrics.StatusSuccess, start)
	return keys, nil
}

// Close releases the backend and any resources registered at construction.
// It is idempotent.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if c, ok := s.backend.(Closer); ok {
		firstErr = c.Close()
	}
	for _, fn := range s.closers {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Storage) observe(op, status string, start time.Time) {
	s.recorder.RecordOperation(op, s.name, status, time.Since(start))
}

func (s *Storage) reportEntries() {
	c, ok := s.backend.(Counter)
	if !ok {
		return
	}
	n, err := c.Len()
	if err != nil {
		s.logger.Debug("failed to count entries", logging.Error(err))
		return
	}
	s.recorder.SetEntries(s.name, n)
}
