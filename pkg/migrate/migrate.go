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

// Package migrate moves entries between two storages, e.g. from a
// passphrase-protected file into the platform keyring.
package migrate

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/metrics"
)

// ErrNilStore is returned when the source or destination is missing
var ErrNilStore = errors.New("migrate: source and destination are required")

// Store is the subset of securestorage.Storage used for migration
type Store interface {
	GetValue(key string) (*string, error)
	Set(key, value string) (bool, error)
	Delete(key string) (bool, error)
	Has(key string) (bool, error)
}

type options struct {
	logger   logging.Logger
	recorder metrics.Recorder
}

// Option configures a migration
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNoOp(o.logger)
	o.recorder = metrics.OrNoOp(o.recorder)
	return o
}

// Key moves key from src to dst. It returns false when the key is absent
// from src or the write to dst fails. The source entry is removed only
// after dst accepted the value; if that removal fails the value exists in
// both stores and Key still reports true.
func Key(src, dst Store, key string, opts ...Option) (bool, error) {
	o := newOptions(opts)
	return moveKey(src, dst, key, o)
}

// All moves every key and reports whether all of them were migrated.
// Failures are logged and do not stop the remaining keys.
func All(src, dst Store, keys []string, opts ...Option) bool {
	o := newOptions(opts)

	all := true
	for _, key := range keys {
		ok, err := moveKey(src, dst, key, o)
		if err != nil {
			o.logger.Warn("migration failed", logging.Key(key), logging.Error(err))
		}
		if !ok {
			all = false
		}
	}
	return all
}

func moveKey(src, dst Store, key string, o *options) (moved bool, err error) {
	if src == nil || dst == nil {
		return false, ErrNilStore
	}

	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil || !moved {
			status = metrics.StatusError
		}
		o.recorder.RecordOperation(metrics.OpMigrate, "migrate", status, time.Since(start))
	}()

	has, err := src.Has(key)
	if err != nil {
		return false, fmt.Errorf("migrate: failed to check source: %w", err)
	}
	if !has {
		return false, nil
	}

	value, err := src.GetValue(key)
	if err != nil {
		return false, fmt.Errorf("migrate: failed to read source: %w", err)
	}
	if value == nil {
		// removed between Has and GetValue
		return false, nil
	}

	ok, err := dst.Set(key, *value)
	if err != nil {
		return false, fmt.Errorf("migrate: failed to write destination: %w", err)
	}
	if !ok {
		return false, nil
	}

	if deleted, err := src.Delete(key); err != nil || !deleted {
		o.logger.Warn("migrated key left in source", logging.Key(key), logging.Error(err))
	}

	o.logger.Debug("migrated key", logging.Key(key))
	return true, nil
}
