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

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/jeremyhahn/go-securestorage/internal/config"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/metrics"
	"github.com/jeremyhahn/go-securestorage/pkg/securestorage"
)

// configName is the file searched for when --config is not given
const configName = ".securestorage"

var errPassphraseRequired = errors.New(
	"passphrase required: set " + config.EnvPassphrase + ", use --passphrase-file, or run interactively")

// Terminal access, replaceable in tests
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// Options holds the state shared by all commands of one invocation
type Options struct {
	ConfigFile   string
	OutputFormat string
	Verbose      bool

	viper      *viper.Viper
	cfg        *config.Config
	logger     logging.Logger
	registry   *prometheus.Registry
	recorder   metrics.Recorder
	passphrase []byte
}

// NewOptions returns Options with an isolated viper instance
func NewOptions() *Options {
	return &Options{
		OutputFormat: "text",
		viper:        viper.New(),
		logger:       logging.NewNoOpLogger(),
		recorder:     metrics.NoOp(),
	}
}

// init loads the configuration and builds the logger and metrics recorder
func (o *Options) init(cmd *cobra.Command) error {
	path := o.ConfigFile
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return err
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := o.applyFlags(cfg); err != nil {
		return err
	}
	o.cfg = cfg

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	o.logger = logging.NewSlogAdapter(&logging.SlogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: errWriter(cmd),
	})

	if cfg.Metrics.Enabled {
		o.registry = prometheus.NewRegistry()
		o.recorder = metrics.New(o.registry)
	}

	if path != "" {
		printVerbose(cmd, o, "Using config file: %s", path)
	}
	return nil
}

// applyFlags overrides file and environment settings with flags that were
// set on the command line
func (o *Options) applyFlags(cfg *config.Config) error {
	v := o.viper
	if v.IsSet("storage.type") {
		cfg.Storage.Type = v.GetString("storage.type")
	}
	if v.IsSet("storage.dir") {
		cfg.Storage.Dir = v.GetString("storage.dir")
	}
	if v.IsSet("storage.alias") {
		cfg.Storage.Alias = v.GetString("storage.alias")
	}
	if v.IsSet("storage.direct_key_support") {
		cfg.Storage.DirectKeySupport = v.GetBool("storage.direct_key_support")
	}
	if v.IsSet("storage.passphrase_file") {
		cfg.Storage.PassphraseFile = v.GetString("storage.passphrase_file")
		cfg.Storage.Passphrase = ""
	}
	if v.IsSet("keyring.service") {
		cfg.Keyring.Service = v.GetString("keyring.service")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// findConfigFile looks for the default config file in the home and current
// directories. A missing file is not an error.
func findConfigFile() (string, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// openStorage opens the store described by cfg
func (o *Options) openStorage(cmd *cobra.Command, cfg *config.Config) (*securestorage.Storage, error) {
	var passphrase []byte
	if cfg.NeedsPassphrase() {
		p, err := o.readPassphrase(cmd, cfg)
		if err != nil {
			return nil, err
		}
		passphrase = p
	}

	sc, err := cfg.StorageConfig(passphrase, o.logger, o.recorder)
	if err != nil {
		return nil, err
	}

	printVerbose(cmd, o, "Opening %s storage (alias %s)", sc.Type, sc.Alias)
	return securestorage.Open(sc)
}

// readPassphrase returns the configured passphrase, prompting on the
// terminal when none is configured. The result is reused for later opens
// in the same invocation.
func (o *Options) readPassphrase(cmd *cobra.Command, cfg *config.Config) ([]byte, error) {
	if len(o.passphrase) > 0 {
		return o.passphrase, nil
	}

	p, err := cfg.Passphrase()
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		fd := int(os.Stdin.Fd())
		if !isTerminal(fd) {
			return nil, errPassphraseRequired
		}
		fmt.Fprint(errWriter(cmd), "Passphrase: ")
		p, err = readPassword(fd)
		fmt.Fprintln(errWriter(cmd))
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		if len(p) == 0 {
			return nil, errPassphraseRequired
		}
	}

	o.passphrase = p
	return p, nil
}

// flushMetrics writes collected metrics to the configured textfile
func (o *Options) flushMetrics() error {
	if o.registry == nil || o.cfg == nil || o.cfg.Metrics.Textfile == "" {
		return nil
	}
	path, err := config.ExpandHome(o.cfg.Metrics.Textfile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, o.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// closeStorage closes s, logging rather than returning the error
func (o *Options) closeStorage(s *securestorage.Storage) {
	if err := s.Close(); err != nil {
		o.logger.Warn("failed to close storage", logging.Error(err))
	}
}
