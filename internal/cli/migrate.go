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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-securestorage/internal/config"
	"github.com/jeremyhahn/go-securestorage/pkg/migrate"
)

// MigrationResult is the outcome of moving one key
type MigrationResult struct {
	Key      string `json:"key"`
	Migrated bool   `json:"migrated"`
	Error    string `json:"error,omitempty"`
}

func newMigrateCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <key>... --to-type <type>",
		Short: "Move keys to another store",
		Long: `Move keys from the configured store to another store. Each value is
written to the destination before it is removed from the source. Keys
absent from the source are reported as not migrated.

The destination shares the passphrase of the source unless it is a
keyring.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dstCfg, err := destinationConfig(cmd, opts.cfg)
			if err != nil {
				return err
			}

			src, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return fmt.Errorf("failed to open source storage: %w", err)
			}
			defer opts.closeStorage(src)

			dst, err := opts.openStorage(cmd, dstCfg)
			if err != nil {
				return fmt.Errorf("failed to open destination storage: %w", err)
			}
			defer opts.closeStorage(dst)

			printVerbose(cmd, opts, "Migrating %d keys from %s to %s", len(args), src.Backend(), dst.Backend())

			results := make([]MigrationResult, 0, len(args))
			failed := 0
			for _, key := range args {
				ok, err := migrate.Key(src, dst, key,
					migrate.WithLogger(opts.logger),
					migrate.WithRecorder(opts.recorder))
				r := MigrationResult{Key: key, Migrated: ok}
				if err != nil {
					r.Error = err.Error()
				}
				if !ok {
					failed++
				}
				results = append(results, r)
			}

			if err := NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintMigration(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d keys not migrated", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().String("to-type", "", "destination storage type (keystore, file, keyring)")
	cmd.Flags().String("to-dir", "", "destination directory (defaults to the source directory)")
	cmd.Flags().String("to-alias", "", "destination alias (defaults to the source alias)")
	cmd.Flags().String("to-keyring-service", "", "destination keyring service")
	_ = cmd.MarkFlagRequired("to-type")

	return cmd
}

// destinationConfig derives the destination from the source configuration
// and the --to-* flags
func destinationConfig(cmd *cobra.Command, src *config.Config) (*config.Config, error) {
	dst := *src

	dst.Storage.Type, _ = cmd.Flags().GetString("to-type")
	if dir, _ := cmd.Flags().GetString("to-dir"); dir != "" {
		dst.Storage.Dir = dir
	}
	if alias, _ := cmd.Flags().GetString("to-alias"); alias != "" {
		dst.Storage.Alias = alias
	}
	if service, _ := cmd.Flags().GetString("to-keyring-service"); service != "" {
		dst.Keyring.Service = service
	}

	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}
	if sameStore(src, &dst) {
		return nil, fmt.Errorf("invalid destination: source and destination are the same store")
	}
	return &dst, nil
}

func sameStore(a, b *config.Config) bool {
	if a.Storage.Type != b.Storage.Type {
		return false
	}
	if a.NeedsPassphrase() {
		return a.Storage.Dir == b.Storage.Dir && a.Storage.Alias == b.Storage.Alias
	}
	return a.Keyring.Service == b.Keyring.Service
}
