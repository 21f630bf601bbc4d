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
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	errNotFound    = errors.New("key not found")
	errStoreFailed = errors.New("failed to store value")
)

func newGetCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Long: `Print the value stored under a key. When the key is absent the
--default value is printed instead; without --default the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			store, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return err
			}
			defer opts.closeStorage(store)

			value, err := store.GetValue(key)
			if err != nil {
				return err
			}
			if value == nil {
				if !cmd.Flags().Changed("default") {
					return fmt.Errorf("%w: %s", errNotFound, key)
				}
				def, _ := cmd.Flags().GetString("default")
				value = &def
			}

			return NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintValue(key, *value)
		},
	}
	cmd.Flags().String("default", "", "value printed when the key is absent")
	return cmd
}

func newSetCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a value under a key",
		Long: `Store a value under a key, replacing any previous value. When the
value argument is omitted it is read from standard input with one
trailing newline removed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read value: %w", err)
				}
				value = strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
			}

			store, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return err
			}
			defer opts.closeStorage(store)

			ok, err := store.Set(key, value)
			if err != nil {
				return err
			}
			if !ok {
				return errStoreFailed
			}

			printVerbose(cmd, opts, "Stored %d bytes", len(value))
			return NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintResult("stored", key, true)
		},
	}
	return cmd
}

func newDeleteCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Long:  `Remove a key. Prints true when a value was removed and false otherwise.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			store, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return err
			}
			defer opts.closeStorage(store)

			deleted, err := store.Delete(key)
			if err != nil {
				return err
			}
			return NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintResult("deleted", key, deleted)
		},
	}
}

func newHasCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "has <key>",
		Short: "Report whether a key is present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			store, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return err
			}
			defer opts.closeStorage(store)

			present, err := store.Has(key)
			if err != nil {
				return err
			}
			return NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintResult("present", key, present)
		},
	}
}

func newListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Long: `List the keys held by the configured store in sorted order. Only the
file store can enumerate its keys; the keystore layout stores hashed
names and the OS keyring offers no enumeration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStorage(cmd, opts.cfg)
			if err != nil {
				return err
			}
			defer opts.closeStorage(store)

			keys, err := store.Keys()
			if err != nil {
				return err
			}
			return NewPrinter(opts.OutputFormat, cmd.OutOrStdout()).PrintKeys(keys)
		},
	}
}
