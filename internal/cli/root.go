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
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewRootCommand builds the securestore command tree. Each call returns an
// independent tree with its own flag and viper state.
func NewRootCommand() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "securestore",
		Short: "securestore - encrypted key/value secret storage",
		Long: `securestore reads and writes string secrets kept in an encrypted
local store.

Supported storage types:
  - keystore: values encrypted with a data key held in a local key store
  - file:     a single passphrase-protected encrypted file
  - keyring:  the platform keyring (Keychain, Secret Service, Credential Manager)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsInit(cmd) {
				return nil
			}
			return opts.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.flushMetrics()
		},
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "",
		"config file (default is $HOME/.securestorage.yaml)")
	flags.String("type", "", "storage type (keystore, file, keyring)")
	flags.String("dir", "", "directory holding the encrypted store")
	flags.String("alias", "", "name of the store and its data key")
	flags.Bool("direct-key-support", true,
		"use a symmetric data key directly instead of wrapping it with an RSA key pair")
	flags.String("keyring-service", "", "keyring service name (keyring type)")
	flags.String("passphrase-file", "", "file containing the storage passphrase")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	bindFlag(opts.viper, flags.Lookup("type"), "storage.type")
	bindFlag(opts.viper, flags.Lookup("dir"), "storage.dir")
	bindFlag(opts.viper, flags.Lookup("alias"), "storage.alias")
	bindFlag(opts.viper, flags.Lookup("direct-key-support"), "storage.direct_key_support")
	bindFlag(opts.viper, flags.Lookup("keyring-service"), "keyring.service")
	bindFlag(opts.viper, flags.Lookup("passphrase-file"), "storage.passphrase_file")
	bindFlag(opts.viper, flags.Lookup("log-level"), "logging.level")
	bindFlag(opts.viper, flags.Lookup("log-format"), "logging.format")

	// Add subcommands
	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newSetCmd(opts))
	rootCmd.AddCommand(newDeleteCmd(opts))
	rootCmd.AddCommand(newHasCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		handleError(cmd, err)
		return err
	}
	return nil
}

func bindFlag(v *viper.Viper, flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flag.Name, err))
	}
}

func skipsInit(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", "__complete":
		return true
	}
	return false
}

// handleError prints an error in the selected output format
func handleError(cmd *cobra.Command, err error) {
	format, _ := cmd.PersistentFlags().GetString("output")
	printer := NewPrinter(format, errWriter(cmd))
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, opts *Options, format string, args ...interface{}) {
	if opts.Verbose {
		fmt.Fprintf(errWriter(cmd), "[VERBOSE] "+format+"\n", args...)
	}
}

func errWriter(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}
