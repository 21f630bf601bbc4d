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
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// PrintValue prints a stored value. In text mode only the value itself is
// written so it can be captured by scripts.
func (p *Printer) PrintValue(key, value string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"key":   key,
			"value": value,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintResult prints the boolean outcome of an operation on key
func (p *Printer) PrintResult(field, key string, result bool) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"key": key,
			field: result,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, result)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeys prints the stored keys, one per line in text mode
func (p *Printer) PrintKeys(keys []string) error {
	switch p.format {
	case OutputFormatJSON:
		if keys == nil {
			keys = []string{}
		}
		return p.printJSON(map[string]interface{}{
			"keys":  keys,
			"count": len(keys),
		})
	case OutputFormatText:
		for _, k := range keys {
			fmt.Fprintln(p.writer, k)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintMigration prints the per-key outcome of a migration
func (p *Printer) PrintMigration(results []MigrationResult) error {
	switch p.format {
	case OutputFormatJSON:
		migrated := 0
		for _, r := range results {
			if r.Migrated {
				migrated++
			}
		}
		return p.printJSON(map[string]interface{}{
			"migrated": migrated,
			"total":    len(results),
			"results":  results,
		})
	case OutputFormatText:
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(p.writer, "  ✗ %s: %s\n", r.Key, r.Error)
			case r.Migrated:
				fmt.Fprintf(p.writer, "  ✓ %s\n", r.Key)
			default:
				fmt.Fprintf(p.writer, "  - %s: not migrated\n", r.Key)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(v interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
