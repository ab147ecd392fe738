// Package cli provides output helpers for the levelwise command-line tool.
//
// Values are written as JSON, YAML or a terminal table:
//
//	cli.Output(os.Stdout, cli.ResultsTable(res), cli.FormatTable)
//	cli.Output(os.Stdout, res, cli.FormatYAML)
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Format is an output format.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Tabular is implemented by values that can render as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// ParseFormat validates a format name. Empty means YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Output writes v to w in the given format. FormatTable requires a
// Tabular value.
func Output(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML, "":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable:
		t, ok := v.(Tabular)
		if !ok {
			return fmt.Errorf("%T cannot be printed as a table", v)
		}
		_, err := fmt.Fprintln(w, RenderTable(t, DefaultTheme))
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// OutputFile writes v to path, or to stdout when path is empty.
func OutputFile(path string, v any, format Format) error {
	if path == "" {
		return Output(os.Stdout, v, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Output(f, v, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
