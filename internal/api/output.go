package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how commands render their results on stdout.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// DefaultOutput is used until SetOutputFormat is called.
const DefaultOutput = OutputFormatYAML

var current = DefaultOutput

// ParseOutputFormat accepts "yaml", "yml" or "json", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return OutputFormatYAML, nil
	case "json":
		return OutputFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
	}
}

// SetOutputFormat sets the format used by Output. It is called once from the
// root command's --output flag.
func SetOutputFormat(format OutputFormat) {
	current = format
}

// GetOutputFormat returns the format used by Output.
func GetOutputFormat() OutputFormat {
	return current
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, current, data)
}

// OutputTo writes data to w in the given format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
