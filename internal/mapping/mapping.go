// Package mapping loads run id to recipient address mappings from CSV files,
// JSON objects, or an inline literal such as {'SCD0001': 'driver@example.com'}.
package mapping

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

// ErrMappingFormat is returned when a mapping source is missing required
// fields or cannot be parsed.
var ErrMappingFormat = errors.New("invalid mapping format")

// Load reads a mapping from path. The format is picked by extension:
// .csv and .json are parsed as such, anything else as an inline literal.
func Load(path string) (runsheet.Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f)
	case ".json":
		return LoadJSON(f)
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping: %w", err)
		}
		return ParseInline(string(data))
	}
}
