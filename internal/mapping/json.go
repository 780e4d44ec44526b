package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

const mappingSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {"type": "string"}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("mapping.json", strings.NewReader(mappingSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to load mapping schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("mapping.json")
	})
	return compiledSchema, schemaErr
}

// LoadJSON reads a mapping from a JSON object of run id to address. Keys and
// values are trimmed, then an empty key or value, or two keys that trim to
// the same run id, is rejected.
func LoadJSON(r io.Reader) (runsheet.Mapping, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFormat, err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFormat, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFormat, err)
	}
	m := make(runsheet.Mapping, len(raw))
	for key, val := range raw {
		run, email := strings.TrimSpace(key), strings.TrimSpace(val)
		switch {
		case run == "":
			return nil, fmt.Errorf("%w: empty run id", ErrMappingFormat)
		case email == "":
			return nil, fmt.Errorf("%w: empty address for %q", ErrMappingFormat, run)
		}
		if _, dup := m[run]; dup {
			return nil, fmt.Errorf("%w: run id %q given more than once", ErrMappingFormat, run)
		}
		m[run] = email
	}
	return m, nil
}
