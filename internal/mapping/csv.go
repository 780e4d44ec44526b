package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

const (
	// RunColumn is the CSV header holding run ids.
	RunColumn = "Run"
	// EmailColumn is the CSV header holding recipient addresses.
	EmailColumn = "Email"
)

// LoadCSV reads a mapping from CSV with Run and Email columns. Header
// matching ignores case and surrounding space. Rows with an empty run or
// address are skipped; a repeated run id keeps its last address.
func LoadCSV(r io.Reader) (runsheet.Mapping, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV", ErrMappingFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFormat, err)
	}

	runCol, emailCol := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, RunColumn) && runCol < 0:
			runCol = i
		case strings.EqualFold(h, EmailColumn) && emailCol < 0:
			emailCol = i
		}
	}
	if runCol < 0 || emailCol < 0 {
		return nil, fmt.Errorf("%w: CSV must have columns %q and %q, got %q",
			ErrMappingFormat, RunColumn, EmailColumn, header)
	}

	m := make(runsheet.Mapping)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMappingFormat, err)
		}
		if runCol >= len(rec) || emailCol >= len(rec) {
			continue
		}
		run := strings.TrimSpace(rec[runCol])
		email := strings.TrimSpace(rec[emailCol])
		if run == "" || email == "" {
			continue
		}
		m[run] = email
	}
	return m, nil
}
