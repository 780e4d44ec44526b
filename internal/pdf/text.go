package pdf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

// TextSource extracts per-page text from PDF files.
type TextSource struct {
	Logger *slog.Logger
}

// NewTextSource returns a tabula backed text source.
func NewTextSource(logger *slog.Logger) *TextSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextSource{Logger: logger}
}

// Pages returns the text of every page of the PDF at path, in page order.
// A page whose text cannot be extracted is returned with empty text; a file
// that cannot be opened fails with ErrExtraction.
func (s *TextSource) Pages(ctx context.Context, path string) ([]runsheet.Page, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, path, err)
	}
	defer r.Close()

	count, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get page count: %v", ErrExtraction, err)
	}

	pages := make([]runsheet.Page, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, warnings, err := tabula.FromReader(r).Pages(i + 1).Text()
		if err != nil {
			s.Logger.Warn("page text extraction failed", "page", i+1, "error", err)
		}
		if len(warnings) > 0 {
			s.Logger.Debug("page text warnings", "page", i+1, "warnings", len(warnings))
		}
		pages[i] = runsheet.Page{Index: i, Text: text}
	}

	s.Logger.Debug("extracted page text", "file", path, "pages", count)
	return pages, nil
}
