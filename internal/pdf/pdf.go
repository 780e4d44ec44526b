// Package pdf adapts PDF files to the runsheet package: per-page text
// extraction with tabula and page slicing and merging with pdfcpu.
package pdf

import "errors"

// ErrExtraction is returned when a PDF cannot be parsed or its pages cannot
// be read.
var ErrExtraction = errors.New("pdf extraction failed")
