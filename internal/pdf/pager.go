package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Pager implements runsheet.Pager with pdfcpu. Output bytes depend only on
// the input documents and the requested pages.
type Pager struct {
	conf func() *model.Configuration
}

var disableConfigDir sync.Once

// NewPager returns a pdfcpu backed pager.
func NewPager() *Pager {
	// pdfcpu otherwise creates a config.yml under the user config dir on
	// first use.
	disableConfigDir.Do(api.DisableConfigDir)
	return &Pager{conf: writeConfiguration}
}

// writeConfiguration keeps every object and the cross reference table
// uncompressed so the stamps pdfcpu writes can be rewritten in place.
// Optimization walks maps and may pick different duplicates per run, so it
// is off.
func writeConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	conf.Optimize = false
	conf.OptimizeBeforeWriting = false
	return conf
}

// PageCount returns the number of pages in doc.
func (p *Pager) PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), p.conf())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get page count: %v", ErrExtraction, err)
	}
	return n, nil
}

// Slice returns a PDF holding pages [start, end) of doc (0-based).
func (p *Pager) Slice(doc []byte, start, end int) ([]byte, error) {
	if start < 0 || start >= end {
		return nil, fmt.Errorf("invalid page range [%d, %d)", start, end)
	}

	// pdfcpu selections are 1-indexed and inclusive.
	sel := fmt.Sprintf("%d-%d", start+1, end)
	if end-start == 1 {
		sel = strconv.Itoa(start + 1)
	}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(doc), &out, []string{sel}, p.conf()); err != nil {
		return nil, fmt.Errorf("%w: failed to extract pages %s: %v", ErrExtraction, sel, err)
	}
	return stamp(out.Bytes(), fingerprint([]byte(sel), doc)), nil
}

// Merge concatenates docs, in order, into one PDF.
func (p *Pager) Merge(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	if len(docs) == 1 {
		return append([]byte(nil), docs[0]...), nil
	}

	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		readers[i] = bytes.NewReader(d)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, p.conf()); err != nil {
		return nil, fmt.Errorf("%w: failed to merge %d documents: %v", ErrExtraction, len(docs), err)
	}
	return stamp(out.Bytes(), fingerprint(docs...)), nil
}

// fixedDate replaces pdfcpu's D:YYYYMMDDHHmmSS+HH'mm' stamps and has the
// same length.
const fixedDate = "D:20000101000000+00'00'"

var (
	dateStamp = regexp.MustCompile(`(/(?:CreationDate|ModDate)\s*)\(D:[0-9]{14}[+-][0-9]{2}'[0-9]{2}'\)`)
	fileID    = regexp.MustCompile(`/ID\s*\[\s*<([0-9A-Fa-f]*)>\s*<([0-9A-Fa-f]*)>\s*\]`)
)

// fingerprint hashes the inputs, each prefixed by its length.
func fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, b := range parts {
		fmt.Fprintf(h, "%d:", len(b))
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stamp overwrites the time-derived Info dates and trailer file ID with
// values derived from the input. Every replacement keeps its byte length so
// the xref offsets stay valid.
func stamp(doc []byte, digest string) []byte {
	doc = dateStamp.ReplaceAll(doc, []byte("${1}("+fixedDate+")"))

	return fileID.ReplaceAllFunc(doc, func(m []byte) []byte {
		out := append([]byte(nil), m...)
		for _, loc := range hexSpans(m) {
			copy(out[loc[0]:loc[1]], repeatTo(digest, loc[1]-loc[0]))
		}
		return out
	})
}

// hexSpans returns the byte ranges of the two hex strings in an /ID match.
func hexSpans(m []byte) [][2]int {
	idx := fileID.FindSubmatchIndex(m)
	if idx == nil {
		return nil
	}
	return [][2]int{{idx[2], idx[3]}, {idx[4], idx[5]}}
}

func repeatTo(s string, n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s...)
	}
	return out[:n]
}
