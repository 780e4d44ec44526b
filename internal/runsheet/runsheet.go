// Package runsheet finds run boundaries in a concatenated run-sheet document,
// splits it into one document per run, and groups runs by recipient.
//
// Every function in this package is pure: results are returned as new values
// and inputs are never mutated. Documents are opaque byte slices; page-level
// operations go through a Pager so the package stays independent of the
// document format.
package runsheet

// Page is the extracted text of a single page. Index is 0-based.
type Page struct {
	Index int
	Text  string
}

// Marker is one raw detection of a run header on a page.
type Marker struct {
	Page     int
	RunID    string
	Operator string
}

// Segment is the page range [Start, End) belonging to one run.
type Segment struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Operator string `json:"operator" yaml:"operator"`
	Start    int    `json:"start" yaml:"start"`
	End      int    `json:"end" yaml:"end"`
}

// Pages returns the number of pages in the segment.
func (s Segment) Pages() int {
	return s.End - s.Start
}

// Reappearance records a run id whose marker showed up again after another
// run had started.
type Reappearance struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	FirstPage int    `json:"first_page" yaml:"first_page"`
	Page      int    `json:"page" yaml:"page"`
}

// Detection is the result of scanning a document for run markers.
type Detection struct {
	Segments      []Segment      `json:"segments" yaml:"segments"`
	Reappearances []Reappearance `json:"reappearances,omitempty" yaml:"reappearances,omitempty"`
	Preamble      int            `json:"preamble,omitempty" yaml:"preamble,omitempty"` // pages before the first marker
	PageCount     int            `json:"page_count" yaml:"page_count"`
}

// RunIDs returns the detected run ids in page order.
func (d *Detection) RunIDs() []string {
	ids := make([]string, len(d.Segments))
	for i, s := range d.Segments {
		ids[i] = s.RunID
	}
	return ids
}

// RunDocument is the sub-document for a single run.
type RunDocument struct {
	Segment
	Document []byte
}

// Mapping maps run ids to recipient addresses. Many runs may share a recipient.
type Mapping map[string]string

// Bundle is every run addressed to one recipient, in detection order.
// Merged is empty until MergeBundles fills it.
type Bundle struct {
	Recipient string
	Runs      []RunDocument
	Merged    []byte
}

// RunIDs returns the bundle's run ids in detection order.
func (b Bundle) RunIDs() []string {
	ids := make([]string, len(b.Runs))
	for i, r := range b.Runs {
		ids[i] = r.RunID
	}
	return ids
}

// PageCount returns the total pages across the bundle's runs.
func (b Bundle) PageCount() int {
	n := 0
	for _, r := range b.Runs {
		n += r.Pages()
	}
	return n
}

// Grouping partitions the detected runs into recipient bundles and
// unassigned run ids.
type Grouping struct {
	Runs       int
	Bundles    []Bundle
	Unassigned []string
}

// Pager performs page-level operations on an encoded document.
// Implementations must preserve page content verbatim.
type Pager interface {
	// PageCount returns the number of pages in doc.
	PageCount(doc []byte) (int, error)
	// Slice returns a new document holding pages [start, end) of doc.
	Slice(doc []byte, start, end int) ([]byte, error)
	// Merge concatenates the pages of docs, in order, into one document.
	Merge(docs [][]byte) ([]byte, error)
}
