package runsheet

import (
	"encoding/json"
	"fmt"
)

// memPager encodes a document as a JSON array of page texts.
type memPager struct{}

func encodeDoc(pages ...string) []byte {
	if pages == nil {
		pages = []string{}
	}
	b, _ := json.Marshal(pages)
	return b
}

func decodeDoc(doc []byte) ([]string, error) {
	var pages []string
	if err := json.Unmarshal(doc, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (memPager) PageCount(doc []byte) (int, error) {
	pages, err := decodeDoc(doc)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (memPager) Slice(doc []byte, start, end int) ([]byte, error) {
	pages, err := decodeDoc(doc)
	if err != nil {
		return nil, err
	}
	if start < 0 || end > len(pages) || start >= end {
		return nil, fmt.Errorf("bad range [%d, %d) of %d", start, end, len(pages))
	}
	return encodeDoc(pages[start:end]...), nil
}

func (memPager) Merge(docs [][]byte) ([]byte, error) {
	var all []string
	for _, d := range docs {
		pages, err := decodeDoc(d)
		if err != nil {
			return nil, err
		}
		all = append(all, pages...)
	}
	return encodeDoc(all...), nil
}

// failPager fails every operation.
type failPager struct{}

func (failPager) PageCount([]byte) (int, error)          { return 0, fmt.Errorf("boom") }
func (failPager) Slice([]byte, int, int) ([]byte, error) { return nil, fmt.Errorf("boom") }
func (failPager) Merge([][]byte) ([]byte, error)         { return nil, fmt.Errorf("boom") }

func pagesOf(texts ...string) []Page {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{Index: i, Text: t}
	}
	return pages
}

func header(run, operator string) string {
	return fmt.Sprintf("Daily Run Sheet\nRun: %s   Date: 2026/10/18\nOperator name: %s\n", run, operator)
}
