package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/runsheets/internal/home"
	"github.com/jackzampolin/runsheets/internal/runsheet"
)

// Test documents are JSON arrays of page texts.
func encodeDoc(pages ...string) []byte {
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

type jsonText struct{}

func (jsonText) Pages(ctx context.Context, path string) ([]runsheet.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	texts, err := decodeDoc(data)
	if err != nil {
		return nil, err
	}
	pages := make([]runsheet.Page, len(texts))
	for i, t := range texts {
		pages[i] = runsheet.Page{Index: i, Text: t}
	}
	return pages, nil
}

type jsonPager struct{}

func (jsonPager) PageCount(doc []byte) (int, error) {
	pages, err := decodeDoc(doc)
	return len(pages), err
}

func (jsonPager) Slice(doc []byte, start, end int) ([]byte, error) {
	pages, err := decodeDoc(doc)
	if err != nil {
		return nil, err
	}
	if start < 0 || end > len(pages) || start >= end {
		return nil, fmt.Errorf("bad range [%d, %d) of %d", start, end, len(pages))
	}
	return encodeDoc(pages[start:end]...), nil
}

func (jsonPager) Merge(docs [][]byte) ([]byte, error) {
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

func header(run, operator string) string {
	return fmt.Sprintf("Daily Run Sheet\nRun: %s   Date: 2024/03/05\nOperator name: %s\n", run, operator)
}

// writeDoc writes a JSON test document and returns its path.
func writeDoc(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily.pdf")
	if err := os.WriteFile(path, encodeDoc(pages...), 0644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}

func testHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(filepath.Join(t.TempDir(), "runsheets-home"))
	if err != nil {
		t.Fatalf("home.New failed: %v", err)
	}
	return h
}

// assertWorkDirsRemoved fails if any invocation left its work dir behind.
func assertWorkDirsRemoved(t *testing.T, h *home.Dir) {
	t.Helper()
	entries, err := os.ReadDir(h.WorkRoot())
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no work directories, found %d", len(entries))
	}
}
