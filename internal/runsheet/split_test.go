package runsheet

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit_RoundTrip(t *testing.T) {
	texts := []string{
		header("SCD0001", "Ann"), "a2", "a3",
		header("SCD0002", "Bob"),
		header("SCD0003", "Cy"), "c2",
	}
	doc := encodeDoc(texts...)

	det, err := Detect(pagesOf(texts...), DefaultDetectOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	docs, err := Split(doc, det, memPager{})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 run documents, got %d", len(docs))
	}

	var rebuilt []string
	for i, d := range docs {
		if d.Segment != det.Segments[i] {
			t.Errorf("doc %d carries segment %+v, want %+v", i, d.Segment, det.Segments[i])
		}
		pages, err := decodeDoc(d.Document)
		if err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		if len(pages) != d.Pages() {
			t.Errorf("doc %d has %d pages, segment says %d", i, len(pages), d.Pages())
		}
		rebuilt = append(rebuilt, pages...)
	}
	if !reflect.DeepEqual(rebuilt, texts) {
		t.Errorf("concatenated split output does not match source:\n got %q\nwant %q", rebuilt, texts)
	}
}

func TestSplit_EmptySegmentFailsFast(t *testing.T) {
	det := &Detection{
		Segments: []Segment{
			{RunID: "SCD0001", Start: 0, End: 0},
			{RunID: "SCD0002", Start: 0, End: 2},
		},
		PageCount: 2,
	}
	// failPager proves nothing is sliced before the check.
	_, err := Split(encodeDoc("x", "y"), det, failPager{})
	if !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
}

func TestSplit_PageCountMismatch(t *testing.T) {
	det := &Detection{
		Segments:  []Segment{{RunID: "SCD0001", Start: 0, End: 3}},
		PageCount: 3,
	}
	_, err := Split(encodeDoc("only", "two"), det, memPager{})
	if !errors.Is(err, ErrNotPartition) {
		t.Fatalf("expected ErrNotPartition, got %v", err)
	}
}

func TestSplit_PagerError(t *testing.T) {
	det := &Detection{
		Segments:  []Segment{{RunID: "SCD0001", Start: 0, End: 1}},
		PageCount: 1,
	}
	if _, err := Split(encodeDoc("x"), det, failPager{}); err == nil {
		t.Fatal("expected error from failing pager")
	}
}
