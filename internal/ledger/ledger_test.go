package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestDigest(t *testing.T) {
	a := Digest([]byte("daily run sheets"))
	b := Digest([]byte("daily run sheets"))
	c := Digest([]byte("other run sheets"))

	if a != b {
		t.Error("digest not deterministic")
	}
	if a == c {
		t.Error("different documents share a digest")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestLedger_RecordAndSeen(t *testing.T) {
	l, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer l.Close()

	d := Digest([]byte("doc-1"))

	seen, err := l.Seen(d)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if seen {
		t.Error("fresh ledger reports document as seen")
	}

	if _, err := l.Get(d); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := l.Record(Entry{Digest: d, Source: "inbox/daily.pdf", Runs: 3, Sent: 2}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seen, err = l.Seen(d)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if !seen {
		t.Error("recorded document not seen")
	}

	e, err := l.Get(d)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.Source != "inbox/daily.pdf" || e.Runs != 3 || e.Sent != 2 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.ProcessedAt.IsZero() {
		t.Error("ProcessedAt not defaulted")
	}
}

func TestLedger_RecordRequiresDigest(t *testing.T) {
	l, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer l.Close()

	if err := l.Record(Entry{Source: "inbox/daily.pdf"}); err == nil {
		t.Error("expected error for missing digest")
	}
}

func TestLedger_List(t *testing.T) {
	l, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer l.Close()

	base := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	for i, src := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		if err := l.Record(Entry{
			Digest:      Digest([]byte(src)),
			Source:      src,
			ProcessedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := l.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		if entries[i].Source != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].Source)
		}
	}
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	d := Digest([]byte("doc"))

	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := l.Record(Entry{Digest: d, Source: "daily.pdf"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	l, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer l.Close()

	seen, err := l.Seen(d)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if !seen {
		t.Error("entry lost across reopen")
	}
}
