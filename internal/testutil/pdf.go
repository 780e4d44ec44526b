package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// BuildPDF returns a minimal PDF with one page per entry in pageTexts.
// Each line of a page's text is drawn in Helvetica on its own baseline.
func BuildPDF(pageTexts []string) []byte {
	var buf bytes.Buffer
	var offsets []int

	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	addObj("<< /Type /Catalog /Pages 2 0 R >>")
	addObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageTexts)))
	addObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pageTexts {
		addObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i,
		))
		stream := contentStream(text)
		addObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// WritePDF writes BuildPDF output to a file in a test temp dir.
func WritePDF(t *testing.T, name string, pageTexts []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, BuildPDF(pageTexts), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
	return path
}

func contentStream(text string) string {
	var sb strings.Builder
	y := 740
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			y -= 16
			continue
		}
		fmt.Fprintf(&sb, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", y, escape(line))
		y -= 16
	}
	if sb.Len() == 0 {
		// Blank pages still get a non-empty content stream.
		return "% blank page"
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
