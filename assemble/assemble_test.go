package assemble

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMergeOrdering(t *testing.T) {
	doc := Merge("HEADER\n", map[int]string{5: "E", 1: "A", 3: "C"})
	iA := strings.Index(doc, "## Page 1")
	iC := strings.Index(doc, "## Page 3")
	iE := strings.Index(doc, "## Page 5")
	if iA < 0 || iC < 0 || iE < 0 {
		t.Fatalf("missing page sections:\n%s", doc)
	}
	if !(iA < iC && iC < iE) {
		t.Fatalf("pages out of order: %d %d %d", iA, iC, iE)
	}
	if !strings.HasPrefix(doc, "HEADER\n") {
		t.Fatalf("header must lead the document")
	}
	if strings.Index(doc, "A") > strings.Index(doc, "C") {
		t.Fatalf("page text out of order")
	}
}

func TestHeaderFields(t *testing.T) {
	h := Header(Metadata{
		Title:      "Old Deed",
		SourceFile: "old_deed.pdf",
		EngineName: "Tesseract",
		Language:   "spa",
		DPI:        300,
		Preprocess: "clean",
	})
	for _, want := range []string{
		"# Old Deed",
		"**Source file:** old_deed.pdf",
		"**OCR Engine:** Tesseract",
		"**Language:** spa",
		"**DPI:** 300",
		"**Preprocessing:** clean",
	} {
		if !strings.Contains(h, want) {
			t.Fatalf("header missing %q:\n%s", want, h)
		}
	}
	if strings.Contains(h, "Text reflow") {
		t.Fatalf("reflow note should be absent by default")
	}
	if !strings.Contains(Header(Metadata{Reflow: true}), "Text reflow") {
		t.Fatalf("reflow note missing when enabled")
	}
}

func TestFormatPage(t *testing.T) {
	s := FormatPage(7, "body")
	if !strings.Contains(s, "\n---\n") {
		t.Fatalf("page boundary marker missing: %q", s)
	}
	if !strings.Contains(s, "## Page 7\n\nbody\n") {
		t.Fatalf("unexpected page format: %q", s)
	}
}

func TestDeriveTitle(t *testing.T) {
	cases := map[string]string{
		"old_property-deed.pdf": "Old Property Deed",
		"scan.pdf":              "Scan",
		"/tmp/a_b.pdf":          "A B",
	}
	for in, want := range cases {
		if got := DeriveTitle(in); got != want {
			t.Fatalf("DeriveTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteDocumentAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := WriteDocument(path, "content"); err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("content = %q", data)
	}
	// No stray temp files remain.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteDocumentFailureLeavesNoPartial(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	// Target directory does not exist: the write must fail without creating
	// anything at the final path.
	path := filepath.Join(dir, "doc.md")
	if err := WriteDocument(path, "content"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("no file may exist at the final path")
	}
}

func TestWritePageNaming(t *testing.T) {
	dir := t.TempDir()
	path, err := WritePage(dir, 7, "text", "")
	if err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}
	if filepath.Base(path) != "page_007.md" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	path, err = WritePage(dir, 12, "text", "_clean")
	if err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}
	if filepath.Base(path) != "page_012_clean.md" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "## Page 12\n\n") {
		t.Fatalf("page file missing heading: %q", data)
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.html")
	if err := WriteHTML(path, "# Title\n\nbody"); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "<h1>Title</h1>") {
		t.Fatalf("markdown not rendered: %q", data)
	}
}

func TestStatistics(t *testing.T) {
	s := Statistics("one two\nthree")
	if s.Characters != 13 {
		t.Fatalf("Characters = %d", s.Characters)
	}
	if s.Words != 3 {
		t.Fatalf("Words = %d", s.Words)
	}
	if s.Lines != 2 {
		t.Fatalf("Lines = %d", s.Lines)
	}
}
