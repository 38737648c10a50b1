// Package assemble merges per-page OCR text into markdown documents. Pages
// always appear in ascending page order regardless of the order they were
// recognized, and every write is atomic: a failed write leaves no partial
// file at the final path.
package assemble

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
)

// Metadata describes one transcription run for the document header.
type Metadata struct {
	Title      string
	SourceFile string
	EngineName string
	Language   string
	DPI        int
	Preprocess string
	Reflow     bool
}

// Header renders the markdown front matter for a merged document.
func Header(m Metadata) string {
	reflowNote := ""
	if m.Reflow {
		reflowNote = "\n> - **Text reflow:** Enabled (paragraphs reformatted)"
	}
	return fmt.Sprintf(`# %s

---

> **NOTE:** This document was generated via OCR (Optical Character Recognition)
> from a scanned PDF. It may contain transcription errors.
> Refer to the original document for legal purposes.
>
> - **Source file:** %s
> - **OCR Engine:** %s
> - **Language:** %s
> - **DPI:** %d
> - **Preprocessing:** %s%s

---

`, m.Title, m.SourceFile, m.EngineName, m.Language, m.DPI, m.Preprocess, reflowNote)
}

// FormatPage renders one page section with its boundary marker.
func FormatPage(page int, text string) string {
	return fmt.Sprintf("\n---\n\n## Page %d\n\n%s\n", page, text)
}

// Merge builds a complete document from a page->text mapping, ascending by
// page number.
func Merge(header string, pages map[int]string) string {
	nums := make([]int, 0, len(pages))
	for p := range pages {
		nums = append(nums, p)
	}
	sort.Ints(nums)

	var b strings.Builder
	b.WriteString(header)
	for _, p := range nums {
		b.WriteString(FormatPage(p, pages[p]))
	}
	return b.String()
}

// DeriveTitle turns a source filename into a readable document title:
// underscores and hyphens become spaces and each word is capitalized.
func DeriveTitle(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	words := strings.Fields(stem)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// WriteDocument writes content to path atomically: the content lands in a
// temporary file in the target directory first and is renamed into place.
func WriteDocument(path, content string) error {
	return writeAtomic(path, []byte(content))
}

// PageFileName names a per-page file: zero-padded page number plus an
// optional stage suffix, e.g. page_007_clean.md.
func PageFileName(page int, suffix string) string {
	return fmt.Sprintf("page_%03d%s.md", page, suffix)
}

// WritePage saves one page's text under dir for incremental visibility
// during long runs.
func WritePage(dir string, page int, text, suffix string) (string, error) {
	path := filepath.Join(dir, PageFileName(page, suffix))
	content := fmt.Sprintf("## Page %d\n\n%s\n", page, text)
	if err := writeAtomic(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteHTML converts a markdown document to HTML and writes it atomically.
func WriteHTML(path, markdown string) error {
	md := goldmark.New()
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Stats summarizes a document's text.
type Stats struct {
	Characters int
	Words      int
	Lines      int
}

// Statistics computes document statistics over text.
func Statistics(text string) Stats {
	return Stats{
		Characters: len(text),
		Words:      len(strings.Fields(text)),
		Lines:      strings.Count(text, "\n") + 1,
	}
}
