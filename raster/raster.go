// Package raster converts PDF pages into images using the poppler command
// line tools (pdfinfo for page counts, pdftoppm for rendering). The tools run
// as subprocesses, so a crash while rendering a corrupt page never takes down
// the calling process.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // pdftoppm output format
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/wudi/transcriptor/pagespec"
)

// DefaultDPI is the render resolution used when none is configured.
const DefaultDPI = 150

// Runner executes an external command and returns its stdout. It exists so
// tests can substitute the poppler binaries.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// RenderError reports a failed page render. It is a per-page error: the
// pipeline converts it into a failed page result instead of aborting the run.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render page %d: %v", e.Page, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// ErrUnavailable indicates the poppler tools are not installed.
var ErrUnavailable = errors.New("poppler tools (pdftoppm, pdfinfo) not found in PATH")

// Available reports whether the poppler tools can be invoked.
func Available() error {
	for _, tool := range []string{"pdftoppm", "pdfinfo"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Document is a readable PDF on disk.
type Document struct {
	Path string

	run Runner
}

// Open validates that path exists and returns a Document handle.
func Open(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open document: %s is a directory", path)
	}
	return &Document{Path: path, run: execRunner}, nil
}

// WithRunner replaces the subprocess runner, for tests.
func (d *Document) WithRunner(r Runner) *Document {
	d.run = r
	return d
}

var pagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)$`)

// PageCount reads the document's total page count via pdfinfo.
func (d *Document) PageCount(ctx context.Context) (int, error) {
	out, err := d.run(ctx, "pdfinfo", d.Path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	m := pagesRe.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("page count: no Pages field in pdfinfo output")
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("page count: bad value %q", m[1])
	}
	return n, nil
}

// RenderPage rasterizes one page at the given DPI. Page numbers are 1-based.
func (d *Document) RenderPage(ctx context.Context, page, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	p := strconv.Itoa(page)
	out, err := d.run(ctx, "pdftoppm",
		"-png", "-r", strconv.Itoa(dpi), "-f", p, "-l", p, d.Path)
	if err != nil {
		return nil, &RenderError{Page: page, Err: err}
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &RenderError{Page: page, Err: fmt.Errorf("decode: %w", err)}
	}
	return img, nil
}

// PageImage pairs a rendered image with its page number.
type PageImage struct {
	Page  int
	Image image.Image
}

// RenderPages rasterizes the selected pages. A contiguous selection renders
// with a single pdftoppm invocation into a scratch directory; gaps fall back
// to one invocation per page.
func (d *Document) RenderPages(ctx context.Context, pages []int, dpi int) ([]PageImage, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if !pagespec.IsContiguous(pages) || len(pages) == 1 {
		out := make([]PageImage, 0, len(pages))
		for _, p := range pages {
			img, err := d.RenderPage(ctx, p, dpi)
			if err != nil {
				return nil, err
			}
			out = append(out, PageImage{Page: p, Image: img})
		}
		return out, nil
	}

	if dpi <= 0 {
		dpi = DefaultDPI
	}
	dir, err := os.MkdirTemp("", "transcriptor-raster-")
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	defer os.RemoveAll(dir)

	lo, hi := pages[0], pages[len(pages)-1]
	prefix := filepath.Join(dir, "page")
	if _, err := d.run(ctx, "pdftoppm",
		"-png", "-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(lo), "-l", strconv.Itoa(hi),
		d.Path, prefix); err != nil {
		return nil, &RenderError{Page: lo, Err: err}
	}

	// pdftoppm pads page numbers uniformly, so lexicographic order is page
	// order.
	names, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	sort.Strings(names)
	if len(names) != len(pages) {
		return nil, fmt.Errorf("render pages: expected %d images, got %d", len(pages), len(names))
	}
	out := make([]PageImage, 0, len(pages))
	for i, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, &RenderError{Page: pages[i], Err: err}
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &RenderError{Page: pages[i], Err: fmt.Errorf("decode: %w", err)}
		}
		out = append(out, PageImage{Page: pages[i], Image: img})
	}
	return out, nil
}
