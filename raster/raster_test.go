package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPageCount(t *testing.T) {
	doc, err := Open(tempPDF(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "pdfinfo" {
			t.Fatalf("unexpected command %s", name)
		}
		return []byte("Title:          scan\nPages:          12\nEncrypted:      no\n"), nil
	})
	n, err := doc.PageCount(context.Background())
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 12 {
		t.Fatalf("PageCount() = %d, want 12", n)
	}
}

func TestPageCountNoPagesField(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Title: x\n"), nil
	})
	if _, err := doc.PageCount(context.Background()); err == nil {
		t.Fatalf("expected error for missing Pages field")
	}
}

func TestRenderPage(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	data := pngBytes(t, 3, 5)
	var gotArgs []string
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "pdftoppm" {
			t.Fatalf("unexpected command %s", name)
		}
		gotArgs = args
		return data, nil
	})
	img, err := doc.RenderPage(context.Background(), 7, 300)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Fatalf("unexpected bounds %v", b)
	}
	want := []string{"-png", "-r", "300", "-f", "7", "-l", "7", doc.Path}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("args[%d] = %s, want %s", i, gotArgs[i], want[i])
		}
	}
}

func TestRenderPageFailureIsRenderError(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 99")
	})
	_, err := doc.RenderPage(context.Background(), 4, 0)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
	if re.Page != 4 {
		t.Fatalf("RenderError.Page = %d", re.Page)
	}
}

func TestRenderPageBadImage(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("not a png"), nil
	})
	var re *RenderError
	if _, err := doc.RenderPage(context.Background(), 1, 150); !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
}

func TestRenderPagesContiguousSingleInvocation(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	data := pngBytes(t, 2, 2)
	invocations := 0
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		invocations++
		// Last argument is the output prefix for the batch form.
		prefix := args[len(args)-1]
		for i := 2; i <= 4; i++ {
			fn := fmt.Sprintf("%s-%d.png", prefix, i)
			if err := os.WriteFile(fn, data, 0o644); err != nil {
				t.Fatalf("write fake render: %v", err)
			}
		}
		return nil, nil
	})
	imgs, err := doc.RenderPages(context.Background(), []int{2, 3, 4}, 150)
	if err != nil {
		t.Fatalf("RenderPages() error = %v", err)
	}
	if invocations != 1 {
		t.Fatalf("contiguous range should render in one invocation, got %d", invocations)
	}
	if len(imgs) != 3 {
		t.Fatalf("expected 3 images, got %d", len(imgs))
	}
	for i, want := range []int{2, 3, 4} {
		if imgs[i].Page != want {
			t.Fatalf("imgs[%d].Page = %d, want %d", i, imgs[i].Page, want)
		}
	}
}

func TestRenderPagesSparsePerPage(t *testing.T) {
	doc, _ := Open(tempPDF(t))
	data := pngBytes(t, 2, 2)
	var pagesSeen []string
	doc.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		// args: -png -r <dpi> -f <p> -l <p> <path>
		pagesSeen = append(pagesSeen, args[4])
		return data, nil
	})
	imgs, err := doc.RenderPages(context.Background(), []int{1, 5}, 150)
	if err != nil {
		t.Fatalf("RenderPages() error = %v", err)
	}
	if len(imgs) != 2 || imgs[0].Page != 1 || imgs[1].Page != 5 {
		t.Fatalf("unexpected result %v", imgs)
	}
	if len(pagesSeen) != 2 || pagesSeen[0] != "1" || pagesSeen[1] != "5" {
		t.Fatalf("unexpected per-page invocations %v", pagesSeen)
	}
}
