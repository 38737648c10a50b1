package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wudi/transcriptor/enhance"
	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr/claude"
	"github.com/wudi/transcriptor/pipeline"
)

type options struct {
	cfg      pipeline.Config
	logLevel string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: transcribe [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	engine := flag.String("engine", "tesseract", "OCR engine: tesseract, claude, cheap or expensive")
	model := flag.String("model", "", "Cloud model identifier (overrides the engine alias)")
	reviseModel := flag.String("revise-model", "", "Cloud model for the revision pass (defaults to the main model)")
	out := flag.String("out", "", "Output markdown path (default output/<name>/<name>.md)")
	title := flag.String("title", "", "Document title (default derived from the filename)")
	pages := flag.String("pages", "", "Pages to transcribe, e.g. 1-3,7,10-12 (default all)")
	first := flag.Int("first", 0, "Transcribe only the first N pages")
	dpi := flag.Int("dpi", 150, "Render resolution")
	lang := flag.String("lang", "eng", "OCR language, e.g. spa or spa+eng")
	workers := flag.Int("workers", 1, "Parallel page workers (cloud engine defaults from -tier)")
	tier := flag.Int("tier", 1, "Anthropic API rate-limit tier, sizes cloud concurrency")
	cleanup := flag.Bool("cleanup", false, "Revise recognized text with the cloud model")
	reflow := flag.Bool("reflow", false, "Merge hard-wrapped lines into paragraphs (cloud engine only)")
	preprocess := flag.String("preprocess", "none", "Image preprocessing mode: "+modeList())
	threshold := flag.Int("threshold", enhance.DefaultThreshold, "Binarization threshold (0-255)")
	psm := flag.Int("psm", 3, "Tesseract page segmentation mode")
	noRotate := flag.Bool("no-rotate", false, "Disable automatic orientation correction")
	enhanced := flag.Bool("enhance", false, "Preset for degraded scans: -preprocess all, rotation on, 300 DPI")
	html := flag.Bool("html", false, "Also export the merged document as HTML")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}

	kind, err := pipeline.ParseEngine(*engine)
	if err != nil {
		return options{}, err
	}
	mode, err := enhance.ParseMode(*preprocess)
	if err != nil {
		return options{}, err
	}

	opts.cfg = pipeline.Config{
		PDFPath:           flag.Arg(0),
		OutputPath:        *out,
		Title:             *title,
		Engine:            kind,
		Model:             resolveModel(*engine, *model),
		ReviseModel:       *reviseModel,
		Pages:             *pages,
		FirstN:            *first,
		DPI:               *dpi,
		Language:          *lang,
		Workers:           *workers,
		Tier:              *tier,
		Cleanup:           *cleanup,
		Reflow:            *reflow,
		Preprocess:        mode,
		BinarizeThreshold: *threshold,
		PSM:               *psm,
		AutoRotate:        !*noRotate,
		WriteHTML:         *html,
	}
	if *enhanced {
		opts.cfg.ApplyEnhancePreset()
	}
	opts.logLevel = *logLevel
	return opts, nil
}

// resolveModel maps the cheap/expensive engine aliases to concrete models.
// An explicit -model always wins.
func resolveModel(engine, model string) string {
	if model != "" {
		return model
	}
	switch strings.ToLower(engine) {
	case "cheap":
		return claude.CheapModel
	case "expensive":
		return claude.ExpensiveModel
	}
	return ""
}

func modeList() string {
	names := make([]string, 0, len(enhance.Modes()))
	for _, m := range enhance.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.cfg.Logger = observability.NewZapLogger(opts.logLevel)

	p, err := pipeline.New(opts.cfg)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Saved: %s\n", report.OutputPath)
	if report.CleanPath != "" {
		fmt.Printf("Saved: %s\n", report.CleanPath)
	}
	if report.HTMLPath != "" {
		fmt.Printf("Saved: %s\n", report.HTMLPath)
	}
	stats := report.Stats
	fmt.Printf("Pages: %d/%d  Characters: %d  Words: %d\n",
		stats.PagesSucceeded, stats.PagesAttempted, stats.Characters, stats.Words)
	fmt.Printf("Elapsed: %s  (%.1fs/page, %.1f pages/min)\n",
		stats.Elapsed.Round(100*time.Millisecond), stats.SecondsPerPage(), stats.PagesPerMinute())
	if failed := report.Results.FailedPages(); len(failed) > 0 {
		fmt.Printf("Failed pages: %v\n", failed)
	}
	return nil
}
