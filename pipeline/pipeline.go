// Package pipeline orchestrates a transcription run: select pages, fan them
// out to OCR workers, collect results in completion order, and assemble the
// merged markdown document. One failed page never aborts the run; it is
// reported alongside the pages that succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/transcriptor/assemble"
	"github.com/wudi/transcriptor/enhance"
	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr"
	"github.com/wudi/transcriptor/ocr/claude"
	"github.com/wudi/transcriptor/ocr/tesseract"
	"github.com/wudi/transcriptor/pagespec"
	"github.com/wudi/transcriptor/raster"
)

// renderer is the part of raster.Document the pipeline uses.
type renderer interface {
	PageCount(ctx context.Context) (int, error)
	RenderPage(ctx context.Context, page, dpi int) (image.Image, error)
	RenderPages(ctx context.Context, pages []int, dpi int) ([]raster.PageImage, error)
}

// Report is the outcome of a finished run.
type Report struct {
	// OutputPath is the merged raw document.
	OutputPath string
	// CleanPath is the merged cleaned document, empty when no page was
	// cleaned.
	CleanPath string
	// HTMLPath is the HTML export, empty unless requested.
	HTMLPath string
	Results  *ResultSet
	Stats    RunStats
}

// Pipeline runs transcriptions for one configuration.
type Pipeline struct {
	cfg      Config
	log      observability.Logger
	enhancer enhance.Enhancer

	engine ocr.Engine
	// newCleanupEngine builds the engine for the standalone revision wave.
	newCleanupEngine func() ocr.Engine
	openDocument     func(path string) (renderer, error)
}

// New validates cfg and constructs a ready-to-run pipeline.
func New(cfg Config) (*Pipeline, error) {
	cfg.applyDefaults()
	if cfg.PDFPath == "" {
		return nil, errors.New("no input document given")
	}
	if _, err := enhance.ParseMode(string(cfg.Preprocess)); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		log:      cfg.Logger,
		enhancer: enhance.New(cfg.BinarizeThreshold),
		openDocument: func(path string) (renderer, error) {
			return raster.Open(path)
		},
	}

	switch cfg.Engine {
	case EngineTesseract:
		p.engine = tesseract.New(tesseract.Config{
			PSM:              cfg.PSM,
			AutoRotate:       cfg.AutoRotate,
			RotateConfidence: cfg.RotateConfidence,
			Logger:           cfg.Logger,
		})
	case EngineClaude:
		p.engine = claude.New(claude.Config{
			Model:       cfg.Model,
			ReviseModel: cfg.ReviseModel,
			APIKey:      cfg.APIKey,
			Logger:      cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}

	p.newCleanupEngine = func() ocr.Engine {
		if cfg.Engine == EngineClaude {
			return p.engine
		}
		return claude.New(claude.Config{
			Model:       cfg.Model,
			ReviseModel: cfg.ReviseModel,
			APIKey:      cfg.APIKey,
			Logger:      cfg.Logger,
		})
	}
	return p, nil
}

// Run executes the full transcription. It returns an error only for
// run-level failures (unreadable document, unavailable engine, empty page
// selection, unwritable output); per-page failures are reported in the
// Report instead.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.engine.Available(); err != nil {
		return nil, err
	}
	if p.cfg.Engine == EngineTesseract {
		if v, ok := p.engine.(interface{ ValidateLanguage(string) string }); ok {
			p.cfg.Language = v.ValidateLanguage(p.cfg.Language)
		}
	}

	doc, err := p.openDocument(p.cfg.PDFPath)
	if err != nil {
		return nil, err
	}
	total, err := doc.PageCount(ctx)
	if err != nil {
		return nil, err
	}

	pages, err := p.selectPages(total)
	if err != nil {
		return nil, err
	}
	p.log.Info("starting transcription",
		observability.String("document", p.cfg.PDFPath),
		observability.String("engine", p.engine.Name()),
		observability.Int("pages", len(pages)),
		observability.Int("total_pages", total),
		observability.Int("workers", p.cfg.effectiveWorkers(len(pages))))

	outPath := p.cfg.outputPath()
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	pagesDir := ""
	if p.cfg.Engine == EngineClaude {
		// Cloud runs are long; stream each finished page to disk so partial
		// progress survives an interrupted run.
		pagesDir = filepath.Join(filepath.Dir(outPath), "pages")
		if err := os.MkdirAll(pagesDir, 0o755); err != nil {
			return nil, fmt.Errorf("create pages directory: %w", err)
		}
	}

	start := time.Now()
	tasks := p.buildTasks(pages)
	set := p.dispatch(ctx, doc, tasks, pagesDir)

	if p.cfg.Cleanup && p.cfg.Engine == EngineTesseract {
		p.runCleanupWave(ctx, set)
	}

	report := &Report{OutputPath: outPath, Results: set}
	if err := p.writeOutputs(report, pages); err != nil {
		return nil, err
	}
	report.Stats = deriveStats(set, len(pages), time.Since(start))

	p.log.Info("transcription finished",
		observability.Int("succeeded", report.Stats.PagesSucceeded),
		observability.Int("failed", len(set.Failed)),
		observability.Int("characters", report.Stats.Characters),
		observability.Float64("pages_per_minute", report.Stats.PagesPerMinute()))
	return report, nil
}

func (p *Pipeline) selectPages(total int) ([]int, error) {
	if p.cfg.FirstN > 0 {
		return pagespec.FirstN(p.cfg.FirstN, total)
	}
	if p.cfg.Pages != "" {
		return pagespec.Parse(p.cfg.Pages, total)
	}
	return pagespec.All(total), nil
}

func (p *Pipeline) buildTasks(pages []int) []PageTask {
	tasks := make([]PageTask, 0, len(pages))
	for _, page := range pages {
		tasks = append(tasks, PageTask{
			Page:         page,
			DocumentPath: p.cfg.PDFPath,
			DPI:          p.cfg.DPI,
			Preprocess:   p.cfg.Preprocess,
			Language:     p.cfg.Language,
			Reflow:       p.cfg.Reflow,
			// The cloud engine revises in the same task; the local engine
			// gets a separate cleanup wave after recognition.
			Cleanup: p.cfg.Cleanup && p.cfg.Engine == EngineClaude,
		})
	}
	return tasks
}

func (p *Pipeline) writeOutputs(report *Report, pages []int) error {
	meta := assemble.Metadata{
		Title:      p.cfg.Title,
		SourceFile: filepath.Base(p.cfg.PDFPath),
		EngineName: p.engine.Name(),
		Language:   p.cfg.Language,
		DPI:        p.cfg.DPI,
		Preprocess: string(p.cfg.Preprocess),
		Reflow:     p.cfg.Reflow,
	}
	if meta.Title == "" {
		meta.Title = assemble.DeriveTitle(p.cfg.PDFPath)
	}
	header := assemble.Header(meta)

	set := report.Results
	if len(set.Raw) == 0 {
		return fmt.Errorf("no page produced text: %d of %d pages failed", len(set.Failed), len(pages))
	}
	if err := assemble.WriteDocument(report.OutputPath, assemble.Merge(header, set.Raw)); err != nil {
		return err
	}
	if len(set.Cleaned) > 0 {
		report.CleanPath = cleanPath(report.OutputPath)
		if err := assemble.WriteDocument(report.CleanPath, assemble.Merge(header, set.Cleaned)); err != nil {
			return err
		}
	}
	if p.cfg.WriteHTML {
		report.HTMLPath = htmlPath(report.OutputPath)
		src := set.Raw
		if len(set.Cleaned) > 0 {
			src = set.Cleaned
		}
		if err := assemble.WriteHTML(report.HTMLPath, assemble.Merge(header, src)); err != nil {
			return err
		}
	}
	return nil
}

func htmlPath(rawPath string) string {
	ext := filepath.Ext(rawPath)
	return rawPath[:len(rawPath)-len(ext)] + ".html"
}
