package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wudi/transcriptor/enhance"
	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr/claude"
	"github.com/wudi/transcriptor/raster"
)

// EngineKind selects the OCR backend.
type EngineKind string

const (
	EngineTesseract EngineKind = "tesseract"
	EngineClaude    EngineKind = "claude"
)

// ParseEngine resolves an engine name, accepting the model-alias shorthands
// for the cloud engine.
func ParseEngine(s string) (EngineKind, error) {
	switch strings.ToLower(s) {
	case "", "tesseract":
		return EngineTesseract, nil
	case "claude", "cheap", "expensive":
		return EngineClaude, nil
	}
	return "", fmt.Errorf("unknown ocr engine %q (want tesseract or claude)", s)
}

// Config fully describes one transcription run. Every knob is explicit;
// nothing is read from the environment except the API key fallback inside
// the cloud engine.
type Config struct {
	// PDFPath is the input document.
	PDFPath string
	// OutputPath overrides the default output/<name>/<name>.md location.
	OutputPath string
	// Title overrides the title derived from the filename.
	Title string

	Engine EngineKind
	// Model and ReviseModel name cloud models; empty uses the engine
	// defaults.
	Model       string
	ReviseModel string
	APIKey      string

	// Pages is a selection spec like "1-3,7"; empty selects all pages.
	Pages string
	// FirstN selects pages 1..N when positive; it wins over Pages.
	FirstN int

	DPI      int
	Language string

	// Workers caps local concurrency. Values below 2 run sequentially.
	Workers int
	// Tier is the cloud API rate-limit tier that sizes the cloud pool when
	// Workers is unset.
	Tier int

	// Cleanup enables the revision pass over recognized text.
	Cleanup bool
	// Reflow asks the cloud engine to merge hard-wrapped lines into
	// paragraphs.
	Reflow bool

	Preprocess        enhance.Mode
	BinarizeThreshold int

	PSM              int
	AutoRotate       bool
	RotateConfidence float64

	// WriteHTML additionally exports the merged document as HTML.
	WriteHTML bool

	Logger observability.Logger
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineTesseract
	}
	if c.DPI <= 0 {
		c.DPI = raster.DefaultDPI
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.Tier <= 0 {
		c.Tier = 1
	}
	if c.Preprocess == "" {
		c.Preprocess = enhance.ModeNone
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
}

// ApplyEnhancePreset configures the settings that work well for degraded
// scans: full preprocessing, orientation correction, and a 300 DPI render.
func (c *Config) ApplyEnhancePreset() {
	c.Preprocess = enhance.ModeAll
	c.AutoRotate = true
	c.DPI = 300
}

// effectiveWorkers is the pool size for the first wave. The cloud engine
// sizes its pool from the API tier unless an explicit worker count was
// given; the local engine uses the worker count as-is.
func (c *Config) effectiveWorkers(pages int) int {
	w := c.Workers
	if c.Engine == EngineClaude && w <= 0 {
		w = claude.WorkersForTier(c.Tier)
	}
	if w < 1 {
		w = 1
	}
	if w > pages {
		w = pages
	}
	return w
}

// cleanupWorkers sizes the revision pool, which always talks to the cloud
// API regardless of the recognition engine.
func (c *Config) cleanupWorkers(pages int) int {
	w := claude.WorkersForTier(c.Tier)
	if w > pages {
		w = pages
	}
	if w < 1 {
		w = 1
	}
	return w
}

// outputPath returns the merged-document destination, defaulting to
// output/<name>/<name>.md next to the working directory.
func (c *Config) outputPath() string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	stem := strings.TrimSuffix(filepath.Base(c.PDFPath), filepath.Ext(c.PDFPath))
	return filepath.Join("output", stem, stem+".md")
}

// cleanPath derives the cleaned-document destination from the raw one.
func cleanPath(rawPath string) string {
	ext := filepath.Ext(rawPath)
	return strings.TrimSuffix(rawPath, ext) + "_clean" + ext
}
