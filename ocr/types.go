package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Input encapsulates a single page image submitted for recognition.
type Input struct {
	// Page is the 1-based page number the image came from. It is echoed in
	// diagnostics only; engines do not interpret it.
	Page int
	// Image is the decoded page image, already preprocessed.
	Image image.Image
	// Language is the engine language code (e.g. "eng", "spa", or the
	// Tesseract multi-language form "spa+eng").
	Language string
	// Reflow asks vision engines to merge original line breaks into flowing
	// paragraphs. Engines without layout understanding ignore it.
	Reflow bool
	// DPI carries the render resolution. Tesseract uses it for layout
	// heuristics; zero means unknown.
	DPI int
	// Metadata passes provider-specific knobs (e.g. "tessedit_char_whitelist")
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Engine is the provider contract: one preprocessed image in, extracted text
// out. Recognize may block on subprocess or network I/O; it honors ctx.
type Engine interface {
	Name() string
	// Available verifies the engine's runtime dependency (native library,
	// credentials) and must be checked before first use. Recognize on an
	// unavailable engine returns an error wrapping ErrUnavailable rather
	// than silently doing nothing.
	Available() error
	Recognize(ctx context.Context, in Input) (string, error)
}

// Rotator is the optional orientation-detection capability. DetectRotation
// returns the corrected image and the rotation applied in degrees; on low
// confidence or internal error it degrades to the identity (input image, 0).
type Rotator interface {
	DetectRotation(ctx context.Context, img image.Image) (image.Image, int)
}

// Reviser is the optional text-cleanup capability: fix character-level
// recognition errors in previously extracted text while preserving meaning,
// structure, and paragraph breaks.
type Reviser interface {
	Revise(ctx context.Context, text, language string) (string, error)
}

// ErrUnavailable indicates a missing runtime dependency or credentials.
var ErrUnavailable = errors.New("ocr engine unavailable")

// EngineError wraps a per-page provider failure.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string { return fmt.Sprintf("%s: %v", e.Engine, e.Err) }
func (e *EngineError) Unwrap() error { return e.Err }

// LanguageName maps an engine language code to the human-readable name used
// in vision prompts. Unknown codes pass through unchanged.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

var languageNames = map[string]string{
	"spa": "Spanish",
	"eng": "English",
	"fra": "French",
	"deu": "German",
	"por": "Portuguese",
	"ita": "Italian",
}
