// Package tesseract implements the local OCR engine on top of the gosseract
// client. Orientation detection shells out to the tesseract binary in OSD
// mode, which gosseract does not expose.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr"
)

const (
	// DefaultPSM is Tesseract's fully automatic page segmentation.
	DefaultPSM = 3
	// DefaultRotateConfidence gates orientation correction: below this OSD
	// confidence the page passes through unrotated.
	DefaultRotateConfidence = 5.0
)

// Config holds the engine knobs.
type Config struct {
	// PSM is the page segmentation mode; zero means DefaultPSM.
	PSM int
	// AutoRotate enables orientation detection before recognition.
	AutoRotate bool
	// RotateConfidence is the minimum OSD confidence to act on; zero means
	// DefaultRotateConfidence.
	RotateConfidence float64
	// Logger defaults to the nop logger.
	Logger observability.Logger
}

// Engine is the Tesseract-backed OCR engine.
type Engine struct {
	psm              int
	autoRotate       bool
	rotateConfidence float64
	log              observability.Logger

	clientFactory func() *gosseract.Client
	languages     func() ([]string, error)
	osd           func(ctx context.Context, stdin []byte) ([]byte, error)
}

// New constructs a Tesseract engine.
func New(cfg Config) *Engine {
	if cfg.PSM == 0 {
		cfg.PSM = DefaultPSM
	}
	if cfg.RotateConfidence == 0 {
		cfg.RotateConfidence = DefaultRotateConfidence
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Engine{
		psm:              cfg.PSM,
		autoRotate:       cfg.AutoRotate,
		rotateConfidence: cfg.RotateConfidence,
		log:              cfg.Logger,
		clientFactory:    gosseract.NewClient,
		languages:        gosseract.GetAvailableLanguages,
		osd:              runOSD,
	}
}

func (e *Engine) Name() string { return "Tesseract" }

// Available reports whether the Tesseract runtime and its trained data can be
// reached.
func (e *Engine) Available() error {
	if _, err := e.languages(); err != nil {
		return fmt.Errorf("%w: %v", ocr.ErrUnavailable, err)
	}
	return nil
}

// AvailableLanguages lists the installed trained-data languages, falling back
// to English when the runtime cannot be queried.
func (e *Engine) AvailableLanguages() []string {
	langs, err := e.languages()
	if err != nil || len(langs) == 0 {
		return []string{"eng"}
	}
	return langs
}

// ValidateLanguage checks each component of a (possibly "spa+eng" combined)
// language code against the installed set. An unavailable component falls
// back to "eng" with a warning, or to the first installed language if English
// is missing too.
func (e *Engine) ValidateLanguage(lang string) string {
	available := e.AvailableLanguages()
	installed := make(map[string]bool, len(available))
	for _, l := range available {
		installed[l] = true
	}
	for _, l := range strings.Split(lang, "+") {
		if installed[l] {
			continue
		}
		fallback := available[0]
		if installed["eng"] {
			fallback = "eng"
		}
		e.log.Warn("language not installed, falling back",
			observability.String("requested", l),
			observability.String("fallback", fallback))
		return fallback
	}
	return lang
}

// Recognize runs OCR on one image. A fresh client is created per call so
// concurrent workers never share Tesseract state.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (string, error) {
	if err := e.Available(); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: err}
	}

	data, err := encodePNG(in.Image)
	if err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: err}
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("set image: %w", err)}
	}
	if in.Language != "" {
		if err := c.SetLanguage(strings.Split(in.Language, "+")...); err != nil {
			return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("set languages: %w", err)}
		}
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(e.psm)); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("set psm: %w", err)}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(in.DPI)); err != nil {
			return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("set dpi: %w", err)}
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("set variable %s: %w", k, err)}
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("recognize text: %w", err)}
	}
	return text, nil
}

var (
	rotateRe     = regexp.MustCompile(`Rotate:\s*(\d+)`)
	confidenceRe = regexp.MustCompile(`Orientation confidence:\s*([\d.]+)`)
)

// DetectRotation runs orientation-and-script detection on img and corrects
// its orientation when the reported confidence meets the configured gate.
// It never fails: any OSD problem degrades to the identity.
func (e *Engine) DetectRotation(ctx context.Context, img image.Image) (image.Image, int) {
	if !e.autoRotate {
		return img, 0
	}
	data, err := encodePNG(img)
	if err != nil {
		return img, 0
	}
	out, err := e.osd(ctx, data)
	if err != nil {
		// OSD fails on poor quality pages; treat as upright.
		e.log.Debug("osd failed", observability.Error("err", err))
		return img, 0
	}
	angle, confidence := parseOSD(out)
	if angle == 0 || confidence < e.rotateConfidence {
		return img, 0
	}
	return rotate(img, angle), angle
}

func parseOSD(out []byte) (angle int, confidence float64) {
	if m := rotateRe.FindSubmatch(out); m != nil {
		angle, _ = strconv.Atoi(string(m[1]))
	}
	if m := confidenceRe.FindSubmatch(out); m != nil {
		confidence, _ = strconv.ParseFloat(string(m[1]), 64)
	}
	return angle, confidence
}

func runOSD(ctx context.Context, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tesseract", "-", "stdout", "--psm", "0")
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract osd: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// rotate turns img clockwise by angle degrees; angle must be 90, 180 or 270.
// OSD reports the clockwise rotation needed to bring the page upright.
func rotate(img image.Image, angle int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var out *image.RGBA
	switch angle % 360 {
	case 90:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 180:
		out = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 270:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	default:
		return img
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
