// Package claude implements the cloud OCR engine on the Anthropic vision
// API: page images go out with a transcription prompt, and previously
// recognized text can be sent back for a revision pass.
package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr"
)

// Model aliases. The default balances cost and accuracy; the cheap and
// expensive aliases trade one for the other.
const (
	DefaultModel   = "claude-sonnet-4-5-20250929"
	CheapModel     = "claude-haiku-4-5-20251001"
	ExpensiveModel = "claude-opus-4-5-20251101"
)

// DefaultMaxTokens bounds the response size per page.
const DefaultMaxTokens = 4096

// tierWorkers maps an API rate-limit tier to a safe concurrent-request
// ceiling (roughly 80% of the tier's requests per minute).
var tierWorkers = map[int]int{
	1: 40,
	2: 800,
	3: 1600,
	4: 3200,
}

// WorkersForTier returns the concurrency ceiling for an API tier. Unknown
// tiers use the tier-1 ceiling.
func WorkersForTier(tier int) int {
	if w, ok := tierWorkers[tier]; ok {
		return w
	}
	return tierWorkers[1]
}

// Config holds the engine settings.
type Config struct {
	// Model is the model identifier; empty means DefaultModel.
	Model string
	// ReviseModel is used for the revision pass; empty means Model.
	ReviseModel string
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string
	// MaxTokens bounds each response; zero means DefaultMaxTokens.
	MaxTokens int64
	// Logger defaults to the nop logger.
	Logger observability.Logger
}

// Engine is the Anthropic-backed OCR engine.
type Engine struct {
	model       string
	reviseModel string
	apiKey      string
	maxTokens   int64
	log         observability.Logger

	create func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// New constructs a Claude engine. The API key resolves from cfg first, then
// the ANTHROPIC_API_KEY environment variable.
func New(cfg Config) *Engine {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ReviseModel == "" {
		cfg.ReviseModel = cfg.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Engine{
		model:       cfg.Model,
		reviseModel: cfg.ReviseModel,
		apiKey:      apiKey,
		maxTokens:   cfg.MaxTokens,
		log:         cfg.Logger,
		create: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			return client.Messages.New(ctx, params)
		},
	}
}

func (e *Engine) Name() string { return fmt.Sprintf("Claude Vision AI (%s)", e.model) }

// Available reports whether API credentials are configured.
func (e *Engine) Available() error {
	if e.apiKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ocr.ErrUnavailable)
	}
	return nil
}

// Recognize transcribes one page image.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (string, error) {
	if err := e.Available(); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: err}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, in.Image); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("encode png: %w", err)}
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())
	prompt := recognizePrompt(ocr.LanguageName(in.Language), in.Reflow)

	msg, err := e.create(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", data),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("transcription request: %w", err)}
	}
	return messageText(msg), nil
}

// Revise sends previously recognized text back for character-level error
// correction. Meaning, structure and paragraph breaks are preserved.
func (e *Engine) Revise(ctx context.Context, text, language string) (string, error) {
	if err := e.Available(); err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: err}
	}
	prompt := revisePrompt(text, ocr.LanguageName(language))
	msg, err := e.create(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.reviseModel),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &ocr.EngineError{Engine: e.Name(), Err: fmt.Errorf("revision request: %w", err)}
	}
	return messageText(msg), nil
}

func messageText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, content := range msg.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	return b.String()
}
