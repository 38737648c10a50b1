package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr"
)

// processPage runs the full per-page chain: render, orient, enhance,
// recognize, and optionally revise. It never returns an error or panics out
// of the worker; every failure becomes a failed PageResult so the scheduler
// accounts for exactly one result per task.
func (p *Pipeline) processPage(ctx context.Context, doc renderer, task PageTask) (res PageResult) {
	res.Page = task.Page
	defer func() {
		if r := recover(); r != nil {
			res = PageResult{Page: task.Page, Err: fmt.Errorf("page %d: panic: %v", task.Page, r)}
		}
	}()

	img, err := doc.RenderPage(ctx, task.Page, task.DPI)
	if err != nil {
		res.Err = err
		return res
	}
	return p.processImage(ctx, task, img)
}

// processImage is the render-free tail of the chain, shared with the
// sequential path where pages arrive pre-rendered in a batch.
func (p *Pipeline) processImage(ctx context.Context, task PageTask, img image.Image) (res PageResult) {
	res.Page = task.Page
	defer func() {
		if r := recover(); r != nil {
			res = PageResult{Page: task.Page, Err: fmt.Errorf("page %d: panic: %v", task.Page, r)}
		}
	}()

	if rot, ok := p.engine.(ocr.Rotator); ok {
		img, res.Rotation = rot.DetectRotation(ctx, img)
		if res.Rotation != 0 {
			p.log.Debug("corrected page orientation",
				observability.Int("page", task.Page),
				observability.Int("degrees", res.Rotation))
		}
	}

	img = p.enhancer.Apply(img, task.Preprocess)

	text, err := p.engine.Recognize(ctx, ocr.Input{
		Page:     task.Page,
		Image:    img,
		Language: task.Language,
		Reflow:   task.Reflow,
		DPI:      task.DPI,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.RawText = text

	if task.Cleanup {
		if rev, ok := p.engine.(ocr.Reviser); ok {
			cleaned, err := rev.Revise(ctx, text, task.Language)
			if err != nil {
				// The raw transcription already succeeded; keep it and report
				// the page as succeeded without a cleaned variant.
				p.log.Warn("revision failed, keeping raw text",
					observability.Int("page", task.Page),
					observability.Error("err", err))
			} else {
				res.CleanedText = cleaned
			}
		}
	}
	return res
}
