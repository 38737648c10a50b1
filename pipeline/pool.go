package pipeline

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/wudi/transcriptor/assemble"
	"github.com/wudi/transcriptor/observability"
	"github.com/wudi/transcriptor/ocr"
)

// dispatch fans tasks out to a worker pool and collects results as they
// complete. A single collecting goroutine (this one) is the only writer to
// the returned set, so accumulation needs no locking. Results arrive in
// completion order; ordering is restored at assembly time.
func (p *Pipeline) dispatch(ctx context.Context, doc renderer, tasks []PageTask, pagesDir string) *ResultSet {
	set := NewResultSet()
	workers := p.cfg.effectiveWorkers(len(tasks))
	if workers <= 1 || len(tasks) == 1 {
		p.dispatchSequential(ctx, doc, tasks, set, pagesDir)
		return set
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		p.log.Warn("worker pool unavailable, running sequentially",
			observability.Error("err", err))
		p.dispatchSequential(ctx, doc, tasks, set, pagesDir)
		return set
	}
	defer pool.Release()

	results := make(chan PageResult, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results <- p.processPage(ctx, doc, task)
		})
		if submitErr != nil {
			wg.Done()
			results <- PageResult{Page: task.Page, Err: submitErr}
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		p.record(set, res, pagesDir)
	}
	return set
}

// dispatchSequential processes pages one at a time. A contiguous selection
// renders in a single pdftoppm pass first; any gap or a batch-render failure
// falls back to per-page rendering.
func (p *Pipeline) dispatchSequential(ctx context.Context, doc renderer, tasks []PageTask, set *ResultSet, pagesDir string) {
	pages := make([]int, 0, len(tasks))
	for _, t := range tasks {
		pages = append(pages, t.Page)
	}
	rendered, err := doc.RenderPages(ctx, pages, p.cfg.DPI)
	if err == nil && len(rendered) == len(tasks) {
		for i, task := range tasks {
			p.record(set, p.processImage(ctx, task, rendered[i].Image), pagesDir)
		}
		return
	}
	if err != nil {
		p.log.Debug("batch render failed, rendering per page",
			observability.Error("err", err))
	}
	for _, task := range tasks {
		p.record(set, p.processPage(ctx, doc, task), pagesDir)
	}
}

// record is called only from the collecting goroutine.
func (p *Pipeline) record(set *ResultSet, res PageResult, pagesDir string) {
	set.Record(res)
	if !res.Success() {
		p.log.Warn("page failed",
			observability.Int("page", res.Page),
			observability.Error("err", res.Err))
		return
	}
	p.log.Info("page done",
		observability.Int("page", res.Page),
		observability.Int("characters", len(res.RawText)))

	if pagesDir == "" {
		return
	}
	if _, err := assemble.WritePage(pagesDir, res.Page, res.RawText, ""); err != nil {
		p.log.Warn("could not save page file",
			observability.Int("page", res.Page),
			observability.Error("err", err))
	}
	if res.CleanedText != "" {
		if _, err := assemble.WritePage(pagesDir, res.Page, res.CleanedText, "_clean"); err != nil {
			p.log.Warn("could not save cleaned page file",
				observability.Int("page", res.Page),
				observability.Error("err", err))
		}
	}
}

// runCleanupWave revises the raw text of every succeeded page with the cloud
// engine. It runs after local recognition finishes so the two stages never
// compete for workers. An unavailable cleanup engine skips the wave with a
// warning; the run still succeeds with raw text only.
func (p *Pipeline) runCleanupWave(ctx context.Context, set *ResultSet) {
	pages := make([]int, 0, len(set.Raw))
	for page := range set.Raw {
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return
	}

	eng := p.newCleanupEngine()
	rev, ok := eng.(ocr.Reviser)
	if !ok {
		p.log.Warn("cleanup engine cannot revise text, skipping cleanup")
		return
	}
	if err := eng.Available(); err != nil {
		p.log.Warn("cleanup engine unavailable, skipping cleanup",
			observability.Error("err", err))
		return
	}

	workers := p.cfg.cleanupWorkers(len(pages))
	p.log.Info("starting cleanup pass",
		observability.Int("pages", len(pages)),
		observability.Int("workers", workers))

	type revised struct {
		page int
		text string
		err  error
	}
	results := make(chan revised, len(pages))

	if workers <= 1 || len(pages) == 1 {
		for _, page := range pages {
			text, err := rev.Revise(ctx, set.Raw[page], p.cfg.Language)
			results <- revised{page: page, text: text, err: err}
		}
		close(results)
	} else {
		pool, err := ants.NewPool(workers)
		if err != nil {
			p.log.Warn("cleanup pool unavailable, skipping cleanup",
				observability.Error("err", err))
			return
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for _, page := range pages {
			page := page
			raw := set.Raw[page]
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				text, err := rev.Revise(ctx, raw, p.cfg.Language)
				results <- revised{page: page, text: text, err: err}
			})
			if submitErr != nil {
				wg.Done()
				results <- revised{page: page, err: submitErr}
			}
		}
		go func() {
			wg.Wait()
			close(results)
		}()
	}

	cleaned := 0
	for r := range results {
		if r.err != nil {
			// Raw text stays; a failed revision never loses a page.
			p.log.Warn("cleanup failed for page, keeping raw text",
				observability.Int("page", r.page),
				observability.Error("err", r.err))
			continue
		}
		set.Cleaned[r.page] = r.text
		cleaned++
	}
	p.log.Info("cleanup pass finished",
		observability.Int("cleaned", cleaned),
		observability.Int("kept_raw", len(pages)-cleaned))
}
