package pipeline

import (
	"sort"
	"time"

	"github.com/wudi/transcriptor/enhance"
)

// PageTask is the unit of dispatch: one selected page plus everything a
// worker needs to process it. It carries only plain data — no open handles
// or shared mutable state cross the worker boundary.
type PageTask struct {
	Page         int
	DocumentPath string
	DPI          int
	Preprocess   enhance.Mode
	Language     string
	Reflow       bool
	// Cleanup bundles a revision step into the same task, so a page's raw
	// and cleaned text are produced together.
	Cleanup bool
}

// PageResult is the outcome of one task. Exactly one PageResult exists per
// dispatched task; it is immutable after the worker returns it.
type PageResult struct {
	Page        int
	RawText     string
	CleanedText string
	// Rotation is the orientation correction applied in degrees, 0 if none.
	Rotation int
	Err      error
}

// Success reports whether recognition produced text for this page.
func (r PageResult) Success() bool { return r.Err == nil }

// PreferredText returns the cleaned text when present, the raw text
// otherwise.
func (r PageResult) PreferredText() string {
	if r.CleanedText != "" {
		return r.CleanedText
	}
	return r.RawText
}

// ResultSet accumulates per-page outcomes. The scheduler's collecting
// goroutine is the sole writer, so no locking is needed; workers only
// return results.
type ResultSet struct {
	Raw     map[int]string
	Cleaned map[int]string
	Failed  map[int]error
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{
		Raw:     make(map[int]string),
		Cleaned: make(map[int]string),
		Failed:  make(map[int]error),
	}
}

// Record stores one page outcome.
func (s *ResultSet) Record(res PageResult) {
	if !res.Success() {
		s.Failed[res.Page] = res.Err
		return
	}
	s.Raw[res.Page] = res.RawText
	if res.CleanedText != "" {
		s.Cleaned[res.Page] = res.CleanedText
	}
}

// Pages returns every accounted page (succeeded or failed) in ascending
// order.
func (s *ResultSet) Pages() []int {
	pages := make([]int, 0, len(s.Raw)+len(s.Failed))
	for p := range s.Raw {
		pages = append(pages, p)
	}
	for p := range s.Failed {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// FailedPages returns the failed page numbers in ascending order.
func (s *ResultSet) FailedPages() []int {
	pages := make([]int, 0, len(s.Failed))
	for p := range s.Failed {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// RunStats summarizes a finished run. It is derived once from the final
// ResultSet and never mutated afterwards.
type RunStats struct {
	PagesAttempted int
	PagesSucceeded int
	Elapsed        time.Duration
	Characters     int
	Words          int
}

// SecondsPerPage reports average processing time per succeeded page.
func (s RunStats) SecondsPerPage() float64 {
	if s.PagesSucceeded == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.PagesSucceeded)
}

// PagesPerMinute reports throughput.
func (s RunStats) PagesPerMinute() float64 {
	spp := s.SecondsPerPage()
	if spp == 0 {
		return 0
	}
	return 60 / spp
}

func deriveStats(set *ResultSet, attempted int, elapsed time.Duration) RunStats {
	var chars, words int
	for _, p := range set.Pages() {
		text, ok := set.Raw[p]
		if !ok {
			continue
		}
		chars += len(text)
		words += countWords(text)
	}
	return RunStats{
		PagesAttempted: attempted,
		PagesSucceeded: len(set.Raw),
		Elapsed:        elapsed,
		Characters:     chars,
		Words:          words,
	}
}

func countWords(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n
}
