// Package pagespec resolves user-supplied page selections against a
// document's page count. A specification is a comma-separated list of 1-based
// page numbers and inclusive "start-end" ranges, e.g. "1-3,7,10-12".
package pagespec

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoValidPages reports that a specification selected nothing after
// filtering against the document bounds. It is a configuration error: the run
// must abort before any page is dispatched.
var ErrNoValidPages = errors.New("no valid pages in requested range")

// Parse resolves spec into an ascending, duplicate-free list of page numbers
// within [1, totalPages]. Out-of-range single values are dropped; a range's
// upper bound is clamped to the last page instead. An empty spec selects all
// pages.
func Parse(spec string, totalPages int) ([]int, error) {
	if totalPages < 1 {
		return nil, fmt.Errorf("document has no pages")
	}
	if strings.TrimSpace(spec) == "" {
		return All(totalPages), nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if start, end, ok := strings.Cut(part, "-"); ok {
			lo, err := strconv.Atoi(strings.TrimSpace(start))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q: %w", part, err)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(end))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q: %w", part, err)
			}
			if hi > totalPages {
				hi = totalPages
			}
			for p := lo; p <= hi; p++ {
				if p >= 1 {
					seen[p] = true
				}
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q: %w", part, err)
		}
		if p >= 1 && p <= totalPages {
			seen[p] = true
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: document has %d pages", ErrNoValidPages, totalPages)
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// All selects every page of a document with totalPages pages.
func All(totalPages int) []int {
	pages := make([]int, totalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// FirstN is shorthand for the range "1-n".
func FirstN(n, totalPages int) ([]int, error) {
	return Parse(fmt.Sprintf("1-%d", n), totalPages)
}

// IsContiguous reports whether an ascending page list has no gaps. Contiguous
// selections can be rasterized with a single renderer invocation.
func IsContiguous(pages []int) bool {
	for i := 1; i < len(pages); i++ {
		if pages[i] != pages[i-1]+1 {
			return false
		}
	}
	return true
}
