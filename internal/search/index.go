package search

import (
	"strings"
	"sync"
	"time"

	"github.com/baraholka/storefront/internal/models"
)

// Index builds a filtered view of the cached catalog from a debounced search
// term and an optional category facet. Every keystroke goes through SetTerm;
// only the last term still standing after the quiet window is committed to
// the filter. Recomputation is memoized on (catalog, term, category).
type Index struct {
	window time.Duration

	mu       sync.Mutex
	products []models.Product
	category string
	pending  string
	term     string
	timer    *time.Timer
	closed   bool

	memoValid bool
	memo      []models.Product

	onCommit func(term string)
}

func New(window time.Duration) *Index {
	return &Index{window: window}
}

// OnCommit registers an observer called after a term settles. One observer;
// later calls replace earlier ones.
func (i *Index) OnCommit(fn func(term string)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onCommit = fn
}

// SetProducts replaces the source collection. The slice is treated as
// read-only and is never mutated by the filter.
func (i *Index) SetProducts(products []models.Product) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.products = products
	i.memoValid = false
}

func (i *Index) SetCategory(category string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.category == category {
		return
	}
	i.category = category
	i.memoValid = false
}

// SetTerm records a keystroke. The filter only sees it if no further input
// arrives within the debounce window; intermediate terms are discarded.
func (i *Index) SetTerm(raw string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.pending = raw
	if i.timer == nil {
		i.timer = time.AfterFunc(i.window, i.commit)
	} else {
		i.timer.Reset(i.window)
	}
}

func (i *Index) commit() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.timer = nil
	if i.term != i.pending {
		i.term = i.pending
		i.memoValid = false
	}
	term := i.term
	fn := i.onCommit
	i.mu.Unlock()

	if fn != nil {
		fn(term)
	}
}

// Term returns the committed (settled) term, not the pending keystrokes.
func (i *Index) Term() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.term
}

// Results returns the filtered view, recomputing only when the source
// collection, the committed term, or the facet changed since the last call.
func (i *Index) Results() []models.Product {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.memoValid {
		return i.memo
	}

	needle := strings.ToLower(i.term)
	out := make([]models.Product, 0, len(i.products))
	for _, p := range i.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Title), needle) {
			continue
		}
		if i.category != "" && p.Category != i.category {
			continue
		}
		out = append(out, p)
	}
	i.memo = out
	i.memoValid = true
	return i.memo
}

// Close cancels any armed debounce timer. Terms set afterwards are ignored.
func (i *Index) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}
