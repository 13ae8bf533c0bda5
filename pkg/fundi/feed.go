package fundi

import (
	"context"
	"sync"
)

// PageFunc fetches one page of a list
type PageFunc[T any] func(ctx context.Context, page int) (*Page[T], error)

// Feed accumulates pages of a list for infinite scrolling. Only one load
// runs at a time; a load started while another is running is a no-op.
// A Reset discards any load still in flight.
type Feed[T any] struct {
	fetch PageFunc[T]

	mu         sync.Mutex
	items      []T
	page       int
	total      int
	hasMore    bool
	loading    bool
	generation int
	lastErr    error
}

// NewFeed creates an empty feed backed by fetch
func NewFeed[T any](fetch PageFunc[T]) *Feed[T] {
	return &Feed[T]{fetch: fetch, hasMore: true}
}

// LoadFirst discards what has been loaded and fetches page 1
func (f *Feed[T]) LoadFirst(ctx context.Context) error {
	f.Reset()
	_, err := f.load(ctx)
	return err
}

// LoadMore appends the next page. It reports whether anything was fetched.
func (f *Feed[T]) LoadMore(ctx context.Context) (bool, error) {
	return f.load(ctx)
}

func (f *Feed[T]) load(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.loading || !f.hasMore {
		f.mu.Unlock()
		return false, nil
	}
	f.loading = true
	next := f.page + 1
	gen := f.generation
	f.mu.Unlock()

	page, err := f.fetch(ctx, next)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return false, nil
	}
	f.loading = false
	if err != nil {
		f.lastErr = err
		return false, err
	}

	f.lastErr = nil
	f.page = next
	if page == nil {
		// nothing to add; treat it as the last page
		f.hasMore = false
		return true, nil
	}
	f.items = append(f.items, page.Data...)
	f.total = page.Total
	f.hasMore = page.HasMore() && len(page.Data) > 0
	return true, nil
}

// HasMore reports whether another page can be loaded
func (f *Feed[T]) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Loading reports whether a load is in flight
func (f *Feed[T]) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Items returns a copy of everything loaded so far
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

// Page returns the number of the last page loaded, 0 before the first load
func (f *Feed[T]) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// Total returns the server-reported total of the last page loaded
func (f *Feed[T]) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Err returns the error of the last load, if it failed
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Reset empties the feed
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.items = nil
	f.page = 0
	f.total = 0
	f.hasMore = true
	f.loading = false
	f.lastErr = nil
}
