package services

import (
	"context"
	"iter"
	"sync"

	"github.com/desertthunder/spx/internal/models"
)

// PageFetcher retrieves the page of a collection starting at offset.
type PageFetcher[T any] interface {
	Fetch(ctx context.Context, offset int) (models.Page[T], error)
}

// FetchFunc adapts a function to [PageFetcher].
type FetchFunc[T any] func(ctx context.Context, offset int) (models.Page[T], error)

func (f FetchFunc[T]) Fetch(ctx context.Context, offset int) (models.Page[T], error) {
	return f(ctx, offset)
}

// Paginator walks an offset/total collection one page at a time.
//
// The offset advances by the number of raw items the service returned, so short pages and items
// dropped during conversion are tolerated. Iteration ends once the offset reaches the reported
// total or the service returns an empty window.
type Paginator[T any] struct {
	pageSize int
	fetcher  PageFetcher[T]

	mu     sync.Mutex
	offset int
	total  int
	done   bool
}

// NewPaginator creates a paginator positioned at the start of the collection.
func NewPaginator[T any](pageSize int, fetcher PageFetcher[T]) *Paginator[T] {
	return &Paginator[T]{pageSize: pageSize, fetcher: fetcher}
}

// NextPage fetches the page at the current offset and advances past it.
// At the end of the collection it returns nil without fetching.
func (p *Paginator[T]) NextPage(ctx context.Context) ([]T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return nil, nil
	}

	page, err := p.fetcher.Fetch(ctx, p.offset)
	if err != nil {
		return nil, err
	}

	p.offset += page.Count()
	p.total = page.Total
	if page.Count() == 0 || p.offset >= p.total {
		p.done = true
	}
	return page.Items, nil
}

// AtEnd reports whether the collection has been exhausted.
func (p *Paginator[T]) AtEnd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Reset rewinds to the start of the collection.
func (p *Paginator[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset, p.total, p.done = 0, 0, false
}

func (p *Paginator[T]) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Total is the collection size reported by the most recent page.
func (p *Paginator[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *Paginator[T]) PageSize() int {
	return p.pageSize
}

// All yields every item from the start of the collection, fetching lazily.
//
// Each call starts a fresh walk independent of [Paginator.NextPage]. Stopping early stops further fetches.
// A fetch error is yielded once and ends the sequence.
func (p *Paginator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		walk := NewPaginator(p.pageSize, p.fetcher)
		for !walk.AtEnd() {
			items, err := walk.NextPage(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect gathers at most limit items from the start of the collection; a limit of 0 or less gathers all.
func (p *Paginator[T]) Collect(ctx context.Context, limit int) ([]T, error) {
	var out []T
	for item, err := range p.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
