package catalog

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// Filterer runs one product list query.
type Filterer interface {
	Filter(ctx context.Context, q, category string) []domain.Product
}

// FeedResult is one product list result tagged with the request generation
// that produced it.
type FeedResult struct {
	Generation uint64           `json:"generation"`
	Query      string           `json:"query"`
	Category   string           `json:"category"`
	Products   []domain.Product `json:"products"`
}

// Feed is the product list of one browsing session. Each request takes a new
// generation; a result is committed only if no newer generation has been
// committed, so a slow older query never replaces a newer result.
type Feed struct {
	src Filterer

	mu        sync.Mutex
	issued    uint64
	committed FeedResult
}

func NewFeed(src Filterer) *Feed {
	return &Feed{
		src:       src,
		committed: FeedResult{Products: []domain.Product{}},
	}
}

// Request runs a query and returns its result. superseded is true when a
// newer generation was committed first and this result was discarded.
func (f *Feed) Request(ctx context.Context, q, category string) (res FeedResult, superseded bool) {
	f.mu.Lock()
	f.issued++
	gen := f.issued
	f.mu.Unlock()

	res = FeedResult{Generation: gen, Query: q, Category: category, Products: f.src.Filter(ctx, q, category)}

	f.mu.Lock()
	if gen <= f.committed.Generation {
		f.mu.Unlock()
		return res, true
	}
	f.committed = res
	f.mu.Unlock()
	return res, false
}
