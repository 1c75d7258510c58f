package feed

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformedPage marks a backend response that violates the page contract.
// It is treated like any other transient fetch failure.
var ErrMalformedPage = errors.New("malformed page")

// Page is one slice of results for a query.
type Page[T any] struct {
	Items    []T
	Number   int
	LastPage int
}

// Validate checks the page numbering invariants.
func (p Page[T]) Validate() error {
	if p.Number < 1 {
		return fmt.Errorf("%w: page number %d", ErrMalformedPage, p.Number)
	}
	if p.LastPage < 1 {
		return fmt.Errorf("%w: last page %d", ErrMalformedPage, p.LastPage)
	}
	if p.Number > p.LastPage {
		return fmt.Errorf("%w: page %d beyond last page %d", ErrMalformedPage, p.Number, p.LastPage)
	}
	return nil
}

// Fetcher loads a single page of results for a search string. Implementations
// must be free of side effects; the controller may call them again for the
// same arguments after a refresh.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, query string, page int) (Page[T], error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, query string, page int) (Page[T], error)

// FetchPage implements Fetcher.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, query string, page int) (Page[T], error) {
	return f(ctx, query, page)
}
