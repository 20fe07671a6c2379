package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quote is the per-product pricing record delivered by a Source. A nil Price
// means the feed carried no usable price; a nil Stock means no stock field.
type Quote struct {
	Price *decimal.Decimal
	Stock *int64
}

// Pricing maps product names to quotes. Names outside the known set are
// allowed and ignored by the Loader.
type Pricing map[ProductName]Quote

// Source fetches the current pricing dataset.
type Source interface {
	Fetch(ctx context.Context) (Pricing, error)
}

// FetchError is returned by a Source on transport failures or non-success
// responses.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch catalog from %s: unexpected status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetch catalog from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned by a Source when the payload is malformed.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse catalog from %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
