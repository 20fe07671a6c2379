// Package feed implements catalog sources backed by a JSON pricing document:
//
//	{"Kitsune": {"price": 50000, "stock": 3}, ...}
//
// Missing names or fields are not errors; they become the unavailable price
// and zero stock during merging.
package feed

import (
	"io"
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

// Bounds of the catalog_prices columns: NUMERIC(14, 2) and BIGINT.
var (
	maxPrice = decimal.New(1, 12)
	maxStock = decimal.NewFromInt(math.MaxInt64)
)

// Parse decodes a pricing document. A value that is not an object for a
// given name is treated as absent; a non-numeric price is dropped. Anything
// after the top-level object, or a number outside the stored range, fails
// the whole document.
func Parse(r io.Reader) (catalog.Pricing, error) {
	d := jx.Decode(r, 4096)
	if tt := d.Next(); tt != jx.Object {
		return nil, errors.Errorf("expected object, got %s", tt)
	}

	pricing := make(catalog.Pricing)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		q, err := parseQuote(d)
		if err != nil {
			return errors.Wrapf(err, "product %q", key)
		}
		pricing[catalog.ProductName(key)] = q
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode pricing")
	}
	switch err := d.Skip(); {
	case err == io.EOF:
	case err == nil:
		return nil, errors.New("unexpected trailing data")
	default:
		return nil, errors.Wrap(err, "unexpected trailing data")
	}
	return pricing, nil
}

func parseQuote(d *jx.Decoder) (catalog.Quote, error) {
	var q catalog.Quote
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "price":
			v, ok, err := number(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			if ok {
				if v.Abs().GreaterThanOrEqual(maxPrice) {
					return errors.Errorf("price %s out of range", v)
				}
				q.Price = &v
			}
		case "stock":
			v, ok, err := number(d)
			if err != nil {
				return errors.Wrap(err, "stock")
			}
			if ok {
				if v.GreaterThan(maxStock) {
					return errors.Errorf("stock %s out of range", v)
				}
				var n int64
				if v.IsPositive() {
					n = v.IntPart()
				}
				q.Stock = &n
			}
		default:
			return d.Skip()
		}
		return nil
	})
	return q, err
}

// number reads a JSON number as a decimal. Any other value type is skipped
// and reported as absent.
func number(d *jx.Decoder) (decimal.Decimal, bool, error) {
	if d.Next() != jx.Number {
		return decimal.Zero, false, d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, false, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false, err
	}
	return v, true, nil
}
