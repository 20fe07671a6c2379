package catalog

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownProduct is returned when a name is not part of the known set.
var ErrUnknownProduct = errors.New("unknown product")

// ProductName identifies a catalog item across all lookups.
type ProductName string

// PlaceholderImage is shown for products without a dedicated image.
const PlaceholderImage = "https://images.unsplash.com/photo-1425082661705-1834bfd09dca?ixlib=rb-4.0.3&w=400&h=400&fit=crop"

// knownProducts is the static metadata table. Order is display order.
var knownProducts = []struct {
	Name  ProductName
	Image string
}{
	{"Kitsune", "https://files.catbox.moe/oa39a4.jpg"},
	{"Raccon", "https://files.catbox.moe/8y5ejx.jpg"},
	{"Disco bee", "https://files.catbox.moe/lcbwtc.jpg"},
	{"Trex", "https://files.catbox.moe/gckkh4.jpg"},
	{"Corupt kitsune", "https://files.catbox.moe/s333ef.jpg"},
	{"Spino", "https://files.catbox.moe/dbkjwv.jpg"},
	{"Dragon fly", "https://files.catbox.moe/kc5npt.jpg"},
	{"Butter fly", "https://files.catbox.moe/r08r6w.jpg"},
	{"Mimic octopus", "https://files.catbox.moe/63nj50.jpg"},
	{"Queen bee", "https://files.catbox.moe/3xcyxl.jpg"},
	{"Red fox", "https://files.catbox.moe/723up5.jpg"},
	{"Femeck fox", "https://files.catbox.moe/p9yhvd.jpg"},
	{"Chikend zombie", "https://files.catbox.moe/a2j8u3.jpg"},
}

// KnownNames returns the fixed product set in display order.
func KnownNames() []ProductName {
	out := make([]ProductName, len(knownProducts))
	for i, p := range knownProducts {
		out[i] = p.Name
	}
	return out
}

// IsKnown reports whether name belongs to the fixed product set.
func IsKnown(name ProductName) bool {
	for _, p := range knownProducts {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ImageURL returns the image for name, or PlaceholderImage.
func ImageURL(name ProductName) string {
	for _, p := range knownProducts {
		if p.Name == name && p.Image != "" {
			return p.Image
		}
	}
	return PlaceholderImage
}

// Price is either a numeric amount or the "contact for price" sentinel.
// The zero value is the sentinel.
type Price struct {
	amount decimal.Decimal
	valid  bool
}

// PriceOf returns a numeric Price.
func PriceOf(amount decimal.Decimal) Price {
	return Price{amount: amount, valid: true}
}

// Unavailable returns the sentinel price.
func Unavailable() Price {
	return Price{}
}

// Amount returns the numeric amount and whether the price is numeric.
func (p Price) Amount() (decimal.Decimal, bool) {
	return p.amount, p.valid
}

// IsNumeric reports whether the price can be ordered at.
func (p Price) IsNumeric() bool {
	return p.valid
}

// Entry is a render-ready catalog item.
type Entry struct {
	Name     ProductName
	Price    Price
	Stock    int
	ImageURL string
}

// Orderable reports whether the entry can be ordered: it must be in stock
// and carry a numeric price.
func (e Entry) Orderable() bool {
	return e.Stock > 0 && e.Price.IsNumeric()
}

// Availability describes why an entry can or cannot be ordered.
type Availability string

const (
	// AvailabilityOrderable means the order action is enabled.
	AvailabilityOrderable Availability = "orderable"
	// AvailabilityOutOfStock takes precedence over AvailabilityContact.
	AvailabilityOutOfStock Availability = "out_of_stock"
	// AvailabilityContact means the price is the sentinel.
	AvailabilityContact Availability = "contact"
)

// Availability returns the availability reason for the entry.
func (e Entry) Availability() Availability {
	switch {
	case e.Stock <= 0:
		return AvailabilityOutOfStock
	case !e.Price.IsNumeric():
		return AvailabilityContact
	default:
		return AvailabilityOrderable
	}
}

// Find returns the entry with the given name.
func Find(entries []Entry, name ProductName) (Entry, error) {
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, ErrUnknownProduct
}
