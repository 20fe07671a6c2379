package web

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/petshop-storefront/internal/domain/banner"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/checkout"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/domain/theme"
	"github.com/xenking/petshop-storefront/internal/format"
)

// Action labels on the card button.
const (
	ActionOutOfStock = "Out of Stock"
	ActionContact    = "Contact for Price"
	ActionOrder      = "Order Now"
	// PriceContact replaces the price of entries without a numeric price.
	PriceContact = "Contact"
)

// Field messages shown under the order form.
const (
	msgInvalidQuantity = "Please enter a valid quantity"
	msgMissingPayment  = "Please select a payment method"
)

// Card is the display model of one catalog entry.
type Card struct {
	Name        catalog.ProductName
	ImageURL    string
	StockLabel  string
	InStock     bool
	PriceLabel  string
	Orderable   bool
	ActionLabel string
}

// Render maps entries to cards in the same order.
func Render(f *format.Formatter, entries []catalog.Entry) []Card {
	cards := make([]Card, 0, len(entries))
	for _, e := range entries {
		c := Card{
			Name:       e.Name,
			ImageURL:   e.ImageURL,
			StockLabel: "Stock: " + strconv.Itoa(e.Stock),
			InStock:    e.Stock > 0,
			PriceLabel: PriceContact,
			Orderable:  e.Orderable(),
		}
		if amount, ok := e.Price.Amount(); ok {
			c.PriceLabel = f.Rupiah(amount)
		}
		switch e.Availability() {
		case catalog.AvailabilityOutOfStock:
			c.ActionLabel = ActionOutOfStock
		case catalog.AvailabilityContact:
			c.ActionLabel = ActionContact
		default:
			c.ActionLabel = ActionOrder
		}
		cards = append(cards, c)
	}
	return cards
}

type gridView struct {
	State          catalog.State
	Cards          []Card
	RefreshSeconds int
}

type bannerView struct {
	Slides          []banner.Slide
	Current         int
	IntervalSeconds int
}

type paymentOption struct {
	Value   string
	Checked bool
}

type orderView struct {
	PetName       catalog.ProductName
	ImageURL      string
	UnitPrice     string
	Quantity      string
	Max           int
	Total         string
	Methods       []paymentOption
	QuantityError string
	PaymentError  string
}

type noticeView struct {
	Message   string
	Kind      checkout.NoticeKind
	ExpiresAt int64
}

type pageData struct {
	Store     string
	Tagline   string
	Theme     theme.Preference
	ThemeIcon string
	Banner    bannerView
	Grid      gridView
	Order     *orderView
	Notices   []noticeView
}

func (s *Server) gridView() gridView {
	snap := s.deps.Catalog.Snapshot()
	v := gridView{
		State:          snap.State,
		RefreshSeconds: seconds(s.opts.RefreshInterval),
	}
	if snap.State == catalog.StateReady {
		v.Cards = Render(s.deps.Formatter, snap.Entries)
	}
	return v
}

func (s *Server) bannerView() bannerView {
	return bannerView{
		Slides:          s.deps.Banner.Slides(),
		Current:         s.deps.Banner.Current(),
		IntervalSeconds: seconds(s.opts.BannerInterval),
	}
}

// orderView builds the panel for sess. payment is the currently selected
// method; verr may be nil.
func (s *Server) orderView(sess order.Session, payment string, verr *order.ValidationErrors) *orderView {
	v := &orderView{
		PetName:   sess.PetName,
		ImageURL:  sess.ImageURL,
		UnitPrice: s.deps.Formatter.Rupiah(sess.UnitPrice),
		Quantity:  sess.QuantityInput,
		Max:       sess.MaxQuantity(),
		Total:     s.deps.Formatter.Rupiah(sess.PreviewTotal()),
	}
	for _, m := range s.opts.PaymentMethods {
		v.Methods = append(v.Methods, paymentOption{Value: m, Checked: m == payment})
	}
	if verr != nil {
		v.QuantityError = quantityMessage(verr.Quantity)
		if verr.Payment != nil {
			v.PaymentError = msgMissingPayment
		}
	}
	return v
}

func quantityMessage(err error) string {
	if err == nil {
		return ""
	}
	var exceeds *order.QuantityExceedsStockError
	if errors.As(err, &exceeds) {
		return "Maximum available: " + strconv.Itoa(exceeds.Max)
	}
	return msgInvalidQuantity
}

func noticeViews(ns []checkout.Notice) []noticeView {
	out := make([]noticeView, 0, len(ns))
	for _, n := range ns {
		out = append(out, noticeView{
			Message:   n.Message,
			Kind:      n.Kind,
			ExpiresAt: n.ExpiresAt.UnixMilli(),
		})
	}
	return out
}

func seconds(d time.Duration) int {
	return max(int(d/time.Second), 1)
}
