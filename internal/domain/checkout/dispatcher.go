// Package checkout hands a validated order off to an external messaging
// application through a deep link.
package checkout

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/format"
)

// DefaultTemplate is the order message sent to the shop.
const DefaultTemplate = `🛒 *New Order from {{.Store}}*

📦 *Pet:* {{.Pet}}
💰 *Price:* {{.UnitPrice}} each
📊 *Quantity:* {{.Quantity}}
💳 *Payment Method:* {{.PaymentMethod}}
💵 *Total:* {{.Total}}

*Store:* {{.Store}} - {{.Tagline}}
*Game:* {{.Game}}

Please confirm this order and provide payment instructions.

Thank you for choosing {{.Store}}! 🎮`

// SuccessNotice is queued for the visitor after every dispatch.
const SuccessNotice = "Order sent to WhatsApp successfully!"

// Config identifies the store and the messaging recipient.
type Config struct {
	Host      string
	Recipient string
	Store     string
	Tagline   string
	Game      string
	Template  string
	NoticeTTL time.Duration
}

// Record is an order that was handed off.
type Record struct {
	ID            string
	Visitor       string
	Product       catalog.ProductName
	UnitPrice     decimal.Decimal
	Quantity      int
	PaymentMethod string
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// Recorder keeps a trail of dispatched orders.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// SessionCloser discards a visitor's order session.
type SessionCloser interface {
	Close(visitor string)
}

// Dispatch is the outcome of a checkout handoff.
type Dispatch struct {
	ID      string
	URL     string
	Message string
	Total   decimal.Decimal
}

// messageData feeds the message template; amounts are preformatted.
type messageData struct {
	Store         string
	Tagline       string
	Game          string
	Pet           string
	UnitPrice     string
	Quantity      string
	PaymentMethod string
	Total         string
}

// Dispatcher formats orders and builds the outbound deep link.
type Dispatcher struct {
	cfg      Config
	tmpl     *template.Template
	fmt      *format.Formatter
	sessions SessionCloser
	notices  *Notices
	recorder Recorder
	lg       *zap.Logger
	sent     metric.Int64Counter
	now      func() time.Time
}

// NewDispatcher parses the message template. recorder may be nil.
func NewDispatcher(
	cfg Config,
	f *format.Formatter,
	sessions SessionCloser,
	notices *Notices,
	recorder Recorder,
	lg *zap.Logger,
	mp metric.MeterProvider,
) (*Dispatcher, error) {
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Host == "" || cfg.Recipient == "" {
		return nil, errors.New("messaging host and recipient are required")
	}
	tmpl, err := template.New("order").Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, errors.Wrap(err, "parse message template")
	}
	sent, err := mp.Meter("petshop/checkout").Int64Counter("checkout.dispatched",
		metric.WithDescription("Orders handed off to the messaging deep link"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create dispatched counter")
	}
	return &Dispatcher{
		cfg:      cfg,
		tmpl:     tmpl,
		fmt:      f,
		sessions: sessions,
		notices:  notices,
		recorder: recorder,
		lg:       lg,
		sent:     sent,
		now:      time.Now,
	}, nil
}

// Dispatch builds the order message and deep link for a validated session.
// The visitor's session is closed and a success notice queued whether or
// not the caller manages to open the link. Recording is best effort.
func (d *Dispatcher) Dispatch(ctx context.Context, visitor string, s order.Session, quantity int, paymentMethod string) (*Dispatch, error) {
	defer d.sessions.Close(visitor)

	total := s.Total(quantity)
	msg, err := d.Message(s, quantity, paymentMethod)
	if err != nil {
		return nil, err
	}

	out := &Dispatch{
		ID:      uuid.New().String(),
		URL:     d.Link(msg),
		Message: msg,
		Total:   total,
	}

	d.notices.Push(visitor, Notice{Message: SuccessNotice, Kind: NoticeSuccess}, d.cfg.NoticeTTL)
	d.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("product", string(s.PetName)),
		attribute.String("payment_method", paymentMethod),
	))

	if d.recorder != nil {
		rec := Record{
			ID:            out.ID,
			Visitor:       visitor,
			Product:       s.PetName,
			UnitPrice:     s.UnitPrice,
			Quantity:      quantity,
			PaymentMethod: paymentMethod,
			Total:         total,
			CreatedAt:     d.now(),
		}
		if err := d.recorder.Record(ctx, rec); err != nil {
			d.lg.Warn("Record dispatched order", zap.String("order_id", out.ID), zap.Error(err))
		}
	}
	return out, nil
}

// Message renders the order text.
func (d *Dispatcher) Message(s order.Session, quantity int, paymentMethod string) (string, error) {
	var b strings.Builder
	if err := d.tmpl.Execute(&b, messageData{
		Store:         d.cfg.Store,
		Tagline:       d.cfg.Tagline,
		Game:          d.cfg.Game,
		Pet:           string(s.PetName),
		UnitPrice:     d.fmt.Rupiah(s.UnitPrice),
		Quantity:      strconv.Itoa(quantity),
		PaymentMethod: paymentMethod,
		Total:         d.fmt.Rupiah(s.Total(quantity)),
	}); err != nil {
		return "", errors.Wrap(err, "render order message")
	}
	return b.String(), nil
}

// Link builds https://<host>/<recipient>?text=<message>.
func (d *Dispatcher) Link(message string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     d.cfg.Host,
		Path:     "/" + d.cfg.Recipient,
		RawQuery: "text=" + encodeComponent(message),
	}
	return u.String()
}

// encodeComponent percent-encodes s for a query value, using %20 for spaces.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
