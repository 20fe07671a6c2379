// Package web serves the storefront: the server-rendered page, its htmx
// partials, the order panel endpoints and a read-only JSON catalog.
package web

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/banner"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/checkout"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/format"
	"github.com/xenking/petshop-storefront/pkg/httpmiddleware"
)

// Catalog exposes the current catalog display state.
type Catalog interface {
	Snapshot() catalog.Snapshot
}

// Sessions stores one order session per visitor.
type Sessions interface {
	Open(visitor string, e catalog.Entry) (order.Session, error)
	Get(visitor string) (order.Session, error)
	SetQuantity(visitor, input string) (order.Session, error)
	Close(visitor string)
}

// Checkout hands a validated order to the messaging app.
type Checkout interface {
	Dispatch(ctx context.Context, visitor string, s order.Session, quantity int, paymentMethod string) (*checkout.Dispatch, error)
}

// Notices yields pending notices for a visitor, once.
type Notices interface {
	Take(visitor string) []checkout.Notice
}

// Banner is the rotating hero.
type Banner interface {
	Slides() []banner.Slide
	Current() int
	Select(i int) error
}

// Probes serves health endpoints.
type Probes interface {
	LiveEndpoint(w http.ResponseWriter, r *http.Request)
	ReadyEndpoint(w http.ResponseWriter, r *http.Request)
}

// Options are the presentation settings.
type Options struct {
	Store           string
	Tagline         string
	PaymentMethods  order.PaymentMethods
	RefreshInterval time.Duration
	BannerInterval  time.Duration
	CORS            httpmiddleware.CORSConfig
	SecureCookies   bool
}

// Deps are the collaborators the handlers call. Probes and Limiter are
// optional.
type Deps struct {
	Catalog   Catalog
	Sessions  Sessions
	Checkout  Checkout
	Notices   Notices
	Banner    Banner
	Formatter *format.Formatter
	Probes    Probes
	Limiter   *httpmiddleware.Limiter

	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Server holds parsed templates and dependencies.
type Server struct {
	opts    Options
	deps    Deps
	tmpl    *template.Template
	assets  fs.FS
	invalid metric.Int64Counter
}

// New parses the embedded templates.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MeterProvider == nil {
		deps.MeterProvider = metricnoop.NewMeterProvider()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, errors.Wrap(err, "assets")
	}
	invalid, err := deps.MeterProvider.Meter("petshop/web").Int64Counter("order.validation_failures",
		metric.WithDescription("Rejected order submissions by field"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create validation counter")
	}
	return &Server{
		opts:    opts,
		deps:    deps,
		tmpl:    tmpl,
		assets:  assets,
		invalid: invalid,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.StripSlashes,
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)

	if s.deps.Probes != nil {
		r.Get("/livez", s.deps.Probes.LiveEndpoint)
		r.Get("/readyz", s.deps.Probes.ReadyEndpoint)
	}
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets))))

	r.Route("/api", func(r chi.Router) {
		r.Use(httpmiddleware.CORS(s.opts.CORS))
		r.Get("/catalog", s.handleCatalogAPI)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5), withVisitor(s.opts.SecureCookies))

		r.Get("/", s.handleIndex)
		r.Get("/partials/grid", s.handleGrid)
		r.Get("/partials/banner", s.handleBanner)
		r.Post("/banner/{index}", s.handleSelectBanner)
		r.Post("/theme", s.handleTheme)

		r.Route("/order", func(r chi.Router) {
			if s.deps.Limiter != nil {
				r.Use(s.deps.Limiter.Middleware())
			}
			r.Post("/total", s.handleTotal)
			r.Post("/submit", s.handleSubmit)
			r.Post("/cancel", s.handleCancel)
			r.Post("/{name}", s.handleOpen)
		})
	})

	mws := []httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(s.deps.Logger),
		httpmiddleware.Recovery(),
	}
	if s.deps.TracerProvider != nil {
		mws = append([]httpmiddleware.Middleware{
			httpmiddleware.Instrument("storefront", s.deps.TracerProvider, s.deps.MeterProvider),
		}, mws...)
	}
	return httpmiddleware.Wrap(r, mws...)
}
