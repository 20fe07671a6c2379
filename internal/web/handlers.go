package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/banner"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/domain/theme"
)

// DeeplinkEvent is the htmx event carrying the messaging link.
const DeeplinkEvent = "petshop:deeplink"

func (s *Server) page(r *http.Request, visitor string) pageData {
	p := themeOf(r)
	return pageData{
		Store:     s.opts.Store,
		Tagline:   s.opts.Tagline,
		Theme:     p,
		ThemeIcon: theme.Icon(p),
		Banner:    s.bannerView(),
		Grid:      s.gridView(),
		Notices:   noticeViews(s.deps.Notices.Take(visitor)),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorFromContext(r.Context())
	data := s.page(r, visitor)
	if sess, err := s.deps.Sessions.Get(visitor); err == nil {
		data.Order = s.orderView(sess, "", nil)
	}
	s.render(w, r, http.StatusOK, "base", data)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "grid", s.gridView())
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "banner", s.bannerView())
}

func (s *Server) handleSelectBanner(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid banner index", http.StatusBadRequest)
		return
	}
	if err := s.deps.Banner.Select(i); err != nil {
		if errors.Is(err, banner.ErrOutOfRange) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !isHTMX(r) {
		back(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "banner", s.bannerView())
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	setTheme(w, theme.Toggle(themeOf(r)), s.opts.SecureCookies)
	back(w, r)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	name := catalog.ProductName(raw)
	if !catalog.IsKnown(name) {
		http.Error(w, catalog.ErrUnknownProduct.Error(), http.StatusNotFound)
		return
	}

	// A known product missing from the snapshot means the catalog is not
	// ready, which is not orderable either.
	entry, err := catalog.Find(s.deps.Catalog.Snapshot().Entries, name)
	if err != nil {
		http.Error(w, order.ErrNotOrderable.Error(), http.StatusConflict)
		return
	}
	visitor := VisitorFromContext(r.Context())
	sess, err := s.deps.Sessions.Open(visitor, entry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.respondPanel(w, r, visitor, http.StatusOK, s.orderView(sess, "", nil))
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorFromContext(r.Context())
	sess, err := s.deps.Sessions.SetQuantity(visitor, r.PostFormValue("quantity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.render(w, r, http.StatusOK, "order_total", s.deps.Formatter.Rupiah(sess.PreviewTotal()))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitor := VisitorFromContext(ctx)
	quantity := r.PostFormValue("quantity")
	payment := r.PostFormValue("payment")

	sess, err := s.deps.Sessions.SetQuantity(visitor, quantity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	q, err := sess.Validate(quantity, payment, s.opts.PaymentMethods)
	if err != nil {
		var verr *order.ValidationErrors
		if !errors.As(err, &verr) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.countInvalid(r, verr)
		s.respondPanel(w, r, visitor, http.StatusUnprocessableEntity, s.orderView(sess, payment, verr))
		return
	}

	d, err := s.deps.Checkout.Dispatch(ctx, visitor, sess, q, payment)
	if err != nil {
		zctx.From(ctx).Error("Dispatch order", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	zctx.From(ctx).Info("Order dispatched",
		zap.String("order_id", d.ID),
		zap.String("product", string(sess.PetName)),
		zap.Int("quantity", q),
	)

	if !isHTMX(r) {
		http.Redirect(w, r, d.URL, http.StatusSeeOther)
		return
	}
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field(DeeplinkEvent, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("url", func(e *jx.Encoder) { e.Str(d.URL) })
			})
		})
	})
	w.Header().Set("HX-Trigger", e.String())
	s.render(w, r, http.StatusOK, "dispatched", noticeViews(s.deps.Notices.Take(visitor)))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.Close(VisitorFromContext(r.Context()))
	if !isHTMX(r) {
		back(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// respondPanel renders the order panel fragment for htmx, or the whole page
// with the panel open for plain form posts. A successful plain post is
// answered with a redirect so a reload does not resubmit.
func (s *Server) respondPanel(w http.ResponseWriter, r *http.Request, visitor string, status int, v *orderView) {
	if isHTMX(r) {
		s.render(w, r, status, "order_panel", v)
		return
	}
	if status == http.StatusOK {
		back(w, r)
		return
	}
	data := s.page(r, visitor)
	data.Order = v
	s.render(w, r, status, "base", data)
}

func (s *Server) countInvalid(r *http.Request, verr *order.ValidationErrors) {
	if verr.Quantity != nil {
		reason := "invalid"
		if errors.Is(verr.Quantity, order.ErrQuantityExceedsStock) {
			reason = "exceeds_stock"
		}
		s.invalid.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("field", "quantity"),
			attribute.String("reason", reason),
		))
	}
	if verr.Payment != nil {
		s.invalid.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("field", "payment"),
			attribute.String("reason", "missing"),
		))
	}
}
