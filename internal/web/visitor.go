package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/petshop-storefront/internal/domain/theme"
)

const (
	// VisitorCookie identifies the browser that owns an order session.
	VisitorCookie = "petshop_visitor"
	// ThemeCookie persists the light/dark preference.
	ThemeCookie = "theme"

	cookieMaxAge = 365 * 24 * time.Hour
)

type visitorKey struct{}

// VisitorFromContext returns the visitor id set by the visitor middleware.
func VisitorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(visitorKey{}).(string)
	return v
}

// withVisitor assigns a visitor id cookie on first contact and exposes the id
// in the request context. Ids that are not UUIDs are replaced.
func withVisitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(VisitorCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				// Later cookie reads in this request (rate limiting) see the new id.
				r.AddCookie(&http.Cookie{Name: VisitorCookie, Value: id})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey{}, id)))
		})
	}
}

func themeOf(r *http.Request) theme.Preference {
	var stored string
	if c, err := r.Cookie(ThemeCookie); err == nil {
		stored = c.Value
	}
	return theme.Resolve(stored)
}

func setTheme(w http.ResponseWriter, p theme.Preference, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookie,
		Value:    string(p),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
