package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var (
	//go:embed templates/*.html
	templatesFS embed.FS

	//go:embed assets
	assetsFS embed.FS
)

func parseTemplates() (*template.Template, error) {
	return template.New("storefront").ParseFS(templatesFS, "templates/*.html")
}

// render executes a named template into a buffer so a failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		zctx.From(r.Context()).Error("Render template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// back answers a plain form post by returning the visitor to the page.
func back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
