package web

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

// handleCatalogAPI serves the snapshot as JSON. Prices without a numeric
// value are encoded as the string "Contact".
func (s *Server) handleCatalogAPI(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Catalog.Snapshot()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(string(snap.State)) })
		if !snap.UpdatedAt.IsZero() {
			e.Field("updatedAt", func(e *jx.Encoder) { e.Str(snap.UpdatedAt.UTC().Format(time.RFC3339)) })
		}
		e.Field("entries", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, entry := range snap.Entries {
					encodeEntry(e, entry)
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(e.Bytes())
}

func encodeEntry(e *jx.Encoder, entry catalog.Entry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(string(entry.Name)) })
		e.Field("price", func(e *jx.Encoder) {
			if amount, ok := entry.Price.Amount(); ok {
				e.Num(jx.Num(amount.String()))
				return
			}
			e.Str(PriceContact)
		})
		e.Field("stock", func(e *jx.Encoder) { e.Int(entry.Stock) })
		e.Field("image", func(e *jx.Encoder) { e.Str(entry.ImageURL) })
		e.Field("orderable", func(e *jx.Encoder) { e.Bool(entry.Orderable()) })
	})
}
