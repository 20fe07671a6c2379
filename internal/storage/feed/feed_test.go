package feed

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

const sampleFeed = `{
	"Kitsune": {"price": 50000, "stock": 3},
	"Raccon": {"price": "ask", "stock": 2},
	"Trex": {"stock": 1.9},
	"Spino": 42,
	"Unicorn": {"price": 1, "stock": 1, "rarity": ["mythic"]}
}`

func TestParse(t *testing.T) {
	pricing, err := Parse(strings.NewReader(sampleFeed))
	require.NoError(t, err)

	k := pricing["Kitsune"]
	require.NotNil(t, k.Price)
	require.NotNil(t, k.Stock)
	assert.True(t, decimal.NewFromInt(50000).Equal(*k.Price))
	assert.Equal(t, int64(3), *k.Stock)

	r := pricing["Raccon"]
	assert.Nil(t, r.Price, "string price is dropped")
	require.NotNil(t, r.Stock)

	tr := pricing["Trex"]
	assert.Nil(t, tr.Price)
	require.NotNil(t, tr.Stock)
	assert.Equal(t, int64(1), *tr.Stock)

	_, ok := pricing["Spino"]
	assert.False(t, ok, "non-object value is treated as absent")

	_, ok = pricing["Unicorn"]
	assert.True(t, ok, "unknown names are kept for the loader to ignore")
}

func TestParse_Bounds(t *testing.T) {
	pricing, err := Parse(strings.NewReader(`{
		"Kitsune": {"price": 999999999999.99, "stock": 9223372036854775807},
		"Trex": {"price": 10, "stock": -1e20}
	}
`))
	require.NoError(t, err)

	k := pricing["Kitsune"]
	require.NotNil(t, k.Price)
	require.NotNil(t, k.Stock)
	assert.Equal(t, "999999999999.99", k.Price.String())
	assert.Equal(t, int64(9223372036854775807), *k.Stock)

	tr := pricing["Trex"]
	require.NotNil(t, tr.Stock)
	assert.Equal(t, int64(0), *tr.Stock, "negative stock clamps to zero")

	entries := catalog.Merge(pricing)
	e, err := catalog.Find(entries, "Trex")
	require.NoError(t, err)
	assert.False(t, e.Orderable())
}

func TestParse_Malformed(t *testing.T) {
	for _, payload := range []string{
		`[]`,
		`"text"`,
		`{"Kitsune": {"price": 5`,
		``,
		`{"Kitsune": {"price": 50000, "stock": 3}} garbage`,
		`{"Kitsune": {"price": 50000, "stock": 3}}}`,
		`{"Kitsune": {"price": 50000, "stock": 3}} {"x": 1}`,
		`{"Kitsune": {"price": 50000, "stock": 1e20}}`,
		`{"Kitsune": {"price": 1e12, "stock": 1}}`,
		`{"Kitsune": {"price": 1e19, "stock": 1}}`,
	} {
		_, err := Parse(strings.NewReader(payload))
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestHTTPSource(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Kitsune": {"price": 50000, "stock": 3}}`))
		}))
		defer srv.Close()

		pricing, err := NewHTTPSource(srv.URL, nil, time.Second).Fetch(context.Background())
		require.NoError(t, err)
		assert.Len(t, pricing, 1)
	})

	t.Run("non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewHTTPSource(srv.URL, nil, time.Second).Fetch(context.Background())
		var ferr *catalog.FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, http.StatusNotFound, ferr.Status)
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewHTTPSource(url, nil, time.Second).Fetch(context.Background())
		var ferr *catalog.FetchError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := NewHTTPSource(srv.URL, nil, time.Second).Fetch(context.Background())
		var perr *catalog.ParseError
		require.ErrorAs(t, err, &perr)
	})
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "harga.json")
	require.NoError(t, os.WriteFile(plain, []byte(sampleFeed), 0o600))

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleFeed))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	compressed := filepath.Join(dir, "harga.json.gz")
	require.NoError(t, os.WriteFile(compressed, buf.Bytes(), 0o600))

	for _, path := range []string{plain, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			pricing, err := NewFileSource(path).Fetch(context.Background())
			require.NoError(t, err)
			assert.Contains(t, pricing, catalog.ProductName("Kitsune"))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.json")).Fetch(context.Background())
		var ferr *catalog.FetchError
		require.ErrorAs(t, err, &ferr)
	})
}
