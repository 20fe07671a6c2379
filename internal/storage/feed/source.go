package feed

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

var (
	_ catalog.Source = (*HTTPSource)(nil)
	_ catalog.Source = (*FileSource)(nil)
)

// HTTPSource fetches the pricing document from a URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource returns an HTTPSource. A nil client gets an instrumented
// client with the given timeout.
func NewHTTPSource(url string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSource{url: url, client: client}
}

// Fetch requests the document. Any status other than 2xx is a FetchError.
func (s *HTTPSource) Fetch(ctx context.Context) (catalog.Pricing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &catalog.FetchError{Source: s.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &catalog.FetchError{Source: s.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &catalog.FetchError{Source: s.url, Status: resp.StatusCode}
	}

	pricing, err := Parse(resp.Body)
	if err != nil {
		return nil, &catalog.ParseError{Source: s.url, Err: err}
	}
	return pricing, nil
}

// FileSource reads the pricing document from disk. Files ending in ".gz"
// are decompressed.
type FileSource struct {
	path string
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads and parses the file on every call.
func (s *FileSource) Fetch(ctx context.Context) (catalog.Pricing, error) {
	if err := ctx.Err(); err != nil {
		return nil, &catalog.FetchError{Source: s.path, Err: err}
	}
	rc, err := Open(s.path)
	if err != nil {
		return nil, &catalog.FetchError{Source: s.path, Err: err}
	}
	defer func() { _ = rc.Close() }()

	pricing, err := Parse(rc)
	if err != nil {
		return nil, &catalog.ParseError{Source: s.path, Err: err}
	}
	return pricing, nil
}

// Open opens a feed file, transparently decompressing gzip.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}
