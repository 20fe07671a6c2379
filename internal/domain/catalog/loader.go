package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is the display state of the catalog region.
type State string

const (
	StateLoading State = "loading"
	StateError   State = "error"
	StateReady   State = "ready"
)

// Snapshot is the most recent outcome of a load. Entries is only set when
// State is StateReady.
type Snapshot struct {
	State     State
	Entries   []Entry
	UpdatedAt time.Time
}

// Loader merges the static metadata with a Source and owns the display state.
// Every Load fully replaces the previous snapshot; concurrent loads are not
// cancelled and the one that finishes last wins.
type Loader struct {
	source Source
	lg     *zap.Logger
	tracer trace.Tracer
	loads  metric.Int64Counter
	now    func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewLoader creates a Loader in the loading state.
func NewLoader(source Source, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider) (*Loader, error) {
	loads, err := mp.Meter("petshop/catalog").Int64Counter("catalog.loads",
		metric.WithDescription("Catalog load attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create loads counter")
	}
	return &Loader{
		source: source,
		lg:     lg,
		tracer: tp.Tracer("petshop/catalog"),
		loads:  loads,
		now:    time.Now,
		snap:   Snapshot{State: StateLoading},
	}, nil
}

// Load fetches the source and returns the merged entries in display order.
// On any failure the snapshot moves to StateError and no entries are
// returned; the error is a *FetchError or *ParseError when the source
// reports one.
func (l *Loader) Load(ctx context.Context) ([]Entry, error) {
	ctx, span := l.tracer.Start(ctx, "catalog.Load")
	defer span.End()

	l.set(Snapshot{State: StateLoading, UpdatedAt: l.now()})

	pricing, err := l.source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		l.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultOf(err))))
		l.lg.Error("Error loading pets", zap.Error(err))
		l.set(Snapshot{State: StateError, UpdatedAt: l.now()})
		return nil, err
	}

	entries := Merge(pricing)
	span.SetAttributes(attribute.Int("catalog.entries", len(entries)))
	l.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	l.set(Snapshot{State: StateReady, Entries: entries, UpdatedAt: l.now()})
	return entries, nil
}

// Snapshot returns the current display state.
func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Check is a health.CheckFunc reporting the last load failure.
func (l *Loader) Check(_ context.Context) error {
	if l.Snapshot().State == StateError {
		return errors.New("last catalog load failed")
	}
	return nil
}

func (l *Loader) set(s Snapshot) {
	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
}

func resultOf(err error) string {
	var perr *ParseError
	if errors.As(err, &perr) {
		return "parse_error"
	}
	return "fetch_error"
}

// Merge builds one entry per known product, in display order. Missing or
// non-positive prices become the sentinel; missing stock is zero.
func Merge(p Pricing) []Entry {
	entries := make([]Entry, 0, len(knownProducts))
	for _, meta := range knownProducts {
		e := Entry{
			Name:     meta.Name,
			Price:    Unavailable(),
			ImageURL: ImageURL(meta.Name),
		}
		if q, ok := p[meta.Name]; ok {
			if q.Price != nil && q.Price.IsPositive() {
				e.Price = PriceOf(*q.Price)
			}
			if q.Stock != nil && *q.Stock > 0 {
				e.Stock = int(*q.Stock)
			}
		}
		entries = append(entries, e)
	}
	return entries
}
