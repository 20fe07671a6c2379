package app

import (
	"cmp"
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/petshop-storefront/internal/domain/banner"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/checkout"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/format"
	"github.com/xenking/petshop-storefront/internal/storage/feed"
	"github.com/xenking/petshop-storefront/internal/storage/postgres"
	"github.com/xenking/petshop-storefront/internal/web"
	"github.com/xenking/petshop-storefront/pkg/health"
	"github.com/xenking/petshop-storefront/pkg/httpmiddleware"
	"github.com/xenking/petshop-storefront/pkg/schedule"
)

// Run creates all dependencies, starts the scheduler and the HTTP server,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog_source", cfg.Catalog.Source),
	)
	tp, mp := m.TracerProvider(), m.MeterProvider()

	// PostgreSQL is optional unless it is the catalog source.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		if pool, err = postgres.NewPool(ctx, cfg.DatabaseURL); err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
	}

	source, err := newSource(cfg, pool)
	if err != nil {
		return err
	}
	loader, err := catalog.NewLoader(source, lg.Named("catalog"), tp, mp)
	if err != nil {
		return errors.Wrap(err, "create catalog loader")
	}

	// Domain services.
	f := format.New(cfg.Locale)
	sessions := order.NewSessions(cfg.Session.TTL)
	notices := checkout.NewNotices()

	var recorder checkout.Recorder
	if pool != nil {
		recorder = postgres.NewOrderRecorder(pool)
	}
	msgTemplate, err := readOptional(cfg.Checkout.TemplateFile)
	if err != nil {
		return errors.Wrap(err, "read checkout template")
	}
	dispatcher, err := checkout.NewDispatcher(checkout.Config{
		Host:      cfg.Checkout.Host,
		Recipient: cfg.Checkout.Recipient,
		Store:     cfg.Store.Name,
		Tagline:   cfg.Store.Tagline,
		Game:      cfg.Store.Game,
		Template:  msgTemplate,
		NoticeTTL: cfg.Checkout.NoticeTTL,
	}, f, sessions, notices, recorder, lg.Named("checkout"), mp)
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}

	slides, err := banner.Load(cfg.Banner.File)
	if err != nil {
		return errors.Wrap(err, "load banner")
	}
	rotator := banner.NewRotator(slides)

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: httpmiddleware.CookieKey(web.VisitorCookie),
	})

	// Health checks.
	healthSvc := health.New()
	healthSvc.Add("catalog", health.Readiness, loader.Check)
	healthSvc.Add("catalog_freshness", health.Readiness,
		health.FreshnessCheck("catalog", cfg.Catalog.MaxAge, lastReady(loader), time.Now),
	)
	if pool != nil {
		healthSvc.Add("postgres", health.Readiness, postgres.Ping(pool), health.WithTimeout(5*time.Second))
	}
	healthSvc.Add("goroutines", health.Liveness, health.GoroutineCountCheck(10000), health.WithTimeout(time.Second))

	// Periodic work.
	sched := schedule.New(lg.Named("schedule"))
	sched.Add(schedule.Task{
		Name:      "catalog.refresh",
		Interval:  cfg.Catalog.RefreshInterval,
		Immediate: true,
		Overlap:   true,
		Run: func(ctx context.Context, _ time.Time) {
			// Failures are logged by the loader and shown as the error state.
			_, _ = loader.Load(ctx)
		},
	})
	sched.Add(schedule.Task{
		Name:     "banner.advance",
		Interval: cfg.Banner.Interval,
		Run: func(context.Context, time.Time) {
			rotator.Advance()
		},
	})
	sched.Add(schedule.Task{
		Name:     "sessions.sweep",
		Interval: cfg.Session.SweepInterval,
		Run: func(_ context.Context, now time.Time) {
			if n := sessions.Sweep(now); n > 0 {
				lg.Debug("Expired order sessions", zap.Int("count", n))
			}
		},
	})
	sched.Add(schedule.Task{
		Name:     "notices.sweep",
		Interval: cmp.Or(cfg.Checkout.NoticeTTL, checkout.DefaultNoticeTTL),
		Run: func(_ context.Context, now time.Time) {
			notices.Sweep(now)
		},
	})
	if cfg.RateLimit.Max > 0 && cfg.RateLimit.Window > 0 {
		sched.Add(schedule.Task{
			Name:     "ratelimit.sweep",
			Interval: 2 * cfg.RateLimit.Window,
			Run: func(_ context.Context, now time.Time) {
				limiter.Sweep(now)
			},
		})
	}
	sched.Add(healthSvc.Task(10 * time.Second))

	// HTTP.
	site, err := web.New(web.Options{
		Store:           cfg.Store.Name,
		Tagline:         cfg.Store.Tagline,
		PaymentMethods:  cfg.Store.PaymentMethods,
		RefreshInterval: cfg.Catalog.RefreshInterval,
		BannerInterval:  cfg.Banner.Interval,
		CORS: httpmiddleware.CORSConfig{
			AllowOrigins: cfg.CORS.Origins,
			MaxAge:       cfg.CORS.MaxAge,
		},
		SecureCookies: cfg.SecureCookies,
	}, web.Deps{
		Catalog:        loader,
		Sessions:       sessions,
		Checkout:       dispatcher,
		Notices:        notices,
		Banner:         rotator,
		Formatter:      f,
		Probes:         healthSvc,
		Limiter:        limiter,
		Logger:         lg,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
	if err != nil {
		return errors.Wrap(err, "create web server")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           site.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: stop advertising readiness, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	healthSvc.SetReady(true)

	return g.Wait()
}

func newSource(cfg *Config, pool *pgxpool.Pool) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case SourceHTTP:
		return feed.NewHTTPSource(cfg.Catalog.URL, nil, cfg.Catalog.Timeout), nil
	case SourcePostgres:
		if pool == nil {
			return nil, errors.New("postgres catalog source requires a database URL")
		}
		return postgres.NewCatalogSource(pool), nil
	case SourceFile:
		return feed.NewFileSource(cfg.Catalog.File), nil
	default:
		return nil, errors.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// lastReady reports when the catalog last loaded successfully, or zero.
func lastReady(l *catalog.Loader) func() time.Time {
	return func() time.Time {
		if s := l.Snapshot(); s.State == catalog.StateReady {
			return s.UpdatedAt
		}
		return time.Time{}
	}
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
