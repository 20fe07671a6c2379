package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Catalog source kinds.
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Config holds the complete storefront configuration, loadable from
// environment variables (PETSHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (PETSHOP_DATABASE_URL or DATABASE_URL); enables the order trail" flag:"database-url"`
	Locale        string `default:"id-ID" usage:"Locale used for price grouping"`
	SecureCookies bool   `default:"false" usage:"Mark cookies Secure (serve behind TLS)" flag:"secure-cookies"`
	Store         StoreConfig
	Catalog       CatalogConfig
	Banner        BannerConfig
	Checkout      CheckoutConfig
	Session       SessionConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// StoreConfig is the shop identity shown on the page and in order messages.
type StoreConfig struct {
	Name           string   `default:"ApparelZx" usage:"Store name"`
	Tagline        string   `default:"Premium Roblox Pets" usage:"Store tagline"`
	Game           string   `default:"Grow A Garden" usage:"Game the pets belong to"`
	PaymentMethods []string `default:"Cash,DANA,GoPay,OVO,Bank Transfer" usage:"Accepted payment methods" flag:"payment-methods"`
}

// CatalogConfig selects and tunes the pricing source.
type CatalogConfig struct {
	Source          string        `default:"file" usage:"Pricing source: file, http or postgres"`
	File            string        `default:"harga.json" usage:"Pricing file, optionally .gz" flag:"catalog-file"`
	URL             string        `usage:"Pricing document URL" flag:"catalog-url"`
	Timeout         time.Duration `default:"10s" usage:"HTTP fetch timeout" flag:"catalog-timeout"`
	RefreshInterval time.Duration `default:"30s" usage:"Catalog reload interval" flag:"refresh-interval"`
	MaxAge          time.Duration `default:"5m" usage:"Readiness fails when the catalog is older than this" flag:"catalog-max-age"`
}

// BannerConfig controls the hero slides.
type BannerConfig struct {
	File     string        `usage:"YAML slide list; built-in slides when empty" flag:"banner-file"`
	Interval time.Duration `default:"4s" usage:"Slide rotation interval" flag:"banner-interval"`
}

// CheckoutConfig points the order handoff at the messaging app.
type CheckoutConfig struct {
	Host         string        `default:"wa.me" usage:"Messaging deep link host" flag:"checkout-host"`
	Recipient    string        `default:"6285608790822" usage:"Messaging recipient id" flag:"checkout-recipient"`
	TemplateFile string        `usage:"text/template file for the order message" flag:"checkout-template"`
	NoticeTTL    time.Duration `default:"3s" usage:"How long the confirmation notice stays" flag:"notice-ttl"`
}

// SessionConfig controls order session expiry.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle order sessions are discarded after this" flag:"session-ttl"`
	SweepInterval time.Duration `default:"1m" usage:"Session sweep interval" flag:"session-sweep-interval"`
}

// RateLimitConfig controls the per-visitor limiter on order endpoints.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max order requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls CORS on the JSON catalog.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
	MaxAge  int      `default:"600" usage:"Preflight cache lifetime in seconds" flag:"cors-max-age"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PETSHOP",
		Files:     []string{"config.yaml", "/etc/petshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.File == "" {
			return errors.New("catalog file is required for the file source")
		}
	case SourceHTTP:
		if c.Catalog.URL == "" {
			return errors.New("catalog URL is required for the http source: set PETSHOP_CATALOG_URL")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres source: set PETSHOP_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if len(c.Store.PaymentMethods) == 0 {
		return errors.New("at least one payment method is required")
	}
	if c.Checkout.Host == "" || c.Checkout.Recipient == "" {
		return errors.New("checkout host and recipient are required")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// PETSHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
