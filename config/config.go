package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/cache"
	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/observe"
	"github.com/jonwraymond/storefront/resilience"
	"github.com/jonwraymond/storefront/secret"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the whole client configuration.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Cache   CacheConfig    `yaml:"cache"`
	Cart    CartConfig     `yaml:"cart"`
	Session SessionConfig  `yaml:"session"`
	Storage StorageConfig  `yaml:"storage"`
	Observe observe.Config `yaml:"observe"`
}

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	RateLimit     float64       `yaml:"rate_limit"` // requests per second, 0 = off
	RateBurst     int           `yaml:"rate_burst"`
	Retries       int           `yaml:"retries"` // extra attempts for reads
	Token         string        `yaml:"token"`   // static bearer token for scripts
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	KeepUnusedFor    time.Duration `yaml:"keep_unused_for"`
	MaxKeepUnusedFor time.Duration `yaml:"max_keep_unused_for"`
}

// CartConfig configures pricing and quantity handling.
type CartConfig struct {
	QuantityPolicy   string `yaml:"quantity_policy"` // clamp|strict
	FreeShippingOver string `yaml:"free_shipping_over"`
	ShippingFee      string `yaml:"shipping_fee"`
	TaxRate          string `yaml:"tax_rate"`
}

// SessionConfig configures the signed-in session.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// StorageConfig configures durable client storage.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite|memory
	Path   string `yaml:"path"`   // sqlite file; empty = user config dir
}

// Default returns the default configuration.
func Default() Config {
	pricing := cart.DefaultPricing()
	policy := cache.DefaultPolicy()
	return Config{
		API: APIConfig{
			BaseURL:       "http://localhost:5000/api",
			Timeout:       resilience.DefaultTimeout,
			MaxConcurrent: resilience.DefaultMaxConcurrent,
			RateBurst:     10,
		},
		Cache: CacheConfig{
			KeepUnusedFor:    policy.KeepUnusedFor,
			MaxKeepUnusedFor: policy.MaxKeepUnusedFor,
		},
		Cart: CartConfig{
			QuantityPolicy:   cart.QuantityClamp.String(),
			FreeShippingOver: cart.FormatAmount(pricing.FreeShippingOver),
			ShippingFee:      cart.FormatAmount(pricing.ShippingFee),
			TaxRate:          pricing.TaxRate.String(),
		},
		Session: SessionConfig{TTL: 30 * 24 * time.Hour},
		Storage: StorageConfig{Driver: DriverSQLite},
		Observe: observe.Config{
			ServiceName: "storefront",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "warn"},
		},
	}
}

// Load reads the YAML file at path on top of Default(). A missing file is
// not an error. Secret references resolve files relative to path's
// directory.
func Load(ctx context.Context, path string) (Config, error) {
	resolver := secret.NewResolver(secret.FileProvider{Dir: filepath.Dir(path)})
	return LoadWith(ctx, path, resolver)
}

// LoadWith is Load with a caller-supplied resolver.
func LoadWith(ctx context.Context, path string, resolver *secret.Resolver) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := Parse(ctx, data, resolver, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg after resolving every scalar value.
// Unknown keys are rejected.
func Parse(ctx context.Context, data []byte, resolver *secret.Resolver, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if root.Kind == 0 {
		return nil
	}
	if err := resolveNode(ctx, &root, resolver); err != nil {
		return err
	}

	resolved, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(resolved))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// resolveNode expands values, never mapping keys.
func resolveNode(ctx context.Context, n *yaml.Node, r *secret.Resolver) error {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := resolveNode(ctx, c, r); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if err := resolveNode(ctx, n.Content[i], r); err != nil {
				return fmt.Errorf("%s: %w", n.Content[i-1].Value, err)
			}
		}
	case yaml.ScalarNode:
		if n.Tag != "!!str" {
			return nil
		}
		out, err := r.Resolve(ctx, n.Value)
		if err != nil {
			return err
		}
		if out != n.Value {
			n.Value = out
			// Let the resolved text be typed again, e.g. "${TIMEOUT}" -> 10s.
			n.Tag = ""
			n.Style = 0
		}
	}
	return nil
}

// Save writes cfg to path as YAML.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if err := c.APIClient().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("api.retries must not be negative"))
	}
	if c.Cache.KeepUnusedFor < 0 || c.Cache.MaxKeepUnusedFor < 0 {
		errs = append(errs, errors.New("cache windows must not be negative"))
	}
	if _, err := cart.ParseQuantityPolicy(c.Cart.QuantityPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Pricing(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if !slices.Contains([]string{DriverSQLite, DriverMemory}, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver %q is not sqlite or memory", c.Storage.Driver))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// APIClient returns the api.Config for c.
func (c Config) APIClient() api.Config {
	return api.Config{
		BaseURL:       c.API.BaseURL,
		Timeout:       c.API.Timeout,
		MaxConcurrent: c.API.MaxConcurrent,
		RateLimit:     c.API.RateLimit,
		RateBurst:     c.API.RateBurst,
	}
}

// CachePolicy returns the cache policy for c.
func (c Config) CachePolicy() cache.Policy {
	return cache.Policy{
		KeepUnusedFor:    c.Cache.KeepUnusedFor,
		MaxKeepUnusedFor: c.Cache.MaxKeepUnusedFor,
	}
}

// QuantityPolicy returns the configured cart quantity policy.
func (c Config) QuantityPolicy() cart.QuantityPolicy {
	p, err := cart.ParseQuantityPolicy(c.Cart.QuantityPolicy)
	if err != nil {
		return cart.QuantityClamp
	}
	return p
}

// Pricing parses the cart pricing section.
func (c Config) Pricing() (cart.Pricing, error) {
	def := cart.DefaultPricing()
	threshold, err := amount("cart.free_shipping_over", c.Cart.FreeShippingOver, def.FreeShippingOver)
	if err != nil {
		return cart.Pricing{}, err
	}
	fee, err := amount("cart.shipping_fee", c.Cart.ShippingFee, def.ShippingFee)
	if err != nil {
		return cart.Pricing{}, err
	}
	rate, err := amount("cart.tax_rate", c.Cart.TaxRate, def.TaxRate)
	if err != nil {
		return cart.Pricing{}, err
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return cart.Pricing{}, fmt.Errorf("cart.tax_rate %s is above 1", rate)
	}
	return cart.Pricing{FreeShippingOver: threshold, ShippingFee: fee, TaxRate: rate}, nil
}

func amount(name, s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative", name)
	}
	return d, nil
}

// Retry returns the read retry for c, or nil when retries are off. Only
// transport failures and 5xx responses are retried.
func (c Config) Retry() *resilience.Retry {
	if c.API.Retries <= 0 {
		return nil
	}
	return resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: c.API.Retries + 1,
		Jitter:      true,
		RetryIf: func(err error) bool {
			return api.IsTransport(err) || api.StatusCode(err) >= 500
		},
	})
}

// StoragePath returns the SQLite path, defaulting to the user config dir.
func (c Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(dir, "storefront", "state.db"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "storefront.yaml"
	}
	return filepath.Join(dir, "storefront", "config.yaml")
}
