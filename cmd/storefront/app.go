package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/auth"
	"github.com/jonwraymond/storefront/cache"
	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/checkout"
	"github.com/jonwraymond/storefront/config"
	"github.com/jonwraymond/storefront/observe"
	"github.com/jonwraymond/storefront/storage"
)

// app holds everything one invocation is wired from.
type app struct {
	cfg      config.Config
	observer observe.Observer
	logger   observe.Logger
	store    storage.Storage
	closer   func() error
	session  *auth.Session
	cart     *cart.Store
	client   *api.Client
	flow     *checkout.Flow
}

func newApp(ctx context.Context, flags *globalFlags, retriesSet bool) (*app, error) {
	cfg, err := config.Load(ctx, flags.configPath)
	if err != nil {
		return nil, err
	}
	if retriesSet {
		cfg.API.Retries = flags.retries
	}
	if flags.verbose {
		cfg.Observe.Logging = observe.LoggingConfig{Enabled: true, Level: "debug"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, closer: func() error { return nil }}

	a.observer, err = observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.logger = a.observer.Logger()

	if err := a.openStorage(ctx); err != nil {
		_ = a.observer.Shutdown(ctx)
		return nil, err
	}

	a.session = auth.NewSession(a.store, auth.WithTTL(cfg.Session.TTL), auth.WithLogger(a.logger))
	if _, err := a.session.Restore(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	pricing, err := cfg.Pricing()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.cart = cart.NewStore(ctx, a.store,
		cart.WithPolicy(cfg.QuantityPolicy()),
		cart.WithPricing(pricing),
		cart.WithLogger(a.logger),
		cart.WithMetrics(mw.Metrics()),
	)

	qc := cache.New(
		cache.WithPolicy(cfg.CachePolicy()),
		cache.WithLogger(a.logger),
		cache.WithMetrics(mw.Metrics()),
		cache.WithBaseContext(ctx),
	)
	a.client, err = api.New(cfg.APIClient(),
		api.WithCache(qc),
		api.WithMiddleware(mw),
		api.WithTokenSource(a.token),
		api.WithUnauthorized(a.session.HandleUnauthorized),
	)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if r := cfg.Retry(); r != nil {
		a.client = a.client.WithRetry(r)
	}

	a.flow = checkout.New(a.cart, a.session, a.client, checkout.WithLogger(a.logger))
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	if a.cfg.Storage.Driver == config.DriverMemory {
		a.store = storage.NewMemory()
		return nil
	}

	path, err := a.cfg.StoragePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	a.store = db
	a.closer = db.Close
	return nil
}

// token prefers the signed-in session's token over a configured one.
func (a *app) token() string {
	if t := a.session.Token(); t != "" {
		return t
	}
	return strings.TrimSpace(a.cfg.API.Token)
}

// Close releases storage and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.client != nil {
		a.client.Cache().Reset()
	}
	if err := a.closer(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if a.observer != nil {
		if err := a.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
