package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/index"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/loader"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/search"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http"
	httpH "github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http/handlers"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

type App struct {
	Log       *logger.Logger
	Cfg       Config
	Metrics   *observability.Metrics
	Catalogue *search.Service
	Store     *services.GraphStore
	Composer  *services.Composer
	Server    *http.Server

	clients      Clients
	shutdownOtel func(context.Context) error
}

// New wires the process. The catalogue load and the store connection check run
// concurrently; a store that does not answer leaves the adapter Disabled
// and never fails startup.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("app: logger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.NewMetrics()

	clients, err := wireClients(cfg, log)
	if err != nil {
		_ = shutdownOtel(context.Background())
		return nil, err
	}
	store := services.NewGraphStore(clients.Backend, log,
		services.WithTimeout(cfg.StoreTimeout),
		services.WithStoreMetrics(metrics),
	)

	var idx *index.Index
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idx, err = loadCatalogue(gctx, cfg, log)
		return err
	})
	g.Go(func() error {
		if clients.Backend == nil {
			log.Info("property store disabled by configuration")
			return nil
		}
		_ = store.Start(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		_ = store.Close(context.Background())
		clients.Close()
		_ = shutdownOtel(context.Background())
		return nil, err
	}

	var opts []search.Option
	opts = append(opts, search.WithMetrics(metrics))
	if clients.Cache != nil {
		opts = append(opts, search.WithCache(clients.Cache))
	}
	cat := search.NewService(idx, log, opts...)
	st := cat.Stats()
	metrics.SetCatalogue(st.Statements, st.ParseErrors, st.Courses)

	composer := services.NewComposer(cat, store, log, services.WithComposerMetrics(metrics))

	server := http.NewServer(http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      serviceName(cfg),
		CORSOrigins:      cfg.CORSOrigins,
		HealthHandler:    httpH.NewHealthHandler(cat, store, cfg.Version),
		CatalogueHandler: httpH.NewCatalogueHandler(log, cat),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Catalogue:    cat,
		Store:        store,
		Composer:     composer,
		Server:       server,
		clients:      clients,
		shutdownOtel: shutdownOtel,
	}, nil
}

func serviceName(cfg Config) string {
	if !cfg.Otel.Enabled {
		return ""
	}
	return cfg.Otel.ServiceName
}

// loadCatalogue reads the triple file and builds the index. A missing or
// unreadable file yields an empty, degraded catalogue; a parse failure under
// the abort policy or a cancelled context fails startup.
func loadCatalogue(ctx context.Context, cfg Config, log *logger.Logger) (*index.Index, error) {
	labels := vocabulary.LoadLabels(cfg.VocabularyPath, log)
	start := time.Now()
	fb, err := loader.Load(ctx, cfg.TriplesPath, loader.Options{Policy: cfg.ParsePolicy, Log: log})
	if err != nil {
		if faults.IsCode(err, faults.CodeLoad) && ctx.Err() == nil {
			log.Warn("catalogue unavailable; serving an empty catalogue", "path", cfg.TriplesPath, "error", err)
			fb = loader.Empty(cfg.TriplesPath, err)
		} else {
			return nil, fmt.Errorf("load catalogue: %w", err)
		}
	}
	idx := index.Build(fb, labels)
	log.Info("catalogue indexed",
		"entities", idx.EntityCount(),
		"statements", idx.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	a.clients.Close()
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown otel: %w", err))
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
