package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/api"
	"github.com/pkgdex/pkgdex/internal/bootstrap"
	"github.com/pkgdex/pkgdex/internal/config"
	"github.com/pkgdex/pkgdex/internal/database"
	"github.com/pkgdex/pkgdex/internal/domain"
	"github.com/pkgdex/pkgdex/internal/logger"
	"github.com/pkgdex/pkgdex/internal/notification"
	"github.com/pkgdex/pkgdex/internal/registry"
	"github.com/pkgdex/pkgdex/internal/scrape"
	"github.com/pkgdex/pkgdex/internal/search"
)

// App holds the wired application: one store handle, the repositories and the
// services built on top of it. Close the app when done; it owns the database.
type App struct {
	log       zerolog.Logger
	config    *domain.Config
	db        *database.DB
	repo      domain.PackageRepo
	bootstrap bootstrap.Service
	search    search.Service
	notify    domain.NotificationService
}

// NewApp loads configuration, opens the store and wires all services.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	db, err := database.NewDB(cfg.DatabaseDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := database.NewPackageRepo(log, db)
	lister := registry.NewLister(log, cfg.RegistryURL)
	gazer := scrape.NewService(log, "")
	fetcher := registry.NewFetcher(log, cfg.RegistryURL, gazer)

	return &App{
		log:       log,
		config:    cfg,
		db:        db,
		repo:      repo,
		bootstrap: bootstrap.NewService(log, lister, repo, cfg.BootstrapSlot),
		search:    search.NewService(log, repo, fetcher),
		notify:    notification.NewService(log, cfg.DiscordWebhookURL),
	}, nil
}

// Close releases the store handle.
func (a *App) Close() error {
	return a.db.Close()
}

// RunBootstrap performs one incremental bootstrap pass and reports the
// outcome to the configured notification channels.
func (a *App) RunBootstrap(ctx context.Context) error {
	stats, err := a.bootstrap.Run(ctx)
	if err != nil {
		if notifyErr := a.notify.SendError(ctx, err); notifyErr != nil {
			a.log.Warn().Err(notifyErr).Msg("Failed to send error notification")
		}
		return err
	}

	if notifyErr := a.notify.SendSuccess(ctx, stats); notifyErr != nil {
		a.log.Warn().Err(notifyErr).Msg("Failed to send success notification")
	}

	a.log.Info().
		Int("checked", stats.ShardsChecked).
		Int("updated", stats.ShardsUpdated).
		Int("inserted", stats.NamesInserted).
		Msg("Bootstrap pass complete")

	return nil
}

// Search answers a single query, page 0-based.
func (a *App) Search(ctx context.Context, query string, page int) (*domain.SearchResult, error) {
	return a.search.Search(ctx, query, page)
}

// ShardStates returns the stored bootstrap state, ordered by letter.
func (a *App) ShardStates(ctx context.Context) ([]domain.ShardState, error) {
	return a.repo.ShardStates(ctx)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	handler := api.NewHandler(a.log, a.search)
	server := api.NewServer(a.log, a.config.ListenAddr, a.config.MaxConns, handler.Routes())
	return server.ListenAndServe(ctx)
}
