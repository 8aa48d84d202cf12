package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/bookery-social/bookery/internal/http"
	"github.com/bookery-social/bookery/internal/oauth/google"
	"github.com/bookery-social/bookery/internal/rank"
	"github.com/bookery-social/bookery/internal/rate"
	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/internal/store/drivers/sqlite"
	"github.com/bookery-social/bookery/pkg/jwtx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the bookery service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   *jwtx.EdDSASigner
	verifier jwtx.Verifier
	limiter  *rate.MemoryLimiter

	// Services
	tokenService    *service.TokenService
	identityService *service.IdentityService
	searchService   *service.SearchService
	bookService     *service.BookService
	housekeeper     *service.Housekeeper

	// HTTP server
	server *http.Server
	router *httpapi.Router

	stopHousekeeping context.CancelFunc
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "bookery",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initKeys(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	hkCtx, cancel := context.WithCancel(slogx.WithContext(context.Background(), app.logger))
	app.stopHousekeeping = cancel
	go app.housekeeper.Run(hkCtx)

	app.logger.Info("bookery starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bookery...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.stopHousekeeping != nil {
		app.stopHousekeeping()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("bookery stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKeys generates the ephemeral signing keypair. Keys live in memory only:
// a restart invalidates all outstanding tokens, which is acceptable because
// clients re-login through the refresh failure path.
func (app *Application) initKeys() error {
	signer, err := jwtx.NewEphemeralSigner()
	if err != nil {
		return fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)

	app.signer = signer
	app.verifier = jwtx.NewVerifierEdDSA(keys, app.cfg.Issuer)
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	app.tokenService = service.NewTokenService(app.db, app.signer, app.verifier, service.TokenConfig{
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	})

	app.bookService = service.NewBookService(app.db.Books())

	app.limiter = rate.NewMemoryLimiter(app.cfg.SearchCeiling, app.cfg.SearchWindow)
	ranker := rank.NewClient(rank.Config{
		BaseURL: app.cfg.RankBaseURL,
		APIKey:  app.cfg.RankAPIKey,
		Model:   app.cfg.RankModel,
	})
	app.searchService = service.NewSearchService(app.db.Books(), app.limiter, ranker)

	app.housekeeper = service.NewHousekeeper(app.limiter, app.cfg.HousekeepingInterval)

	if app.cfg.GoogleClientID != "" && app.cfg.GoogleClientSecret != "" {
		provider, err := google.NewProvider(context.Background(), google.Config{
			ClientID:     app.cfg.GoogleClientID,
			ClientSecret: app.cfg.GoogleClientSecret,
			RedirectURL:  app.cfg.GoogleRedirectURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize google provider: %w", err)
		}
		app.identityService = service.NewIdentityService(app.db, provider, app.tokenService)
		app.logger.Info("federated login enabled", "provider", "google")
	} else {
		app.logger.Info("federated login disabled, no provider credentials configured")
	}

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.IdentityService = app.identityService // nil when federated login is disabled
	router.SearchService = app.searchService
	router.BookService = app.bookService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
