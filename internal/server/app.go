// Package server assembles the lending service: store, repositories,
// services and the HTTP endpoint, and runs it until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/netx"
	"github.com/dmitrijs2005/booklend/internal/server/config"
	"github.com/dmitrijs2005/booklend/internal/server/covers"
	"github.com/dmitrijs2005/booklend/internal/server/httpapi"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booklend/internal/server/seed"
	"github.com/dmitrijs2005/booklend/internal/server/services"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *services.UserService
	lending     *services.LendingService
	catalog     *services.CatalogService
}

// newCoverStore is replaced in tests.
var newCoverStore = func(ctx context.Context, cfg *config.Config) (covers.Store, error) {
	return covers.NewS3Store(ctx, cfg)
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	db, dialect, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var coverStore covers.Store
	if cfg.CoversEnabled() {
		coverStore, err = newCoverStore(ctx, cfg)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cover storage init error: %w", err)
		}
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: rm,
		users:       services.NewUserService(db, rm, cfg, logger),
		lending:     services.NewLendingService(db, rm, cfg, logger),
		catalog:     services.NewCatalogService(db, rm, cfg, logger, coverStore),
	}, nil
}

func (app *App) Close() error {
	return app.db.Close()
}

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	app.logger.Info(ctx, "Applying migrations", "dialect", string(app.repomanager.Dialect()))
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Seed migrates and then creates the admin account and starter books.
func (app *App) Seed(ctx context.Context, password string) (*seed.Result, error) {
	if err := app.Migrate(ctx); err != nil {
		return nil, err
	}
	return seed.NewSeeder(app.db, app.repomanager, app.users, app.catalog, app.logger).Run(ctx, password)
}

// UploadCover stores image as the cover of bookID, acting as the named
// administrator.
func (app *App) UploadCover(ctx context.Context, adminName string, bookID int64, image []byte) error {
	contentType, err := netx.DetectImageType(image)
	if err != nil {
		return err
	}

	user, err := app.repomanager.Users(app.db).GetByUserName(ctx, adminName)
	if err != nil {
		return fmt.Errorf("error loading %q: %w", adminName, err)
	}

	url, err := app.catalog.RequestCoverUpload(ctx, policy.ForUser(user), bookID)
	if err != nil {
		return err
	}

	if err := netx.UploadToPresignedURL(ctx, url, contentType, image); err != nil {
		return fmt.Errorf("error uploading cover: %w", err)
	}
	app.logger.Info(ctx, "cover uploaded", "book_id", bookID, "bytes", len(image))
	return nil
}

func (app *App) httpServer() *httpapi.Server {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.users, app.lending, app.catalog, app.db)
	s.SecureCookies = app.config.SecureCookies
	return s
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run migrates the store and serves HTTP until ctx is cancelled or a
// shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	if err := app.httpServer().Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
