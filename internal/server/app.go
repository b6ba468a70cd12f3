// Package server initializes and runs the ShareGuard application server.
// It opens the database, runs migrations, wires the encrypted object store
// and the services on top of it, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shareguard/shareguard/internal/logging"
	"github.com/shareguard/shareguard/internal/server/blob"
	"github.com/shareguard/shareguard/internal/server/config"
	"github.com/shareguard/shareguard/internal/server/repositories/repomanager"
	"github.com/shareguard/shareguard/internal/server/services"
	"github.com/shareguard/shareguard/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	UserService  *services.UserService
	FileService  *services.FileService
	ShareService *services.ShareService

	sweeper *services.Sweeper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	backend, err := blob.NewS3Storage(ctx, blob.S3Options{
		User:         cfg.S3RootUser,
		Password:     cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob storage init error: %w", err)
	}
	store := storage.NewStore(backend)

	access := services.NewAccessEvaluator(db, rm)
	us := services.NewUserService(db, rm, cfg)
	fs := services.NewFileService(db, rm, store, access, logger)
	ss := services.NewShareService(db, rm, access, cfg, logger)
	sweeper := services.NewSweeper(db, rm, store, cfg.SweepInterval, logger)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		UserService:  us,
		FileService:  fs,
		ShareService: ss,
		sweeper:      sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the background orphan-blob sweep and blocks until the context
// is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
