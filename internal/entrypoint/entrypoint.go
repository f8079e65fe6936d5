package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/moneta/internal/audit"
	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/catalog"
	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	auditdb "github.com/mrlokans/moneta/internal/database/audit"
	catalogdb "github.com/mrlokans/moneta/internal/database/catalog"
	lendingdb "github.com/mrlokans/moneta/internal/database/lending"
	"github.com/mrlokans/moneta/internal/database/users"
	http_controllers "github.com/mrlokans/moneta/internal/http"
	"github.com/mrlokans/moneta/internal/lending"
	"github.com/mrlokans/moneta/internal/scheduler"
	"github.com/mrlokans/moneta/internal/tasks"
)

// App holds the database and the domain services built on top of it.
// Both the server and the CLI commands start from one.
type App struct {
	DB      *database.Database
	Auditor *audit.Service
	Auth    *auth.Service
	Catalog *catalog.Service
	Lending *lending.Service
}

// NewApp opens the database and wires the services.
func NewApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	auditor := audit.NewService(auditdb.NewRepository(db.DB), log)
	usersRepo := users.NewRepository(db.DB)

	return &App{
		DB:      db,
		Auditor: auditor,
		Auth:    auth.NewService(usersRepo, cfg.Auth, log),
		Catalog: catalog.NewService(catalogdb.NewRepository(db.DB), usersRepo, auditor, log),
		Lending: lending.NewService(lendingdb.NewRepository(db.DB), cfg.Lending, auditor, log),
	}, nil
}

// Close flushes pending audit writes and closes the database.
func (a *App) Close() error {
	a.Auditor.Wait()
	return a.DB.Close()
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the server until ctx is cancelled, then shuts it down within
// timeout. onShutdown runs before the listener closes.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger, onShutdown ShutdownFunc) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server", zap.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if onShutdown != nil {
			onShutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exiting")
	return nil
}

// Run starts the web server with its background workers and blocks until
// SIGINT or SIGTERM.
func Run(cfg *config.Config, version string, log *zap.Logger) error {
	log.Info("starting moneta", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	taskCtx, taskCancel := context.WithCancel(context.Background())
	defer taskCancel()
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks), log)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error("error closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(
			tasks.NewSweepOverdueQueue(app.Lending, log),
			tasks.NewCleanupAuditEventsQueue(app.Auditor, log),
		)
		taskClient.Start(taskCtx)
	}

	var housekeeping *scheduler.HousekeepingScheduler
	if cfg.Housekeeping.Enabled {
		housekeeping = scheduler.NewHousekeepingScheduler(scheduler.Options{
			SweepSchedule:      cfg.Housekeeping.Schedule,
			AuditSchedule:      cfg.Audit.Schedule,
			AuditRetentionDays: cfg.Audit.RetentionDays,
		}, app.Lending, app.Auditor, taskClient, app.Auditor, log)
		if err := housekeeping.Start(ctx); err != nil {
			return fmt.Errorf("failed to start housekeeping: %w", err)
		}
	}

	sqlDB, err := app.DB.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	secret, err := csrfSecret(cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}
	if cfg.Auth.SessionSecret == "" {
		log.Warn("generated session secret, set AUTH_SESSION_SECRET to persist it")
	}

	authController := auth.NewAuthController(app.Auth, sessionManager, cfg.UI.TemplatesPath, cfg.Auth, log)
	defer authController.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Catalog:        app.Catalog,
		Lending:        app.Lending,
		Database:       app.DB,
		Auditor:        app.Auditor,
		AuthService:    app.Auth,
		SessionManager: sessionManager,
		AuthMiddleware: auth.NewMiddleware(app.Auth, sessionManager, log),
		AuthConfig:     cfg.Auth,
		AuthController: authController,
		LoginHook:      tasks.NewOverdueLoginHook(taskClient, app.Lending, log),
		CSRFSecret:     secret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		RateLimit:      cfg.RateLimit,
		Version:        version,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	onShutdown := func(ctx context.Context) {
		if housekeeping != nil {
			housekeeping.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCancel()
		}
	}

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	return Serve(ctx, srv, timeout, log, onShutdown)
}

// csrfSecret decodes a configured hex secret, falls back to the raw bytes,
// and generates one when nothing is configured.
func csrfSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	return hex.DecodeString(generated)
}
