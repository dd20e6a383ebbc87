package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/campusworks/maintenance-reporter/internal/api/http"
	"github.com/campusworks/maintenance-reporter/internal/api/http/handlers"
	"github.com/campusworks/maintenance-reporter/internal/auth"
	"github.com/campusworks/maintenance-reporter/internal/config"
	"github.com/campusworks/maintenance-reporter/internal/events"
	"github.com/campusworks/maintenance-reporter/internal/observability"
	"github.com/campusworks/maintenance-reporter/internal/persistence"
	"github.com/campusworks/maintenance-reporter/internal/repository"
	"github.com/campusworks/maintenance-reporter/internal/service"
	"github.com/campusworks/maintenance-reporter/internal/storage"
	"github.com/campusworks/maintenance-reporter/internal/vision"
	"github.com/campusworks/maintenance-reporter/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	images, err := storage.NewMinioStore(ctx, cfg.Minio, logger)
	if err != nil {
		logger.Fatal("failed to connect object storage", zap.Error(err))
	}

	gemini, err := vision.NewGeminiAnalyzer(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("failed to init image analyzer", zap.Error(err))
	}
	analyzer := vision.NewCachedAnalyzer(gemini, redis.Client, cfg.Gemini.CacheTTL(), logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Analyzer:   analyzer,
		Images:     images,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.Upload.MaxImageBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, images)
	usersHandler := handlers.NewUsersHandler(authService)
	ticketsHandler := handlers.NewTicketsHandler(ticketService, cfg.Upload)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Users:          usersHandler,
		Tickets:        ticketsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
