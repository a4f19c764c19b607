package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"research-showcase-api/config"
	"research-showcase-api/controllers"
	"research-showcase-api/middleware"
	"research-showcase-api/monitor"
	"research-showcase-api/routes"
	"research-showcase-api/services"
	"research-showcase-api/storage"
)

func main() {
	cfg := config.MustLoad()

	log, err := config.InitLogging(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer config.SyncLogging()

	log.Info("Starting Research Showcase API",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.ServerPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("blob_driver", cfg.BlobDriver),
	)

	ctx := context.Background()
	if err := config.InitDB(ctx, cfg); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open blob store", zap.Error(err))
	}

	var queue services.EmailQueue
	if cfg.EmailRetryEnabled {
		q := services.NewAsynqEmailQueue(cfg.RedisAddr, cfg.RedisPassword)
		defer q.Close()
		queue = q
		log.Info("Email retry queue enabled", zap.String("redis", cfg.RedisAddr))
	}

	mailer := config.NewMailer(cfg)
	if !mailer.Configured() {
		log.Warn("SMTP not configured; email notifications will be reported as warnings")
	}

	uploads := services.NewUploadService(store)
	dispatcher := services.NewNotificationDispatcher(cfg.NotifyTimeout,
		services.NewInAppNotifier(config.DB),
		services.NewEmailNotifier(mailer, queue, cfg.AppBaseURL),
	)
	controllers.Configure(controllers.Dependencies{
		Workflow:  services.NewWorkflowService(config.DB, uploads, dispatcher),
		Search:    services.NewSearchService(config.DB),
		Accounts:  services.NewAccountService(config.DB),
		Inbox:     services.NewInboxService(config.DB),
		Uploads:   uploads,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  time.Duration(cfg.JWTExpireHours) * time.Hour,
	})

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging())
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Handler())

	// Register monitoring routes before SetupRoutes installs the 404 handler
	monitor.Register(router, cfg.MonitorToken, cfg.LogFile)

	if fs, ok := store.(*storage.FSStore); ok {
		router.Static("/uploads", fs.Root())
	}

	routes.SetupRoutes(router, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
