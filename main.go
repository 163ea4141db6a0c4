package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"gpodo/cache"
	"gpodo/config"
	controller "gpodo/controllers"
	"gpodo/middleware"
	"gpodo/routes"
	"gpodo/utils"
	"gpodo/worker"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if config.AppConfig.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.InitSentry(config.AppConfig.SentryDSN, config.AppConfig.Environment); err != nil {
		logrus.WithError(err).Warn("Sentry disabled")
	}
	defer utils.FlushSentry()

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	controller.InitStripe()

	svc := routes.Services{
		Cache:              cache.NoopCache{},
		CacheTTL:           config.AppConfig.ContextCacheTTL,
		Mailer:             utils.NewMailer(config.AppConfig),
		OTPRateLimit:       config.AppConfig.OTPRateLimit,
		OTPVerifyRateLimit: config.AppConfig.OTPVerifyRateLimit,
		Hub:                cache.NewTallyHub(logrus.WithField("component", "tally_hub")),
	}
	if config.AppConfig.Redis.Enabled {
		client := cache.NewRedisClient(config.AppConfig.Redis)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			logrus.WithError(err).Warn("Redis unreachable, caching disabled")
		} else {
			svc.Cache = cache.NewRedisCache(client)
			svc.LimiterStorage = middleware.NewRedisStorage(client)
			defer client.Close()
		}
	}

	app := fiber.New(fiber.Config{
		AppName: "gpodo",
	})
	app.Use(middleware.CORS(middleware.WithOrigins(config.AppConfig.CORSAllowedOrigins)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	votingWorker := worker.NewVotingWorker(config.DB, svc.Cache, svc.Hub, config.AppConfig.VotingWorkerInterval)
	go votingWorker.Start(ctx)

	routes.SetupRoutes(app, config.DB, svc)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logrus.Info("Shutting down...")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
