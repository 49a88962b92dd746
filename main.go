package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"coldreach/config"
	controller "coldreach/controllers"
	"coldreach/middleware"
	"coldreach/routes"
	"coldreach/warmup"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}
	logger := log.WithField("service", "coldreach")

	if err := config.LoadConfig(); err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	clock := warmup.SystemClock()
	resolver := warmup.NewResolver(os.Getenv("DNS_RESOLVER"))
	mailer := warmup.NewSMTPMailer()

	engine := warmup.NewEngine(config.DB, logger.WithField("component", "engine"), clock)
	peers := warmup.NewPeerNetwork(config.DB, logger.WithField("component", "peer"), clock, mailer)
	replier := warmup.NewAutoReplier(config.DB, logger.WithField("component", "autoreply"), clock, mailer)
	dnsChecker := warmup.NewDNSChecker(config.DB, logger.WithField("component", "dns"), clock, resolver)
	blChecker := warmup.NewBlacklistChecker(config.DB, logger.WithField("component", "blacklist"), clock, resolver)
	recovery := warmup.NewRecoveryService(config.DB, logger.WithField("component", "recovery"), clock)
	snapshots := warmup.NewSnapshotService(config.DB, logger.WithField("component", "snapshot"), clock)
	reporter := warmup.NewReporter(config.DB)
	placement := warmup.NewPlacementChecker(config.DB, logger.WithField("component", "placement"), clock)

	scheduler := warmup.NewScheduler(
		config.DB, logger.WithField("component", "scheduler"), clock,
		engine, peers, replier, dnsChecker, blChecker, recovery, snapshots,
	)
	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "coldreach",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, &routes.Controllers{
		Auth:    controller.NewAuthController(logger.WithField("component", "auth")),
		Mailbox: controller.NewMailboxController(logger.WithField("component", "mailbox")),
		Warmup: controller.NewWarmupController(
			logger.WithField("component", "warmup"),
			engine, peers, replier, dnsChecker, blChecker,
			recovery, reporter, placement, scheduler,
		),
		Alert:    controller.NewAlertController(logger.WithField("component", "alerts")),
		Profile:  controller.NewProfileController(logger.WithField("component", "profiles")),
		Tracking: controller.NewTrackingController(logger.WithField("component", "tracking")),
	})

	// Graceful shutdown: stop accepting requests, then drain scheduler jobs
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received")
		cancel()
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			logger.WithError(err).Error("server shutdown failed")
		}
	}()

	logger.WithField("port", config.AppConfig.ServerPort).Info("server starting")
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	cancel()
}
