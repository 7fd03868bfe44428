package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"debtflow/config"
	"debtflow/middleware"
	"debtflow/routes"
	"debtflow/utils"
	"debtflow/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	config.InitLogger()
	logger := config.Logger("main")

	flushSentry, err := config.InitSentry()
	if err != nil {
		logger.WithError(err).Warn("Sentry disabled")
	}
	defer flushSentry()

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ConnectRedis(ctx); err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}

	// Delivery channels are optional individually; steps on a missing channel fail with a recorded action
	var mailer utils.MailServiceInterface
	if config.AppConfig.SMTP.Host != "" {
		mailer = utils.NewSMTPMailer(config.AppConfig.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set, email steps will fail")
	}
	var sms utils.SMSServiceInterface
	if config.AppConfig.SMSAPI.Token != "" {
		sms = utils.NewSMSAPIClient(config.AppConfig.SMSAPI)
	} else {
		logger.Warn("SMSAPI_TOKEN not set, sms steps will fail")
	}

	dispatcher := &utils.CollectionDispatcher{
		DB:                 config.DB,
		Logger:             config.Logger("dispatcher"),
		Mailer:             mailer,
		SMS:                sms,
		YearlyRate:         config.AppConfig.InterestYearlyRate,
		PaymentLinkBaseURL: config.AppConfig.PaymentLinkBaseURL,
		DefaultSMSSender:   config.AppConfig.SMSAPI.SenderName,
		BatchSize:          config.AppConfig.DispatchBatchSize,
	}
	lock := utils.NewRunLock(config.Redis)

	deps := routes.Dependencies{
		DB:                 config.DB,
		Generator:          utils.NewScheduleGenerator(config.DB, config.Logger("schedule")),
		Reconciler:         utils.NewStatusReconciler(config.DB, config.Logger("reconciler")),
		Dispatcher:         dispatcher,
		Lock:               lock,
		YearlyRate:         config.AppConfig.InterestYearlyRate,
		PaymentLinkBaseURL: config.AppConfig.PaymentLinkBaseURL,
		CronSecret:         config.AppConfig.CronSecret,
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "debtflow",
		DisableStartupMessage: config.AppConfig.Environment == "production",
	})

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(app, deps)

	if config.AppConfig.WorkerEnabled {
		collectionWorker := worker.NewCollectionWorker(dispatcher, lock, config.AppConfig.DispatchInterval, config.Logger("worker"))
		go collectionWorker.Start(ctx)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
