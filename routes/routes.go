package routes

import (
	"debtflow/config"
	controller "debtflow/controllers"
	"debtflow/middleware"
	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Dependencies are the shared services handlers are built from
type Dependencies struct {
	DB                 *gorm.DB
	Generator          *utils.ScheduleGenerator
	Reconciler         *utils.StatusReconciler
	Dispatcher         *utils.CollectionDispatcher
	Lock               utils.RunLock
	YearlyRate         decimal.Decimal
	PaymentLinkBaseURL string
	CronSecret         string
}

var requestLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

// SetupWebhookRoutes exposes provider callbacks. SMSAPI may call back with
// either GET or POST depending on account settings.
func SetupWebhookRoutes(app *fiber.App, deps Dependencies) {
	webhookController := controller.NewWebhookController(deps.Reconciler, config.Logger("webhook"))

	webhooks := app.Group("/webhooks", logger.New(logger.Config{
		Format: requestLogFormat,
	}), middleware.WebhookRateLimiter())

	webhooks.Get("/smsapi", webhookController.HandleSMSAPICallback)
	webhooks.Post("/smsapi", webhookController.HandleSMSAPICallback)
}

// SetupCronRoutes exposes the dispatch trigger for an external scheduler
func SetupCronRoutes(app *fiber.App, deps Dependencies) {
	cronController := controller.NewCronController(deps.Dispatcher, deps.Lock, config.Logger("cron"))

	cron := app.Group("/cron", logger.New(logger.Config{
		Format: requestLogFormat,
	}), middleware.CronSecret(deps.CronSecret))

	cron.Get("/collection", cronController.RunDispatch)
	cron.Post("/collection", cronController.RunDispatch)
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	sequenceController := controller.NewSequenceController(deps.DB, config.Logger("sequence"), deps.YearlyRate, deps.PaymentLinkBaseURL)
	invoiceController := controller.NewInvoiceController(deps.DB, config.Logger("invoice"), deps.Generator, deps.YearlyRate)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), middleware.APIRateLimiter(), logger.New(logger.Config{
		Format: requestLogFormat,
	}))

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.ListSequences)
	sequence.Post("/preview", sequenceController.PreviewTemplate)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Delete("/:id", sequenceController.DeleteSequence)

	// Invoice collection routes
	invoice := api.Group("/invoices/:id")
	invoice.Put("/sequence", invoiceController.AssignSequence)
	invoice.Put("/due-date", invoiceController.UpdateDueDate)
	invoice.Post("/paid", invoiceController.MarkPaid)
	invoice.Get("/schedule", invoiceController.GetSchedule)
	invoice.Get("/actions", invoiceController.GetActions)
	invoice.Get("/interest", invoiceController.GetInterest)
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupWebhookRoutes(app, deps)
	SetupCronRoutes(app, deps)
	SetupAPIRoutes(app, deps)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
