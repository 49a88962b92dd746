package routes

import (
	controller "coldreach/controllers"
	"coldreach/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Controllers bundles every HTTP handler group for route registration.
type Controllers struct {
	Auth     *controller.AuthController
	Mailbox  *controller.MailboxController
	Warmup   *controller.WarmupController
	Alert    *controller.AlertController
	Profile  *controller.ProfileController
	Tracking *controller.TrackingController
}

// SetupRoutes registers the public tracking surface, the auth endpoints and
// the protected API.
func SetupRoutes(app *fiber.App, ctrl *Controllers) {
	requestLogger := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	// Public tracking endpoints. Opened by receiving mail clients, never
	// authenticated.
	app.Get("/t/:token/px.gif", ctrl.Tracking.TrackOpen)
	app.Get("/t/:token/l", ctrl.Tracking.TrackClick)

	// Liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public auth endpoints
	auth := app.Group("/auth", requestLogger)
	auth.Post("/login", ctrl.Auth.Login)
	auth.Post("/refresh", ctrl.Auth.Refresh)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", ctrl.Auth.Me)

	// Protected API
	api := app.Group("/api/v1", middleware.Protected(), requestLogger)

	mailboxes := api.Group("/mailboxes")
	mailboxes.Post("/", ctrl.Mailbox.CreateMailbox)
	mailboxes.Get("/", ctrl.Mailbox.GetMailboxes)
	mailboxes.Get("/:id", ctrl.Mailbox.GetMailbox)
	mailboxes.Patch("/:id", ctrl.Mailbox.UpdateMailbox)
	mailboxes.Delete("/:id", ctrl.Mailbox.DeleteMailbox)

	wu := api.Group("/warmup")
	wu.Get("/overview", ctrl.Warmup.GetOverview)
	wu.Get("/health-scores", ctrl.Warmup.GetHealthScores)
	wu.Get("/reputation", ctrl.Warmup.GetDomainReputation)
	wu.Get("/config", ctrl.Warmup.GetConfig)
	wu.Put("/config", ctrl.Warmup.UpdateConfig)
	wu.Get("/scheduler", ctrl.Warmup.GetSchedulerStatus)
	wu.Get("/jobs", ctrl.Warmup.GetJobRuns)

	// Manual pipeline triggers are rate limited per user and endpoint
	triggerLimited := wu.Group("", middleware.TriggerRateLimiter())
	triggerLimited.Post("/assess", ctrl.Warmup.TriggerAssessment)
	triggerLimited.Post("/peer-cycle", ctrl.Warmup.TriggerPeerCycle)
	triggerLimited.Post("/auto-reply", ctrl.Warmup.TriggerAutoReply)

	wu.Post("/:id/start", ctrl.Warmup.StartWarmup)
	wu.Post("/:id/pause", ctrl.Warmup.PauseWarmup)
	wu.Post("/:id/resume", ctrl.Warmup.ResumeWarmup)
	wu.Post("/:id/recover", ctrl.Warmup.StartRecovery)
	wu.Get("/:id/status", ctrl.Warmup.GetWarmupStatus)
	wu.Get("/:id/schedule", ctrl.Warmup.GetSchedule)
	wu.Get("/:id/logs", ctrl.Warmup.GetDailyLogs)
	wu.Get("/:id/emails", ctrl.Warmup.GetEmailHistory)
	wu.Get("/:id/dns", ctrl.Warmup.GetDNSHistory)
	wu.Get("/:id/blacklist", ctrl.Warmup.GetBlacklistHistory)
	wu.Get("/:id/export", ctrl.Warmup.ExportReport)

	mailboxChecks := wu.Group("", middleware.TriggerRateLimiter())
	mailboxChecks.Post("/:id/dns-check", ctrl.Warmup.TriggerDNSCheck)
	mailboxChecks.Post("/:id/blacklist-check", ctrl.Warmup.TriggerBlacklistCheck)
	mailboxChecks.Post("/:id/placement-check", ctrl.Warmup.CheckPlacement)

	alerts := api.Group("/alerts")
	alerts.Get("/", ctrl.Alert.GetAlerts)
	alerts.Get("/unread-count", ctrl.Alert.GetUnreadCount)
	alerts.Post("/read-all", ctrl.Alert.MarkAllRead)
	alerts.Post("/:id/read", ctrl.Alert.MarkAlertRead)

	profiles := api.Group("/profiles")
	profiles.Get("/", ctrl.Profile.GetProfiles)
	profiles.Post("/", ctrl.Profile.CreateProfile)
	profiles.Patch("/:id", ctrl.Profile.UpdateProfile)
	profiles.Post("/:id/apply", ctrl.Profile.ApplyProfile)
	profiles.Delete("/:id", ctrl.Profile.DeleteProfile)
}
