package routes

import (
	"log"
	"os"

	controller "leadpilot/controllers"
	"leadpilot/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	prospectController := controller.NewProspectController(db, log.New(os.Stdout, "PROSPECT: ", log.LstdFlags))
	sequenceController := controller.NewSequenceController(db, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	sendController := controller.NewSendController(db, log.New(os.Stdout, "SEND: ", log.LstdFlags))
	statsController := controller.NewStatsController(db, log.New(os.Stdout, "STATS: ", log.LstdFlags))
	scrapeController := controller.NewScrapeController(db, log.New(os.Stdout, "SCRAPE: ", log.LstdFlags))

	// API group with versioning
	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Prospect routes
	prospect := api.Group("/prospects")
	prospect.Post("/", prospectController.CreateProspect)
	prospect.Get("/", prospectController.GetProspects)
	prospect.Get("/export", prospectController.ExportProspects)
	prospect.Post("/import", prospectController.ImportProspects)
	prospect.Get("/:id", prospectController.GetProspect)
	prospect.Put("/:id", prospectController.UpdateProspect)
	prospect.Delete("/:id", prospectController.DeleteProspect)
	prospect.Post("/:id/replied", prospectController.MarkReplied)
	prospect.Post("/:id/pause", prospectController.PauseProspect)
	prospect.Post("/:id/resume", prospectController.ResumeProspect)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Delete("/:id", sequenceController.DeleteSequence)
	sequence.Post("/:id/enroll", sequenceController.EnrollProspects)
	sequence.Post("/:id/remove", sequenceController.RemoveFromSequence)
	sequence.Get("/:id/stats", statsController.GetSequenceStats)

	// Send routes: every email the system sends goes through these two
	sequence.Post("/:id/send/:prospectID", sendController.SendOne)
	sequence.Post("/:id/send-bulk", sendController.SendBulk)

	// WebSocket route for bulk-send progress
	app.Get("/api/v1/sequences/:id/progress", websocket.New(sendController.ProgressSocket))

	// Analytics
	api.Get("/analytics/overview", statsController.GetOverview)

	// Scrape job routes
	scrape := api.Group("/scrape-jobs")
	scrape.Post("/", scrapeController.CreateScrapeJob)
	scrape.Get("/", scrapeController.GetScrapeJobs)
	scrape.Get("/:id", scrapeController.GetScrapeJob)

	log.Println("API routes initialized successfully")
}

// SetupTrackingRoutes registers the public endpoints embedded in outgoing
// emails. They live outside /api/v1 and carry their own rate limit.
func SetupTrackingRoutes(app *fiber.App, db *gorm.DB) {
	trackingController := controller.NewTrackingController(db, log.New(os.Stdout, "TRACKING: ", log.LstdFlags))

	tracking := app.Group("/tracking", middleware.TrackingRateLimiter())
	tracking.Get("/open/:token", trackingController.TrackOpen)
	tracking.Get("/click/:token", trackingController.TrackClick)
	tracking.Get("/unsubscribe/:token", trackingController.Unsubscribe)
	tracking.Post("/events", trackingController.HandleEvent)
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupTrackingRoutes(app, db)
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
