package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/config"
	"github.com/linkedreach/backend/internal/http/handlers"
	"github.com/linkedreach/backend/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Campaign *handlers.CampaignHandler
	Prospect *handlers.ProspectHandler
	Lead     *handlers.LeadHandler
	Meta     *handlers.MetaHandler
	WSHub    *handlers.WSHub
}

// SetupRouter mounts every route on app. rdb may be nil, which disables the
// per-IP request limit.
func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.HTTPRateLimit, time.Minute, log))

	// Public
	api.Post("/auth/session", h.Auth.Session)
	api.Get("/meta/plans", h.Meta.GetPlans)
	api.Get("/meta/tones", h.Meta.GetTones)
	api.Get("/meta/career-goals", h.Meta.GetCareerGoals)
	api.Get("/meta/prospect-statuses", h.Meta.GetProspectStatuses)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", h.User.GetMe)
	protected.Patch("/me/preferences", h.User.UpdatePreferences)
	protected.Post("/me/check-plan", h.User.CheckPlan)
	protected.Get("/me/limits", h.User.Limits)
	protected.Get("/stats", h.User.Stats)

	// Campaigns
	protected.Post("/campaigns", h.Campaign.CreateCampaign)
	protected.Get("/campaigns", h.Campaign.ListCampaigns)
	protected.Get("/campaigns/:id", h.Campaign.GetCampaign)
	protected.Patch("/campaigns/:id", h.Campaign.UpdateCampaign)
	protected.Delete("/campaigns/:id", h.Campaign.DeleteCampaign)
	protected.Post("/campaigns/:id/prospects", h.Campaign.AddProspect)
	protected.Post("/campaigns/:id/:action", h.Campaign.SetStatus)

	// Prospects
	protected.Post("/prospects/score", h.Prospect.Score)
	protected.Post("/prospects/:id/actions", h.Prospect.Action)
	protected.Patch("/prospects/:id/status", h.Prospect.UpdateStatus)

	// Leads
	protected.Post("/leads", h.Lead.CreateLead)
	protected.Get("/leads", h.Lead.ListLeads)
	protected.Patch("/leads/:id/status", h.Lead.UpdateStatus)
	protected.Delete("/leads/:id", h.Lead.DeleteLead)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WSHub.HandleWS))
}
