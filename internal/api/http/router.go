package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/http/handlers"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	Events         *handlers.EventsHandler
	Telegram       *handlers.TelegramHandler
	KnowledgeBase  *handlers.KnowledgeBaseHandler
	AuthMiddleware *auth.AuthMiddleware
	BotSecret      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	bot := api.Group("/telegram", auth.RequireBotSecret(cfg.BotSecret))
	bot.Get("/allowed-users", cfg.Telegram.AllowedUsers)
	bot.Get("/tickets/:id/contacts", cfg.Telegram.Contacts)
	bot.Get("/tickets/:id/generated-answer", cfg.Telegram.GeneratedAnswer)

	api.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.OperatorRoleAdmin), cfg.Health.Metrics)

	kb := api.Group("/kb", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.OperatorRoleOperator, domain.OperatorRoleAdmin))
	kb.Get("/sections", cfg.KnowledgeBase.ListSections)
	kb.Get("/sections/:id", cfg.KnowledgeBase.GetSection)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.OperatorRoleOperator, domain.OperatorRoleAdmin))
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.IntakeTicket)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/export", cfg.Tickets.Export)
	tickets.Get("/events", cfg.Events.Stream)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/send", cfg.Tickets.SendResponse)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/chat", cfg.Chat.List)
	tickets.Post("/:id/chat", cfg.Chat.Post)
	tickets.Get("/:id/affordances", cfg.Chat.Affordances)
}
