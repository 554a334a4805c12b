package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/salvioris-moderation/internal/handlers"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Moderation *handlers.ModerationHandler
	Feed       *handlers.FeedHandler
	// RequireModerator guards every moderation route except sign-in.
	RequireModerator func(http.Handler) http.Handler
}

func SetupRoutes(r chi.Router, h Handlers) {
	// Health check
	r.Get("/health", handlers.Health)

	// Moderator live notifications (token checked by the handler)
	r.Get("/ws/moderation", h.Feed.ModeratorFeed)

	r.Route("/api/moderation", func(r chi.Router) {
		r.Post("/signin", h.Auth.Signin)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireModerator)

			r.Post("/signout", h.Auth.Signout)

			// Analyses
			r.Get("/analyses", h.Moderation.ListAnalyses)
			r.Post("/analyses/run", h.Moderation.RunAnalysis)
			r.Get("/analyses/{id}/reports", h.Moderation.AnalysisReports)
			r.Post("/analyses/{id}/resolve", h.Moderation.ResolveAnalysis)

			// Sanctions and account state
			r.Post("/reactivations/run", h.Moderation.RunReactivation)
			r.Post("/compliance/{complianceId}/sanction", h.Moderation.ComplianceSanction)
			r.Get("/users/{userId}/status", h.Moderation.UserStatus)
		})
	})
}
