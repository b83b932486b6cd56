package router

import (
	"net/http"

	"halaqa-points-api/internal/handler"
	"halaqa-points-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	LedgerHandler      *handler.LedgerHandler
	LeaderboardHandler *handler.LeaderboardHandler
	AdminHandler       *handler.AdminHandler
	AuthHandler        *handler.AuthHandler
	AuthMiddleware     func(http.Handler) http.Handler
	AllowedOrigins     []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/token", cfg.AuthHandler.GenerateToken)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			if cfg.LedgerHandler != nil {
				r.Route("/ledger", func(r chi.Router) {
					r.Get("/me", cfg.LedgerHandler.Me)
					r.Get("/me/stream", cfg.LedgerHandler.Stream)
					r.Post("/me/spend", cfg.LedgerHandler.Spend)
					r.Post("/me/equip", cfg.LedgerHandler.Equip)

					r.Get("/{user_id}/redemptions", cfg.LedgerHandler.Redemptions)
					r.With(middleware.RequireAwarder).Post("/{user_id}/credit", cfg.LedgerHandler.Credit)
					r.With(middleware.RequireAwarder).Post("/{user_id}/redeem", cfg.LedgerHandler.Redeem)
				})
			}

			if cfg.LeaderboardHandler != nil {
				r.Get("/leaderboard", cfg.LeaderboardHandler.Top)
				r.Get("/leaderboard/stream", cfg.LeaderboardHandler.Stream)
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/repair", cfg.AdminHandler.RunRepair)
					r.Post("/cache/clear", cfg.AdminHandler.ClearCache)
				})
			}
		})
	})

	return r
}
