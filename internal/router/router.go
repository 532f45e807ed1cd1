package router

import (
	"net/http"

	"sheetvend-api/internal/handler"
	"sheetvend-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	DispenseHandler *handler.DispenseHandler
	AccountHandler  *handler.AccountHandler
	AdminHandler    *handler.AdminHandler
	AdminAuth       func(http.Handler) http.Handler
	Logger          *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.AdminKeyHeader, middleware.AdminIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
		}

		if cfg.DispenseHandler != nil {
			r.Get("/stats", cfg.DispenseHandler.CombinedStats)
			r.Route("/regions/{region}", func(r chi.Router) {
				r.Post("/allocate", cfg.DispenseHandler.Allocate)
				r.Get("/stats", cfg.DispenseHandler.RegionStats)
			})
		}

		if cfg.AccountHandler != nil {
			r.Route("/users/{user_id}", func(r chi.Router) {
				r.Get("/balance", cfg.AccountHandler.Balance)
				r.Post("/profile", cfg.AccountHandler.Profile)
			})
		}

		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminAuth != nil {
					r.Use(cfg.AdminAuth)
				}

				r.Route("/credits", func(r chi.Router) {
					r.Post("/add", cfg.AdminHandler.AddCredits)
					r.Post("/reset", cfg.AdminHandler.ResetCredits)
					r.Post("/reset-all", cfg.AdminHandler.ResetAll)
					r.Post("/grant-all", cfg.AdminHandler.GrantAll)
				})

				r.Get("/users", cfg.AdminHandler.Users)
				r.Post("/users/{user_id}/ban", cfg.AdminHandler.Ban)
				r.Delete("/users/{user_id}/ban", cfg.AdminHandler.Unban)

				r.Get("/overview", cfg.AdminHandler.Overview)
				r.Get("/regions/{region}/rows", cfg.AdminHandler.AuditRows)
				r.Post("/broadcast", cfg.AdminHandler.Broadcast)
			})
		}
	})

	return r
}
