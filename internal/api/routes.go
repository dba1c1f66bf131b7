package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/lingotrail/trail-api/internal/api/middleware"
)

// NewRouter builds the HTTP router with all trail routes and standard
// middleware. The health endpoint sits outside the identity-checked group so
// load balancers can probe without credentials.
func NewRouter(handler *TrailHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.StudentIdentity)

			r.Get("/trails", handler.List)
			r.Post("/trails/generate", handler.Generate)
			r.Get("/trails/active", handler.GetActive)
			r.Get("/trails/{id}", handler.Get)
			r.Post("/trails/{id}/refresh", handler.Refresh)
			r.Delete("/trails/{id}", handler.Archive)
			r.Post("/trails/{id}/cancel", handler.CancelJobs)
			r.Get("/trails/{id}/modules", handler.ListModules)
			r.Get("/trails/{id}/modules/{moduleID}/lessons", handler.ListLessons)
			r.Get("/trails/{id}/jobs", handler.ListJobs)
			r.Get("/trails/{id}/progress", handler.GetProgress)

			r.Patch("/lessons/{id}/progress", handler.CompleteLesson)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
