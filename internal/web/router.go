package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewRouter builds the full HTTP surface: the stateless generation
// endpoints at the root, the session API under /api/v1, and the event
// stream.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(corsMiddleware)

	r.Get("/health", h.Health)
	r.Post("/narrate", h.Narrate)
	r.Post("/illustrate", h.Illustrate)
	r.Post("/revise", h.Revise)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/memory", func(r chi.Router) {
			r.Post("/new", h.NewMemory)
			r.Post("/remix", h.RemixMemory)
			r.Get("/active", h.ActiveMemory)
		})
		r.Route("/scrapbook", func(r chi.Router) {
			r.Get("/", h.Scrapbook)
			r.Post("/{id}/select", func(w http.ResponseWriter, req *http.Request) {
				h.SelectMemory(w, req, chi.URLParam(req, "id"))
			})
		})
	})

	r.Get("/ws/events", h.Events)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
