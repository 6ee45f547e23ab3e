package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cardlab-backend/internal/handlers"
	"cardlab-backend/internal/middleware"
	"cardlab-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	generationHandler *handlers.GenerationHandler,
	flashcardHandler *handlers.FlashcardHandler,
	studyHandler *handlers.StudyHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP); generation gets its own,
	// tighter limiter because every request costs a model call.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	generateLimiter := middleware.NewRateLimiter(5, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Generation & Review Routes ────
		r.Route("/generations", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(generateLimiter.Middleware)
				r.Post("/", generationHandler.Generate)
			})

			r.Get("/", generationHandler.View)
			r.Delete("/", generationHandler.StartOver)
			r.Post("/extract", generationHandler.Extract)
			r.Post("/commit", generationHandler.Commit)

			r.Route("/proposals/{tempID}", func(r chi.Router) {
				r.Post("/accept", generationHandler.AcceptProposal)
				r.Post("/reject", generationHandler.RejectProposal)
				r.Put("/", generationHandler.EditProposal)
			})
		})

		// ──── Flashcard Routes ────
		r.Route("/flashcards", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", flashcardHandler.List)
			r.Post("/", flashcardHandler.Create)
			r.Put("/{id}", flashcardHandler.Update)
			r.Delete("/{id}", flashcardHandler.Delete)
			r.Post("/bulk-delete", flashcardHandler.BulkDelete)
		})

		// ──── Study Session Routes ────
		r.Route("/study-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", studyHandler.Start)

			r.Route("/current", func(r chi.Router) {
				r.Get("/", studyHandler.Current)
				r.Post("/reveal", studyHandler.Reveal)
				r.Post("/rate", studyHandler.Rate)
				r.Post("/end", studyHandler.End)
				r.Post("/restart", studyHandler.Restart)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
