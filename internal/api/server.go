package api

import (
	"net/http"
	"time"

	chatapi "github.com/futig/medical-chatbot/internal/api/chat"
	"github.com/futig/medical-chatbot/internal/api/docs"
	"github.com/futig/medical-chatbot/internal/api/middleware"
	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(chatHandler *chatapi.Handler, sessionCfg config.SessionConfig, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)               // Recover from panics
	r.Use(chimiddleware.RequestID)               // Add request ID
	r.Use(middleware.Logger(logger))             // Log requests
	// Upper bound for a whole question. Config keeps it above the LLM
	// timeout, so a single slow LLM call is answered by the handler's 504 first.
	r.Use(chimiddleware.Timeout(requestTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	// Chat routes are tied to a session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(sessionCfg))
		chatapi.RegisterRoutes(r, chatHandler)
	})

	return r
}
