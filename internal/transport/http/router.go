package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-secret-friend/internal/config"
	"github.com/go-secret-friend/internal/transport/http/handler"
	appmiddleware "github.com/go-secret-friend/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Sessions)

	// 5 requests/second, burst of 10, on endpoints that send messages or create events.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Codes)
	sessionH := handler.NewSessionHandler(deps.Sessions)
	eventH := handler.NewEventHandler(deps.Events)
	drawH := handler.NewDrawHandler(deps.Draws, deps.Events)
	publicH := handler.NewPublicHandler(deps.Events)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/request-code", authH.RequestCode)
		r.With(sensitiveRL.Limit).Post("/auth/verify-code", authH.VerifyCode)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/events", eventH.Create)

		r.Route("/public/events/{id}", func(r chi.Router) {
			r.Get("/", publicH.GetEvent)
			r.Get("/participants", publicH.ListParticipants)
			r.With(sensitiveRL.Limit).Post("/participants/{pid}/send-whatsapp-code", publicH.SendWhatsAppCode)
			r.With(sensitiveRL.Limit).Post("/participants/{pid}/verify-whatsapp-code", publicH.VerifyWhatsAppCode)
			r.Put("/participants/{pid}/gift-suggestion", publicH.UpdateGiftSuggestion)
		})

		// Organizer routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/events", eventH.List)
			r.Get("/events/{id}", eventH.Get)
			r.Put("/events/{id}", eventH.Update)
			r.Delete("/events/{id}", eventH.Delete)
			r.With(sensitiveRL.Limit).Post("/events/{id}/participants/suggestion-reminders", eventH.SendSuggestionReminder)
			r.Get("/events/{id}/participants", eventH.ListParticipants)
			r.Post("/events/{id}/participants", eventH.AddParticipant)
			r.Put("/events/{id}/participants/{pid}", eventH.SetConfirmed)
			r.Delete("/events/{id}/participants/{pid}", eventH.RemoveParticipant)
			r.Post("/events/{id}/draw", drawH.Perform)
			r.Get("/events/{id}/draw", drawH.Results)
		})
	})

	return r
}
