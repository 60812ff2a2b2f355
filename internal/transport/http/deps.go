package http

import (
	"net/http"

	"github.com/go-secret-friend/internal/application/draw"
	"github.com/go-secret-friend/internal/application/event"
	"github.com/go-secret-friend/internal/application/otp"
	"github.com/go-secret-friend/internal/application/session"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Sessions session.Service
	Codes    otp.Service
	Events   event.Service
	Draws    draw.Service
	// Metrics serves the Prometheus scrape endpoint; nil disables /metrics.
	Metrics http.Handler
}
